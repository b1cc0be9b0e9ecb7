package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Chart indexes a tenant's accounts by id and by parent.
type Chart struct {
	byID     map[string]*Account
	children map[string][]*Account
	ordered  []*Account
}

// NewChart builds a chart from a flat account list.
func NewChart(accounts []*Account) *Chart {
	c := &Chart{
		byID:     make(map[string]*Account, len(accounts)),
		children: make(map[string][]*Account),
		ordered:  make([]*Account, 0, len(accounts)),
	}
	for _, a := range accounts {
		c.byID[a.ID] = a
		c.ordered = append(c.ordered, a)
		if a.ParentID != "" {
			c.children[a.ParentID] = append(c.children[a.ParentID], a)
		}
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Code < c.ordered[j].Code })
	return c
}

// Account looks an account up by id.
func (c *Chart) Account(id string) (*Account, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Accounts returns all accounts ordered by code.
func (c *Chart) Accounts() []*Account {
	return c.ordered
}

// Children returns the direct children of an account.
func (c *Chart) Children(id string) []*Account {
	return c.children[id]
}

// LeafDescendants returns the leaf accounts under id. A leaf returns itself.
func (c *Chart) LeafDescendants(id string) []*Account {
	root, ok := c.byID[id]
	if !ok {
		return nil
	}
	var leaves []*Account
	seen := make(map[string]bool)
	var walk func(a *Account)
	walk = func(a *Account) {
		if seen[a.ID] {
			return
		}
		seen[a.ID] = true
		if !a.IsHeader {
			leaves = append(leaves, a)
			return
		}
		for _, child := range c.children[a.ID] {
			walk(child)
		}
	}
	walk(root)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Code < leaves[j].Code })
	return leaves
}

// IsAncestor reports whether ancestorID appears on the parent chain of id, id included.
func (c *Chart) IsAncestor(ancestorID, id string) bool {
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		if cur == ancestorID {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		a, ok := c.byID[cur]
		if !ok {
			return false
		}
		cur = a.ParentID
	}
	return false
}

// RollUp returns balances for every account: leaves from leafBalances, headers as the
// sum of their descendant leaves.
func (c *Chart) RollUp(leafBalances map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.byID))
	for _, a := range c.ordered {
		if !a.IsHeader {
			out[a.ID] = leafBalances[a.ID]
			continue
		}
		total := decimal.Zero
		for _, leaf := range c.LeafDescendants(a.ID) {
			total = total.Add(leafBalances[leaf.ID])
		}
		out[a.ID] = total
	}
	return out
}
