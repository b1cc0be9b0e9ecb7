package domain

import (
	"context"
	"errors"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       string
	TenantID string
	Role     Role
}

// Role represents a caller's access level
type Role string

const (
	// RoleAdmin has full access, including chart of accounts changes
	RoleAdmin Role = "admin"

	// RoleAccountant can draft, post and reverse journal entries
	RoleAccountant Role = "accountant"

	// RoleViewer can only read ledgers and reports
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer:     1,
	RoleAccountant: 2,
	RoleAdmin:      3,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether r grants at least the access of min.
func (r Role) Satisfies(min Role) bool {
	return r.IsValid() && roleRank[r] >= roleRank[min]
}

// CanPost checks if the role can draft, post and reverse entries
func (r Role) CanPost() bool {
	return r.Satisfies(RoleAccountant)
}

// CanManageAccounts checks if the role can change the chart of accounts
func (r Role) CanManageAccounts() bool {
	return r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
	ErrTenantMismatch   = errors.New("tenant does not match token")
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	tenantContextKey    contextKey = "tenant"
)

// WithPrincipal stores the caller in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the caller stored in ctx.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok && p != nil
}

// ActorFromContext returns the caller id, or "system" when none is set.
func ActorFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok && p.ID != "" {
		return p.ID
	}
	return "system"
}

// WithTenant stores the resolved tenant in ctx.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// TenantFromContext returns the tenant stored in ctx.
func TenantFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tenantContextKey).(string)
	return t, ok && t != ""
}

// RequestMeta carries transport details recorded on audit logs.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

const requestMetaContextKey contextKey = "request_meta"

// WithRequestMeta stores request details in ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaContextKey, meta)
}

// RequestMetaFromContext returns the request details stored in ctx, if any.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaContextKey).(RequestMeta)
	return meta
}
