package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
)

// defaultMinorUnits applies when the currency is missing or unknown.
const defaultMinorUnits = 2

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func minorUnits(currency string) int32 {
	if units, ok := domain.MinorUnits(currency); ok {
		return units
	}
	return defaultMinorUnits
}

// amount formats v with the currency's number of decimal places.
func amount(v decimal.Decimal, currency string) string {
	return v.StringFixed(minorUnits(currency))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printAccounts(w io.Writer, accounts []dto.AccountResponse) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tHEADER\tSTATUS\tCURRENCY\tID")
	for _, a := range accounts {
		header := ""
		if a.IsHeader {
			header = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", a.Code, truncate(a.Name, 32), a.Type, header, a.Status, a.Currency, a.ID)
	}
	return tw.Flush()
}

func printEntry(w io.Writer, e *dto.EntryResponse) error {
	fmt.Fprintf(w, "%s  %s  %s  %s\n", e.EntryNo, e.Date, e.Status, e.ID)
	if e.Description != "" {
		fmt.Fprintf(w, "%s\n", e.Description)
	}
	if e.ReversalOf != "" {
		fmt.Fprintf(w, "reverses %s\n", e.ReversalOf)
	}
	if e.ReversedBy != "" {
		fmt.Fprintf(w, "reversed by %s: %s\n", e.ReversedBy, e.ReversalReason)
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "#\tACCOUNT\tDEBIT\tCREDIT\tDESCRIPTION")
	for _, l := range e.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", l.LineNo, l.AccountID, amount(l.Debit, e.Currency), amount(l.Credit, e.Currency), truncate(l.Description, 40))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", amount(e.TotalDebit, e.Currency), amount(e.TotalCredit, e.Currency))
	return tw.Flush()
}

func printLedger(w io.Writer, l *dto.LedgerResponse) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tENTRY\tDESCRIPTION\tDEBIT\tCREDIT\tBALANCE")
	fmt.Fprintf(tw, "%s\t\tOpening balance\t\t\t%s\n", l.From, amount(l.OpeningBalance, l.Currency))
	for _, e := range l.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Date, e.EntryNo, truncate(e.Description, 40), amount(e.Debit, l.Currency), amount(e.Credit, l.Currency), amount(e.RunningBalance, l.Currency))
	}
	fmt.Fprintf(tw, "%s\t\tClosing balance\t\t\t%s\n", l.To, amount(l.ClosingBalance, l.Currency))
	return tw.Flush()
}

// printTrialBalance formats each row in its own currency. Totals span currencies and
// use the finest precision among the rows.
func printTrialBalance(w io.Writer, tb *dto.TrialBalanceResponse) error {
	var totalUnits int32
	if len(tb.Rows) == 0 {
		totalUnits = defaultMinorUnits
	}
	for _, r := range tb.Rows {
		totalUnits = max(totalUnits, minorUnits(r.Currency))
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tDEBIT\tCREDIT")
	for _, r := range tb.Rows {
		name := truncate(r.Name, 32)
		if r.ContraBalance {
			name += " (contra)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Code, name, r.Type, amount(r.Debit, r.Currency), amount(r.Credit, r.Currency))
	}
	fmt.Fprintf(tw, "\tTOTAL\t\t%s\t%s\n", tb.TotalDebit.StringFixed(totalUnits), tb.TotalCredit.StringFixed(totalUnits))
	if err := tw.Flush(); err != nil {
		return err
	}

	if tb.Balanced {
		_, err := fmt.Fprintln(w, "Trial balance is balanced")
		return err
	}
	_, err := fmt.Fprintf(w, "Trial balance is OUT OF BALANCE by %s\n", tb.Delta.StringFixed(totalUnits))
	return err
}

func printAuditLogs(w io.Writer, logs []*dto.AuditLogResponse) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tACTION\tUSER\tSTATUS\tREQUEST")
	for _, l := range logs {
		user := l.UserID
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.CreatedAt.UTC().Format(time.RFC3339), l.Action, user, l.Status, l.RequestID)
	}
	return tw.Flush()
}
