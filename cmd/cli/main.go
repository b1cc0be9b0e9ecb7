package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/infrastructure/postgres"
)

var (
	errInconsistent = errors.New("ledger is inconsistent")
	errImbalanced   = errors.New("trial balance does not balance")
)

type options struct {
	baseURL      string
	tenant       string
	token        string
	tenantHeader string
	timeout      time.Duration
	output       string
}

func (o *options) client() *apiClient {
	return &apiClient{
		baseURL:      o.baseURL,
		tenant:       o.tenant,
		token:        o.token,
		tenantHeader: o.tenantHeader,
		http:         &http.Client{Timeout: o.timeout},
	}
}

func (o *options) jsonOutput() bool {
	return o.output == "json"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "glctl",
		Short: "General ledger CLI tool",
		Long:  `A command line interface for operating the general ledger API.`,

		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", envOr("GLCTL_URL", "http://localhost:8080"), "Base URL of the ledger API")
	flags.StringVar(&opts.tenant, "tenant", os.Getenv("GLCTL_TENANT"), "Tenant ID sent with every request")
	flags.StringVar(&opts.token, "token", os.Getenv("GLCTL_TOKEN"), "Bearer token")
	flags.StringVar(&opts.tenantHeader, "tenant-header", "X-Tenant-ID", "Header carrying the tenant ID")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVarP(&opts.output, "output", "o", "table", "Output format: table or json")

	rootCmd.AddCommand(
		accountsCmd(opts),
		entriesCmd(opts),
		ledgerCmd(opts),
		reportsCmd(opts),
		migrateCmd(),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func accountsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts",
	}

	var accountType, status, parentID string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts ordered by code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIf(q, "type", accountType)
			setIf(q, "status", status)
			setIf(q, "parentId", parentID)

			var accounts []dto.AccountResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/accounts", q, nil, &accounts); err != nil {
				return err
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), accounts)
			}
			return printAccounts(cmd.OutOrStdout(), accounts)
		},
	}
	listCmd.Flags().StringVar(&accountType, "type", "", "Filter by type (ASSET, LIABILITY, EQUITY, INCOME, EXPENSE)")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (ACTIVE, INACTIVE)")
	listCmd.Flags().StringVar(&parentID, "parent", "", "Filter by parent account ID")

	cmd.AddCommand(listCmd)
	return cmd
}

func entriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Journal entries",
	}

	showEntry := func(cmd *cobra.Command, entry *dto.EntryResponse) error {
		if opts.jsonOutput() {
			return printJSON(cmd.OutOrStdout(), entry)
		}
		return printEntry(cmd.OutOrStdout(), entry)
	}

	getCmd := &cobra.Command{
		Use:   "get <entry-id>",
		Short: "Show a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry dto.EntryResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/journal-entries/"+url.PathEscape(args[0]), nil, nil, &entry); err != nil {
				return err
			}
			return showEntry(cmd, &entry)
		},
	}

	postCmd := &cobra.Command{
		Use:   "post <entry-id>",
		Short: "Post a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry dto.EntryResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/journal-entries/"+url.PathEscape(args[0])+"/post", nil, nil, &entry); err != nil {
				return err
			}
			return showEntry(cmd, &entry)
		},
	}

	var reason, date string
	reverseCmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Reverse a posted entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.ReverseEntryRequest{Reason: reason}
			if date != "" {
				req.Date = &date
			}
			var entry dto.EntryResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/journal-entries/"+url.PathEscape(args[0])+"/reverse", nil, req, &entry); err != nil {
				return err
			}
			return showEntry(cmd, &entry)
		},
	}
	reverseCmd.Flags().StringVar(&reason, "reason", "", "Reason for the reversal")
	reverseCmd.Flags().StringVar(&date, "date", "", "Date of the reversing entry (YYYY-MM-DD); defaults to the original date")
	_ = reverseCmd.MarkFlagRequired("reason")

	auditCmd := &cobra.Command{
		Use:   "audit <entry-id>",
		Short: "Show the audit trail of an entry, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var logs []*dto.AuditLogResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/journal-entries/"+url.PathEscape(args[0])+"/audit", nil, nil, &logs); err != nil {
				return err
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), logs)
			}
			return printAuditLogs(cmd.OutOrStdout(), logs)
		},
	}

	cmd.AddCommand(getCmd, postCmd, reverseCmd, auditCmd)
	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	var from, to string
	showCmd := &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show the ledger of an account with running balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIf(q, "from", from)
			setIf(q, "to", to)

			var ledger dto.LedgerResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/ledger/"+url.PathEscape(args[0]), q, nil, &ledger); err != nil {
				return err
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), ledger)
			}
			return printLedger(cmd.OutOrStdout(), &ledger)
		},
	}
	showCmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	showCmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check that posted entries balance; exits non-zero when they do not",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConsistency(cmd.Context(), cmd, opts)
		},
	}

	cmd.AddCommand(showCmd, consistencyCmd)
	return cmd
}

func checkConsistency(ctx context.Context, cmd *cobra.Command, opts *options) error {
	var result dto.ConsistencyResponse
	if _, err := opts.client().do(ctx, http.MethodGet, "/api/v1/ledger/consistency", nil, nil, &result, http.StatusConflict); err != nil {
		return err
	}

	if opts.jsonOutput() {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if result.Consistent {
		fmt.Fprintln(cmd.OutOrStdout(), "Consistency check PASSED")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Consistency check FAILED")
	}

	if !result.Consistent {
		return errInconsistent
	}
	return nil
}

func reportsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Financial reports",
	}

	var asOf string
	tbCmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance; exits non-zero when it does not balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIf(q, "asOf", asOf)

			var tb dto.TrialBalanceResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/reports/trial-balance", q, nil, &tb); err != nil {
				return err
			}

			var err error
			if opts.jsonOutput() {
				err = printJSON(cmd.OutOrStdout(), tb)
			} else {
				err = printTrialBalance(cmd.OutOrStdout(), &tb)
			}
			if err != nil {
				return err
			}
			if !tb.Balanced {
				return errImbalanced
			}
			return nil
		},
	}
	tbCmd.Flags().StringVar(&asOf, "as-of", "", "Include entries dated on or before this day (YYYY-MM-DD)")

	cmd.AddCommand(tbCmd)
	return cmd
}

var (
	migrateUp   = postgres.RunMigrations
	migrateDown = postgres.RunMigrationsDown
)

func migrateCmd() *cobra.Command {
	var databaseURL, migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", os.Getenv("MIGRATIONS_PATH"), "Migrations directory; empty uses the embedded migrations")

	requireURL := func() error {
		if databaseURL == "" {
			return errors.New("--database-url or DATABASE_URL is required")
		}
		return nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			if err := migrateUp(databaseURL, migrationsPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			if err := migrateDown(databaseURL, migrationsPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
			return nil
		},
	}

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
