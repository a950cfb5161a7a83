// Package cli implements reportctl, the operator's command line for the
// report store. It talks to the database directly, not to the HTTP API.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gourmetlog/report-service/internal/adapters/http/dto"
	"github.com/gourmetlog/report-service/internal/adapters/persistence"
	"github.com/gourmetlog/report-service/internal/bootstrap"
	"github.com/gourmetlog/report-service/internal/domain"
)

// DefaultTimeout bounds a single command.
const DefaultTimeout = 60 * time.Second

// Opener assembles the service for profile.
type Opener func(ctx context.Context, profile string, opts bootstrap.Options) (*bootstrap.Deps, error)

// OpenFromConfig loads the profile's configuration and builds on it.
func OpenFromConfig(ctx context.Context, profile string, opts bootstrap.Options) (*bootstrap.Deps, error) {
	cfg, err := bootstrap.LoadConfig(profile)
	if err != nil {
		return nil, err
	}

	cfg.Log.Level = "warn"

	return bootstrap.Build(ctx, cfg, bootstrap.NewLogger(cfg), opts)
}

type rootCmd struct {
	open    Opener
	profile string
	asJSON  bool
	timeout time.Duration
}

// NewRootCmd returns the reportctl command tree.
func NewRootCmd(open Opener) *cobra.Command {
	rc := &rootCmd{open: open}

	cmd := &cobra.Command{
		Use:           "reportctl",
		Short:         "Inspect and maintain the report store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	cmd.PersistentFlags().StringVar(&rc.profile, "profile", profile, "Configuration profile (configs/<profile>.yaml)")
	cmd.PersistentFlags().BoolVar(&rc.asJSON, "json", false, "Print JSON instead of a table")
	cmd.PersistentFlags().DurationVar(&rc.timeout, "timeout", DefaultTimeout, "Give up after this long")

	cmd.AddCommand(
		rc.migrateCmd(),
		rc.listCmd(),
		rc.showCmd(),
		rc.deleteCmd(),
		rc.summaryCmd(),
		rc.tokenCmd(),
	)

	return cmd
}

// withDeps runs fn against a freshly built service and closes it afterwards.
func (rc *rootCmd) withDeps(cmd *cobra.Command, opts bootstrap.Options, fn func(context.Context, *bootstrap.Deps) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rc.timeout)
	defer cancel()

	deps, err := rc.open(ctx, rc.profile, opts)
	if err != nil {
		return err
	}

	return errors.Join(fn(ctx, deps), deps.Close())
}

func (rc *rootCmd) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the reports table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withDeps(cmd, bootstrap.Options{SkipMigrate: true}, func(ctx context.Context, deps *bootstrap.Deps) error {
				if err := persistence.Migrate(ctx, deps.DB); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")

				return nil
			})
		},
	}
}

func (rc *rootCmd) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every report, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withDeps(cmd, bootstrap.Options{}, func(ctx context.Context, deps *bootstrap.Deps) error {
				reports, err := deps.Reports.ListReports(ctx)
				if err != nil {
					return err
				}

				if rc.asJSON {
					return writeJSON(cmd.OutOrStdout(), dto.NewReportListResponse(reports))
				}

				return writeTable(cmd.OutOrStdout(), reports)
			})
		},
	}
}

func (rc *rootCmd) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.withDeps(cmd, bootstrap.Options{}, func(ctx context.Context, deps *bootstrap.Deps) error {
				report, err := deps.Reports.GetReport(ctx, args[0])
				if err != nil {
					return err
				}

				if rc.asJSON {
					return writeJSON(cmd.OutOrStdout(), dto.NewReportResponse(report))
				}

				return writeTable(cmd.OutOrStdout(), []*domain.Report{report})
			})
		},
	}
}

func (rc *rootCmd) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete reports and their photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.withDeps(cmd, bootstrap.Options{}, func(ctx context.Context, deps *bootstrap.Deps) error {
				errs := deps.Reports.DeleteReports(ctx, args)
				out := cmd.OutOrStdout()

				var failed []error

				for i, id := range args {
					if errs[i] != nil {
						fmt.Fprintf(out, "%s\tfailed: %v\n", id, errs[i])
						failed = append(failed, errs[i])

						continue
					}

					fmt.Fprintf(out, "%s\tdeleted\n", id)
				}

				if len(failed) > 0 {
					return fmt.Errorf("%d of %d deletes failed", len(failed), len(args))
				}

				return nil
			})
		},
	}
}

func (rc *rootCmd) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count reports and run the health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withDeps(cmd, bootstrap.Options{}, func(ctx context.Context, deps *bootstrap.Deps) error {
				overview, err := deps.Reports.Overview(ctx)
				if err != nil {
					return err
				}

				summary := dto.NewSummaryResponse(overview)

				if rc.asJSON {
					return writeJSON(cmd.OutOrStdout(), summary)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "reports: %d\nstatus:  %s\n", summary.Reports, summary.Status)

				for _, name := range slices.Sorted(maps.Keys(summary.Checks)) {
					fmt.Fprintf(out, "  %s: %s\n", name, summary.Checks[name])
				}

				return nil
			})
		},
	}
}

func (rc *rootCmd) tokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a sign-in token for the administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withDeps(cmd, bootstrap.Options{SkipMigrate: true}, func(ctx context.Context, deps *bootstrap.Deps) error {
				token, err := deps.Auth.SignIn(ctx, email)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), token)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Administrator email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func writeTable(w io.Writer, reports []*domain.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tITEM\tSHOP\tLOCATION\tRATING\tDATE\tTAGS")

	for _, r := range reports {
		date := "-"
		if d, ok := r.Date(); ok {
			date = d.UTC().Format(time.DateOnly)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID(), r.ItemName(), r.ShopName(), r.Location(),
			strconv.FormatFloat(r.Rating(), 'f', 1, 64), date, tags(r))
	}

	return tw.Flush()
}

func tags(r *domain.Report) string {
	var parts []string

	if s, ok := r.Spaciousness(); ok {
		parts = append(parts, s.String())
	}

	if c, ok := r.Cleanliness(); ok {
		parts = append(parts, c.String())
	}

	if x, ok := r.Relaxation(); ok {
		parts = append(parts, x.String())
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, ",")
}
