package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/loopguard/internal/core/domain"
)

var (
	credReset    string
	credFail     string
	credCategory string
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Show the cooldown state of configured credentials",
	Run:   runCredentials,
}

func init() {
	credentialsCmd.Flags().StringVar(&credReset, "reset", "", "clear the cooldown of a credential")
	credentialsCmd.Flags().StringVar(&credFail, "fail", "", "record a failure for a credential")
	credentialsCmd.Flags().StringVar(&credCategory, "category", string(domain.CooldownManual), "category used with --fail")
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentials(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	app := newGuard(cfg)
	defer func() {
		_ = app.Stop(context.Background())
	}()

	ctx := context.Background()
	pool := app.Credentials()

	if credReset != "" {
		if err := pool.RecordSuccess(ctx, credReset); err != nil {
			slog.Error("Failed to reset credential", "credential", credReset, "error", err)
			os.Exit(1)
		}
		slog.Info("Credential reset", "credential", credReset)
	}
	if credFail != "" {
		d, err := pool.RecordFailure(ctx, credFail, domain.CooldownCategory(credCategory))
		if err != nil {
			slog.Error("Failed to record failure", "credential", credFail, "error", err)
			os.Exit(1)
		}
		slog.Info("Credential cooling down", "credential", credFail, "duration", d)
	}

	statuses, err := pool.Statuses(ctx)
	if err != nil {
		slog.Error("Failed to read credential state", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CREDENTIAL\tCOOLDOWN\tREMAINING\tFAILURES\tCATEGORY\tUPDATED")
	for _, st := range statuses {
		updated := "-"
		if !st.Record.UpdatedAt.IsZero() {
			updated = st.Record.UpdatedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%ds\t%d\t%s\t%s\n",
			st.ID, st.InCooldown, st.RemainingSeconds, st.Record.ConsecutiveFailures, st.Record.Category, updated)
	}
	_ = w.Flush()
}
