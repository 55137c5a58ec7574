package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/resilience/retry"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Show retry policies and the error to policy map",
	Run:   runPolicies,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
}

func runPolicies(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	mgr, err := retry.NewManager(cfg.Retry)
	if err != nil {
		slog.Error("Failed to load retry policies", "error", err)
		os.Exit(1)
	}
	exp := mgr.ExportPolicies()

	names := make([]string, 0, len(exp.Policies))
	for name := range exp.Policies {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "POLICY\tENABLED\tATTEMPTS\tBASE\tFACTOR\tMAX\tJITTER\tCLEAN")
	for _, name := range names {
		p := exp.Policies[name]
		if name == exp.DefaultPolicy {
			name += " (default)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%d\t%v\t%.2f\t%v\t%t\t%t\n",
			name, p.Enabled, p.MaxAttempts, p.BaseDelay, p.BackoffMultiplier, p.MaxDelay, p.JitterEnabled, p.CleanContext)
	}
	_ = w.Flush()

	classes := make([]domain.Classification, 0, len(exp.ErrorPolicies))
	for class := range exp.ErrorPolicies {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CLASSIFICATION\tPOLICY")
	for _, class := range classes {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", class, exp.ErrorPolicies[class])
	}
	_ = w.Flush()
}
