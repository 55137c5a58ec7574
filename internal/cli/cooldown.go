package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/resilience/cooldown"
)

var (
	cooldownCategory string
	cooldownFailures int
)

var cooldownCmd = &cobra.Command{
	Use:   "cooldown",
	Short: "Show the cooldown schedule for a failure category",
	Run:   runCooldown,
}

func init() {
	cooldownCmd.Flags().StringVar(&cooldownCategory, "category", string(domain.CooldownFailure), "cooldown category (rate-limit, failure, validation, manual)")
	cooldownCmd.Flags().IntVar(&cooldownFailures, "failures", 6, "number of consecutive failures to show")
	rootCmd.AddCommand(cooldownCmd)
}

func runCooldown(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	calc := cooldown.NewCalculator(cfg.Cooldown)
	category := domain.CooldownCategory(cooldownCategory)

	if cooldownFailures < 1 {
		slog.Error("Invalid failure count", "failures", cooldownFailures)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "FAILURES\tCOOLDOWN")
	for n := 1; n <= cooldownFailures; n++ {
		_, _ = fmt.Fprintf(w, "%d\t%v\n", n, calc.Duration(n, category))
	}
	_ = w.Flush()
}
