package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/session"
)

var (
	applySnapshot   string
	applyOps        string
	applyCollection string
	applyDryRun     bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an operations file to a snapshot file",
	Run:   runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applySnapshot, "snapshot", "snapshot.json", "snapshot file, created when missing")
	applyCmd.Flags().StringVar(&applyOps, "ops", "", "JSON array of operations")
	applyCmd.Flags().StringVar(&applyCollection, "collection", "goals", "collection name for a new snapshot")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "do not write the snapshot back")
	_ = applyCmd.MarkFlagRequired("ops")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) {
	loadConfig()

	snap, err := readSnapshot(applySnapshot, applyCollection)
	if err != nil {
		slog.Error("Failed to read snapshot", "path", applySnapshot, "error", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(applyOps)
	if err != nil {
		slog.Error("Failed to read operations", "path", applyOps, "error", err)
		os.Exit(1)
	}
	var ops []domain.Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		slog.Error("Failed to decode operations", "path", applyOps, "error", err)
		os.Exit(1)
	}

	summary := session.NewApplier(slog.Default()).Apply(ops, snap)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tACTION\tSTATUS\tERROR")
	for _, r := range summary.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Action, r.Status, r.Error)
	}
	_ = w.Flush()

	if snap.Dirty() && !applyDryRun {
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			slog.Error("Failed to encode snapshot", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(applySnapshot, out, 0o644); err != nil {
			slog.Error("Failed to write snapshot", "path", applySnapshot, "error", err)
			os.Exit(1)
		}
		slog.Info("Snapshot saved", "path", applySnapshot, "entities", snap.Len())
	}

	if summary.HasErrors() {
		os.Exit(2)
	}
}

func readSnapshot(path, collection string) (*session.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return session.NewSnapshot(collection), nil
	}
	if err != nil {
		return nil, err
	}

	snap := session.NewSnapshot(collection)
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
