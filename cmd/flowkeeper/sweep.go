package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	modreg "flowkeeper/internal/modkit/module"
	"flowkeeper/internal/platform/config"
	fmdom "flowkeeper/internal/services/flowmaint/domain"
	fmmod "flowkeeper/internal/services/flowmaint/module"

	"github.com/spf13/cobra"
)

var sweepFlags struct {
	maintenance bool
	asJSON      bool
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one sweep now",
	Long: `Run a single sweep and print its report.

Without --maint the prune, reconcile and report log steps only run when the
calendar day changed since the last sweep. The command fails when any step failed.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVarP(&sweepFlags.maintenance, "maint", "m", false, "force the daily maintenance steps")
	sweepCmd.Flags().BoolVar(&sweepFlags.asJSON, "json", false, "print the report as JSON")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	st, err := openStore(ctx, root, "sweep")
	if err != nil {
		return err
	}
	defer closeStore(st)

	m := fmmod.New(moduleDeps(root, st), fmmod.Overrides{})
	if err := m.EnsureHistory(ctx); err != nil {
		return fmt.Errorf("sweep history table: %w", err)
	}
	sw := modreg.MustPortsOf[fmdom.SweepPort](m)

	rep, err := sw.Sweep(ctx, fmdom.SweepRequest{Force: sweepFlags.maintenance})
	if err != nil {
		return err
	}
	if err := printReport(cmd.OutOrStdout(), rep, sweepFlags.asJSON); err != nil {
		return err
	}
	if rep.Status != fmdom.StatusSuccess {
		return fmt.Errorf("sweep %s finished with status %s", rep.RunID, rep.Status)
	}
	return nil
}

func printReport(w io.Writer, rep fmdom.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "run %s %s maintenance=%t\n", rep.RunID, rep.Status, rep.Maintenance)
	for _, s := range rep.Steps {
		switch {
		case s.Skipped:
			fmt.Fprintf(w, "  %-10s skipped %s\n", s.Step, s.Error)
		case s.Failed():
			fmt.Fprintf(w, "  %-10s FAILED  %s (%s)\n", s.Step, s.Error, s.Code)
		default:
			fmt.Fprintf(w, "  %-10s ok      count=%d %s\n", s.Step, s.Count, s.Elapsed)
		}
	}
	if rep.Cutoff != "" {
		fmt.Fprintf(w, "cutoff %s\n", rep.Cutoff)
	}
	_, err := fmt.Fprintf(w, "STATS: %s\n", rep.Stats())
	return err
}
