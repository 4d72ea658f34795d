package main

import (
	"fmt"
	"time"

	"flowkeeper/internal/platform/config"
	fmdom "flowkeeper/internal/services/flowmaint/domain"
	fmmod "flowkeeper/internal/services/flowmaint/module"

	"github.com/spf13/cobra"
)

var cutoffFlags struct {
	date      string
	retention int
	mode      string
}

var cutoffCmd = &cobra.Command{
	Use:   "cutoff",
	Short: "Print the retention cutoff key for a day",
	Long: `Print the partition suffix below which partitions are dropped.

Defaults come from FLOWMAINT_RETENTION_DAYS, FLOWMAINT_PARTITION_MODE and FLOWMAINT_TZ.
No database is contacted, so settings table overrides are not applied.`,
	Args: cobra.NoArgs,
	RunE: runCutoff,
}

func init() {
	rootCmd.AddCommand(cutoffCmd)

	cutoffCmd.Flags().StringVar(&cutoffFlags.date, "date", "", "day as YYYY-MM-DD (default today)")
	cutoffCmd.Flags().IntVar(&cutoffFlags.retention, "retention", -1, "retention in days (default FLOWMAINT_RETENTION_DAYS)")
	cutoffCmd.Flags().StringVar(&cutoffFlags.mode, "mode", "", "daily or hourly (default FLOWMAINT_PARTITION_MODE)")
}

func runCutoff(cmd *cobra.Command, _ []string) error {
	opts := fmmod.FromConfig(config.New())
	if cutoffFlags.retention >= 0 {
		opts.RetentionDays = cutoffFlags.retention
	}
	if cutoffFlags.mode != "" {
		opts.Mode = cutoffFlags.mode
	}
	g, err := fmdom.ParseGranularity(opts.Mode)
	if err != nil {
		return err
	}

	day := time.Now().In(opts.Location)
	if cutoffFlags.date != "" {
		day, err = time.ParseInLocation(time.DateOnly, cutoffFlags.date, opts.Location)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
	}

	k := fmdom.Cutoff(day, opts.RetentionDays, g)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s retention=%dd mode=%s\n",
		k, day.Format(time.DateOnly), opts.RetentionDays, g)
	return err
}
