package main

import (
	"context"
	"fmt"
	"os"

	"flowkeeper/internal/modkit"
	"flowkeeper/internal/platform/config"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/platform/store"

	"github.com/spf13/cobra"
)

var (
	// Version is set by build flags
	Version = "0.1.0"

	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "flowkeeper",
	Short: "Flow partition maintenance",
	Long: `flowkeeper keeps date-partitioned flow record tables in shape.

Every sweep advances the ingestion watermark and normalizes the storage engine of
recent partitions. Once a day it also drops partitions older than the retention
window, removes shard cache entries that point at dropped tables and expires old
report log rows.

Settings are read from FLOWMAINT_*, SERVICE_PGSQL_*, CH_* and LOG_* variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		opts := logger.FromEnv()
		if logLevel != "" {
			opts.Level = logLevel
		}
		opts.Writer = cmd.ErrOrStderr()
		logger.Init(opts)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// openStore opens postgres, and clickhouse when CH_ENABLED is set. role tags the clickhouse session
func openStore(ctx context.Context, root config.Conf, role string) (*store.Store, error) {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("CH_")

	return store.Open(ctx, store.Config{
		AppName: "flowkeeper",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chCfg.MayBool("ENABLED", false),
			URL:     chCfg.MayString("URL", ""),
			Role:    role,
		},
	}, store.WithLogger(*logger.Get()))
}

func moduleDeps(root config.Conf, st *store.Store) modkit.Deps {
	return modkit.Deps{Log: *logger.Get(), Cfg: root}.FromStore(st)
}

func closeStore(st *store.Store) {
	if err := st.Close(context.Background()); err != nil {
		logger.Get().Error().Err(err).Msg("failed to close store")
	}
}
