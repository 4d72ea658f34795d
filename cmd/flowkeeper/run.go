package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	modreg "flowkeeper/internal/modkit/module"
	"flowkeeper/internal/modkit/repokit"
	"flowkeeper/internal/platform/config"
	"flowkeeper/internal/platform/logger"
	phttp "flowkeeper/internal/platform/net/http"
	"flowkeeper/internal/platform/net/middleware"
	fmdom "flowkeeper/internal/services/flowmaint/domain"
	fmmod "flowkeeper/internal/services/flowmaint/module"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var runFlags struct {
	addr     string
	schedule string
	noHTTP   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled sweeps and the ops HTTP server",
	Long: `Run sweeps on the FLOWMAINT_SCHEDULE cron spec until interrupted.

The ops server exposes /healthz, /readyz, /metrics, GET /v1/sweeps/last,
POST /v1/sweeps and GET /v1/cutoff.`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.addr, "addr", "", "ops listen address (default OPS_ADDR or :8089)")
	runCmd.Flags().StringVar(&runFlags.schedule, "schedule", "", "override FLOWMAINT_SCHEDULE")
	runCmd.Flags().BoolVar(&runFlags.noHTTP, "no-http", false, "run the scheduler without the ops server")
}

func runService(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	l := logger.Get()

	st, err := openStore(ctx, root, "run")
	if err != nil {
		return err
	}
	defer closeStore(st)
	repokit.MustGuard(ctx, st)

	m := fmmod.Register(moduleDeps(root, st), fmmod.Overrides{Schedule: runFlags.schedule})
	if err := m.EnsureHistory(ctx); err != nil {
		l.Warn().Err(err).Msg("sweep history table unavailable; history writes will fail")
	}
	sched := modreg.MustPortsOf[fmdom.SchedulerPort](m)

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- sched.Run(ctx) }()

	if !runFlags.noHTTP {
		addr := runFlags.addr
		if addr == "" {
			addr = root.MayString("OPS_ADDR", ":8089")
		}
		srv := phttp.NewServer(addr, func(mux *chi.Mux) {
			mux.Use(chimw.RequestID)
			mux.Use(middleware.RecoverJSON)
			mux.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{
				Slow: 2 * time.Second,
				Skip: []string{"/metrics", "/healthz"},
			}))
		})
		srv.Router().Handle("/metrics", promhttp.Handler())
		m.MountRoutes(srv.Router())

		running++
		go func() { errCh <- srv.Run(ctx) }()
	}

	l.Info().Str("module", m.Name()).Time("next_sweep", sched.Next()).Msg("flowkeeper started")

	var first error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
			stop()
		}
	}
	l.Info().Msg("flowkeeper stopped")
	return first
}
