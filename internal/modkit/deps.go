// Package modkit carries the shared dependencies handed to every module
package modkit

import (
	"flowkeeper/internal/modkit/repokit"
	"flowkeeper/internal/platform/config"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/platform/store"

	"github.com/prometheus/client_golang/prometheus"
)

// Deps is wiring only; optional seams may be nil
type Deps struct {
	Log    logger.Logger
	Cfg    config.Conf
	PG     repokit.TxRunner
	Locker store.Locker
	CH     store.Clickhouse

	// Metrics is where modules register collectors; nil means prometheus.DefaultRegisterer
	Metrics prometheus.Registerer
}

// Registerer returns Metrics or the default registerer
func (d Deps) Registerer() prometheus.Registerer {
	if d.Metrics != nil {
		return d.Metrics
	}
	return prometheus.DefaultRegisterer
}

// FromStore copies the opened backends of st into d
func (d Deps) FromStore(st *store.Store) Deps {
	if st == nil {
		return d
	}
	d.PG = st.PG
	d.Locker = st.Locker
	d.CH = st.CH
	return d
}
