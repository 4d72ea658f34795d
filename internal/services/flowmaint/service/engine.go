package service

import (
	"context"
	"errors"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/services/flowmaint/domain"
)

// EngineNormalizer moves recent partitions onto the default storage engine
type EngineNormalizer struct {
	Catalog Catalog
	Repo    domain.StorageRepo
}

// Normalize skips the skip newest partitions, which may still be written to, then converts
// any of the next window partitions whose engine differs from engine.
// Partitioned parents report no engine and are left alone
func (n EngineNormalizer) Normalize(ctx context.Context, prefix, engine string, skip, window int) (int, error) {
	if engine == "" || window <= 0 {
		return 0, nil
	}
	parts, err := n.Catalog.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if skip >= len(parts) {
		return 0, nil
	}
	parts = parts[max(skip, 0):]
	if len(parts) > window {
		parts = parts[:window]
	}

	l := logger.C(ctx)
	altered := 0
	var errs []error
	for _, p := range parts {
		if p.Engine == "" || p.Engine == engine {
			continue
		}
		if err := n.Repo.SetEngine(ctx, p.Name, engine); err != nil {
			l.Warn().Err(err).Str("table", p.Name).Str("engine", engine).Msg("flowmaint: engine change failed")
			errs = append(errs, perr.Wrapf(err, perr.ErrorCodeAlterFailed, "flowmaint: alter %s", p.Name))
			continue
		}
		l.Info().Str("table", p.Name).Str("from", p.Engine).Str("to", engine).Msg("flowmaint: changed partition engine")
		altered++
	}
	return altered, errors.Join(errs...)
}
