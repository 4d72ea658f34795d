package service

import (
	"context"
	"errors"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/services/flowmaint/domain"
)

// Pruner drops partitions that fell out of retention
type Pruner struct {
	Catalog Catalog
	Repo    domain.StorageRepo
}

// Prune drops every partition whose key is strictly before cutoff. A failed drop does not
// stop the rest; the partition is still expired on the next sweep and retried then
func (p Pruner) Prune(ctx context.Context, prefix string, cutoff domain.Key) ([]string, error) {
	parts, err := p.Catalog.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	l := logger.C(ctx)

	var dropped []string
	var errs []error
	for _, part := range parts {
		if !part.Key.Less(cutoff) {
			continue
		}
		if ctx.Err() != nil {
			errs = append(errs, perr.Wrapf(ctx.Err(), perr.ErrorCodeDropFailed, "flowmaint: drop %s", part.Name))
			break
		}
		if err := p.Repo.DropTable(ctx, part.Name); err != nil {
			l.Warn().Err(err).Str("table", part.Name).Msg("flowmaint: drop partition failed")
			errs = append(errs, perr.Wrapf(err, perr.ErrorCodeDropFailed, "flowmaint: drop %s", part.Name))
			continue
		}
		l.Info().Str("table", part.Name).Str("cutoff", cutoff.String()).Msg("flowmaint: dropped expired partition")
		dropped = append(dropped, part.Name)
	}
	return dropped, errors.Join(errs...)
}
