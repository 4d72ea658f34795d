package service

import (
	"context"
	"errors"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/services/flowmaint/domain"
)

// Reconciler deletes shard cache entries that point at tables which no longer exist
type Reconciler struct {
	Catalog Catalog
	Repo    domain.StorageRepo
}

// Reconcile only considers entries with an empty mapped partition. An entry is removed
// exactly when its table is absent. A failed table lookup aborts the pass
func (r Reconciler) Reconcile(ctx context.Context) (int, error) {
	entries, err := r.Repo.ListShardCache(ctx)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeCatalogUnavailable, "flowmaint: list shard cache")
	}

	l := logger.C(ctx)
	exists := map[string]bool{}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.MappedPartition != "" {
			continue
		}
		ok, seen := exists[e.MappedTable]
		if !seen {
			if ok, err = r.Catalog.Exists(ctx, e.MappedTable); err != nil {
				return removed, errors.Join(append(errs, err)...)
			}
			exists[e.MappedTable] = ok
		}
		if ok {
			continue
		}
		n, err := r.Repo.DeleteShardCache(ctx, e)
		if err != nil {
			errs = append(errs, perr.FromPostgres(err, "flowmaint: delete shard cache entry"))
			continue
		}
		removed += int(n)
		l.Debug().Str("checksum", e.Checksum).Str("table", e.MappedTable).Msg("flowmaint: removed orphaned shard cache entry")
	}
	return removed, errors.Join(errs...)
}
