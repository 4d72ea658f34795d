package service

import (
	"context"
	"sort"
	"strings"

	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/services/flowmaint/domain"
)

// Catalog is the live, read only view of the partitions under a prefix
type Catalog struct {
	Repo domain.StorageRepo
}

// List returns partitions with a parseable suffix, newest first
func (c Catalog) List(ctx context.Context, prefix string) ([]domain.Partition, error) {
	tables, err := c.Repo.ListTables(ctx, prefix)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeCatalogUnavailable, "flowmaint: list partitions %q", prefix)
	}
	out := make([]domain.Partition, 0, len(tables))
	for _, t := range tables {
		suffix, ok := strings.CutPrefix(t.Name, prefix)
		if !ok {
			continue
		}
		k, err := domain.ParseKey(suffix)
		if err != nil {
			logger.C(ctx).Debug().Str("table", t.Name).Msg("flowmaint: ignoring table with foreign suffix")
			continue
		}
		out = append(out, domain.Partition{Name: t.Name, Key: k, Suffix: suffix, Engine: t.Engine})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if d := out[i].Key.Compare(out[j].Key); d != 0 {
			return d > 0
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Exists reports whether table is present
func (c Catalog) Exists(ctx context.Context, table string) (bool, error) {
	ok, err := c.Repo.TableExists(ctx, table)
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeCatalogUnavailable, "flowmaint: lookup %q", table)
	}
	return ok, nil
}
