package service

import (
	"context"
	"time"

	perr "flowkeeper/internal/platform/errors"
	ptime "flowkeeper/internal/platform/time"
	"flowkeeper/internal/services/flowmaint/domain"
)

// WatermarkTracker counts rows ingested since the stored watermark
type WatermarkTracker struct {
	Catalog  Catalog
	Repo     domain.StorageRepo
	Location *time.Location
}

// Advance walks the window's partitions oldest first. Partitions older than the stored one
// are never rescanned, and an empty delta on the stored partition keeps its sequence
func (w WatermarkTracker) Advance(ctx context.Context, prefix string, g domain.Granularity, start, end time.Time, wm domain.Watermark) (domain.Advance, error) {
	var adv domain.Advance

	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	buckets := domain.Buckets(ptime.Floor(start.In(loc), g.Step()), end.In(loc), g)
	if len(buckets) == 0 {
		return adv, nil
	}

	parts, err := w.Catalog.List(ctx, prefix)
	if err != nil {
		return adv, err
	}
	present := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		present[p.Name] = struct{}{}
	}

	lastKey, lastOK := w.keyOf(prefix, wm.LastPartition)
	for _, k := range buckets {
		table := prefix + k.String()
		if _, ok := present[table]; !ok {
			continue
		}
		if lastOK && k.Less(lastKey) {
			continue
		}

		var t domain.Tally
		switch {
		case wm.Fresh():
			t, err = w.Repo.CountSince(ctx, table, start)
		case table == wm.LastPartition:
			t, err = w.Repo.CountAfter(ctx, table, wm.LastSequence)
			if err == nil && t.MaxSeq == 0 {
				t.MaxSeq = wm.LastSequence
			}
		default:
			t, err = w.Repo.CountAll(ctx, table)
		}
		if err != nil {
			return domain.Advance{}, perr.FromPostgres(err, "flowmaint: tally "+table)
		}

		adv.Records += t.Rows
		adv.Sequence = t.MaxSeq
		adv.Partition = table
		adv.Scanned++
	}
	return adv, nil
}

func (w WatermarkTracker) keyOf(prefix, table string) (domain.Key, bool) {
	if len(table) <= len(prefix) || table[:len(prefix)] != prefix {
		return domain.Key{}, false
	}
	k, err := domain.ParseKey(table[len(prefix):])
	return k, err == nil
}
