package repo

import (
	"context"
	"time"

	"flowkeeper/internal/services/flowmaint/domain"
)

func (r *queries) tally(ctx context.Context, sql string, args ...any) (domain.Tally, error) {
	var t domain.Tally
	err := r.q.QueryRow(ctx, sql, args...).Scan(&t.Rows, &t.MaxSeq)
	return t, err
}

// CountSince is the first-run tally, bounded by flow end time
func (r *queries) CountSince(ctx context.Context, table string, since time.Time) (domain.Tally, error) {
	return r.tally(ctx, `
		SELECT COUNT(*), COALESCE(MAX(sequence), 0)
		FROM `+ident(table)+`
		WHERE end_time >= $1
	`, since)
}

// CountAfter tallies the rows ingested past a known sequence
func (r *queries) CountAfter(ctx context.Context, table string, seq int64) (domain.Tally, error) {
	return r.tally(ctx, `
		SELECT COUNT(*), COALESCE(MAX(sequence), 0)
		FROM `+ident(table)+`
		WHERE sequence > $1
	`, seq)
}

// CountAll tallies a partition the watermark has not reached yet
func (r *queries) CountAll(ctx context.Context, table string) (domain.Tally, error) {
	return r.tally(ctx, `SELECT COUNT(*), COALESCE(MAX(sequence), 0) FROM `+ident(table))
}
