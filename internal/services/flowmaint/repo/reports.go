package repo

import (
	"context"
	"time"

	"flowkeeper/internal/platform/store"
)

// ExpireReportLog trims the report history of one source
func (r *queries) ExpireReportLog(ctx context.Context, days int, source string) (int64, error) {
	return store.Affected(ctx, r.q, `
		DELETE FROM reports_log
		WHERE send_time < EXTRACT(EPOCH FROM now() - make_interval(days => $1))::bigint
		  AND source = $2
	`, days, source)
}

// CountListeners counts configured flow collectors
func (r *queries) CountListeners(ctx context.Context) (int64, error) {
	return store.Scalar[int64](ctx, r.q, `SELECT COUNT(*) FROM plugin_flowview_devices`)
}

// CountDueSchedules counts enabled schedules past their send interval that are not queued yet.
// lastsent and sendinterval are unix seconds
func (r *queries) CountDueSchedules(ctx context.Context, now time.Time, source string) (int64, error) {
	return store.Scalar[int64](ctx, r.q, `
		SELECT COUNT(*)
		FROM plugin_flowview_schedules
		WHERE enabled = 'on'
		  AND $1 - sendinterval > lastsent
		  AND id NOT IN (SELECT source_id FROM reports_queued WHERE source = $2)
	`, now.Unix(), source)
}
