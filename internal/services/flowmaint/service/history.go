package service

import (
	"context"
	"fmt"

	"flowkeeper/internal/platform/store"
	"flowkeeper/internal/services/flowmaint/domain"
)

// DefaultHistoryTable is where sweep reports land in ClickHouse
const DefaultHistoryTable = "flowkeeper_sweep_history"

const historyDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		run_id         String,
		started        DateTime64(3),
		finished       DateTime64(3),
		status         LowCardinality(String),
		maintenance    UInt8,
		cutoff         String,
		records        Int64,
		dropped        UInt32,
		removed        UInt32,
		altered        UInt32,
		expired        Int64,
		last_sequence  Int64,
		last_partition String,
		failed_steps   Array(String)
	)
	ENGINE = MergeTree
	ORDER BY started
`

// CHHistory appends one row per sweep to a MergeTree table
type CHHistory struct {
	CH    store.Clickhouse
	Table string
}

var _ domain.HistorySink = CHHistory{}

func (h CHHistory) table() string {
	if h.Table == "" {
		return DefaultHistoryTable
	}
	return h.Table
}

// Ensure creates the history table when missing
func (h CHHistory) Ensure(ctx context.Context) error {
	return h.CH.Exec(ctx, fmt.Sprintf(historyDDL, h.table()))
}

// Record appends r
func (h CHHistory) Record(ctx context.Context, r domain.Report) error {
	failed := []string{}
	for _, s := range r.Steps {
		if s.Failed() {
			failed = append(failed, string(s.Step))
		}
	}
	var maint uint8
	if r.Maintenance {
		maint = 1
	}
	return h.CH.Append(ctx, h.table(), [][]any{{
		r.RunID, r.Started, r.Finished, string(r.Status), maint, r.Cutoff,
		r.Records, uint32(r.Dropped), uint32(r.Removed), uint32(r.Altered), r.Expired,
		r.Watermark.LastSequence, r.Watermark.LastPartition, failed,
	}})
}
