package domain

import (
	"fmt"
	"time"

	perr "flowkeeper/internal/platform/errors"
)

// TableInfo is one row of the relation catalog
type TableInfo struct {
	Name   string
	Engine string
}

// Partition is a table named <prefix><suffix> with a parseable suffix
type Partition struct {
	Name   string `json:"name"`
	Key    Key    `json:"-"`
	Suffix string `json:"suffix"`
	Engine string `json:"engine"`
}

// Watermark is the persisted ingestion position
type Watermark struct {
	LastChange    time.Time `json:"last_change"`
	LastSequence  int64     `json:"last_sequence"`
	LastPartition string    `json:"last_partition,omitempty"`
}

// Fresh reports whether no sequence has been consumed yet
func (w Watermark) Fresh() bool { return w.LastSequence == 0 }

// Tally is a row count plus the largest sequence seen, 0 for an empty set
type Tally struct {
	Rows   int64
	MaxSeq int64
}

// Advance is the result of one watermark step
type Advance struct {
	Records   int64  `json:"records"`
	Sequence  int64  `json:"sequence"`
	Partition string `json:"partition,omitempty"`
	Scanned   int    `json:"scanned"`
}

// Apply returns w moved to the advance. An empty window keeps the stored position
func (a Advance) Apply(w Watermark) Watermark {
	if a.Partition == "" {
		return w
	}
	w.LastPartition, w.LastSequence = a.Partition, a.Sequence
	return w
}

// ShardCacheEntry is one cached parallel query result keyed by its source partition
type ShardCacheEntry struct {
	Checksum        string `json:"checksum"`
	MappedTable     string `json:"mapped_table"`
	MappedPartition string `json:"mapped_partition"`
}

// Policy is the effective maintenance configuration for one sweep
type Policy struct {
	Prefix         string        `json:"prefix"`
	RetentionDays  int           `json:"retention_days"`
	Granularity    Granularity   `json:"granularity"`
	DefaultEngine  string        `json:"default_engine"`
	PollerInterval time.Duration `json:"poller_interval"`
	EngineSkip     int           `json:"engine_skip"`
	EngineWindow   int           `json:"engine_window"`
	ReportSource   string        `json:"report_source"`
}

// Step names a sweep sub-step
type Step string

const (
	StepWatermark Step = "watermark"
	StepEngine    Step = "engine"
	StepPrune     Step = "prune"
	StepReconcile Step = "reconcile"
	StepReportLog Step = "report_log"
	StepPersist   Step = "persist"
)

// StepOutcome records one sub-step. Err stays in-process, Error and Code go over the wire
type StepOutcome struct {
	Step    Step          `json:"step"`
	Count   int64         `json:"count"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Skipped bool          `json:"skipped,omitempty"`
	Timeout bool          `json:"timeout,omitempty"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
	Code    string        `json:"code,omitempty"`
}

// Outcome builds a StepOutcome and fills the wire fields from err
func Outcome(step Step, count int64, elapsed time.Duration, err error) StepOutcome {
	o := StepOutcome{Step: step, Count: count, Elapsed: elapsed, Err: err}
	if err != nil {
		o.Error = err.Error()
		o.Code = perr.CodeOf(err).String()
		o.Timeout = perr.IsTimeout(err)
	}
	return o
}

// Failed reports whether the step ran and returned an error
func (o StepOutcome) Failed() bool { return o.Err != nil }

// Status is the folded result of a sweep
type Status string

const (
	StatusIdle           Status = "idle"
	StatusRunning        Status = "running"
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
)

// Fold returns Success when no step failed, PartialFailure otherwise
func Fold(steps []StepOutcome) Status {
	for _, s := range steps {
		if s.Failed() {
			return StatusPartialFailure
		}
	}
	return StatusSuccess
}

// Report summarizes one sweep
type Report struct {
	RunID       string        `json:"run_id"`
	Started     time.Time     `json:"started"`
	Finished    time.Time     `json:"finished"`
	Status      Status        `json:"status"`
	Maintenance bool          `json:"maintenance"`
	Forced      bool          `json:"forced"`
	Cutoff      string        `json:"cutoff,omitempty"`
	Steps       []StepOutcome `json:"steps"`
	Watermark   Watermark     `json:"watermark"`
	Records     int64         `json:"records"`
	Dropped     int           `json:"dropped"`
	Removed     int           `json:"removed"`
	Altered     int           `json:"altered"`
	Expired     int64         `json:"expired"`
	Listeners   int64         `json:"listeners"`
	Schedules   int64         `json:"schedules"`
}

// Elapsed is the wall time of the sweep
func (r Report) Elapsed() time.Duration { return r.Finished.Sub(r.Started) }

// Stats renders the summary line stored with the watermark
func (r Report) Stats() string {
	return fmt.Sprintf("Time:%0.2f Listeners:%d Newrecs:%d Schedules:%d",
		r.Elapsed().Seconds(), r.Listeners, r.Records, r.Schedules)
}

// Step returns the outcome for name, if that step ran
func (r Report) Step(name Step) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// Checkpoint is what a sweep persists. A nil Watermark leaves the stored position alone
type Checkpoint struct {
	LastChange time.Time
	Stats      string
	Watermark  *Watermark
}
