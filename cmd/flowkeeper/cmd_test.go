package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	fmdom "flowkeeper/internal/services/flowmaint/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cutoffFlags.date, cutoffFlags.retention, cutoffFlags.mode = "", -1, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCutoffCommand(t *testing.T) {
	t.Setenv("FLOWMAINT_TZ", "UTC")

	out, err := execute(t, "cutoff", "--date", "2025-01-05", "--retention", "10")
	if err != nil {
		t.Fatalf("cutoff: %v", err)
	}
	if !strings.HasPrefix(out, "2024360 2025-01-05 retention=10d mode=daily") {
		t.Fatalf("out = %q", out)
	}

	out, err = execute(t, "cutoff", "--date", "2025-01-05", "--retention", "10", "--mode", "hourly")
	if err != nil || !strings.HasPrefix(out, "202436000 ") {
		t.Fatalf("hourly out = %q err = %v", out, err)
	}

	if _, err := execute(t, "cutoff", "--date", "5/1/2025"); err == nil {
		t.Fatal("bad date should fail")
	}
	if _, err := execute(t, "cutoff", "--mode", "weekly"); err == nil {
		t.Fatal("bad mode should fail")
	}
}

func TestPrintReport(t *testing.T) {
	rep := fmdom.Report{
		RunID:       "r1",
		Status:      fmdom.StatusPartialFailure,
		Maintenance: true,
		Cutoff:      "2024070",
		Started:     time.Unix(0, 0),
		Finished:    time.Unix(2, 0),
		Records:     12,
		Steps: []fmdom.StepOutcome{
			fmdom.Outcome(fmdom.StepWatermark, 12, time.Second, nil),
			fmdom.Outcome(fmdom.StepPrune, 0, time.Second, errors.New("drop failed")),
		},
	}

	var buf bytes.Buffer
	if err := printReport(&buf, rep, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run r1 partial_failure", "FAILED  drop failed", "cutoff 2024070", "STATS: Time:2.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	buf.Reset()
	if err := printReport(&buf, rep, true); err != nil || !strings.Contains(buf.String(), `"run_id": "r1"`) {
		t.Fatalf("json = %s err = %v", buf.String(), err)
	}
}
