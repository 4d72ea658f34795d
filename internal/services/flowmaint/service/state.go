package service

import (
	"context"
	"strconv"
	"time"

	"flowkeeper/internal/modkit/repokit"
	perr "flowkeeper/internal/platform/errors"
	"flowkeeper/internal/platform/logger"
	"flowkeeper/internal/services/flowmaint/domain"
)

// Setting names shared with the flow collector's options table
const (
	SettingLastChange     = "flowview_last_change"
	SettingLastSequence   = "flowview_last_sequence"
	SettingLastTable      = "flowview_last_table"
	SettingStats          = "flowview_stats"
	SettingRetention      = "flowview_retention"
	SettingPartitionMode  = "flowview_partition"
	SettingDefaultEngine  = "flowview_default_engine"
	SettingPollerInterval = "poller_interval"
)

// SettingsState keeps the watermark and policy overrides in the settings table
type SettingsState struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.StorageRepo]
}

var (
	_ domain.StateStore   = SettingsState{}
	_ domain.PolicySource = SettingsState{}
)

// Load reads the watermark; found is false when no sweep has ever saved one
func (s SettingsState) Load(ctx context.Context) (domain.Watermark, bool, error) {
	kv, err := s.Binder.Bind(s.DB).GetSettings(ctx, SettingLastChange, SettingLastSequence, SettingLastTable)
	if err != nil {
		return domain.Watermark{}, false, perr.FromPostgres(err, "flowmaint: load watermark")
	}

	var w domain.Watermark
	raw, found := kv[SettingLastChange]
	if found {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Watermark{}, false, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "flowmaint: bad %s %q", SettingLastChange, raw)
		}
		w.LastChange = time.Unix(secs, 0)
	}
	if v := kv[SettingLastSequence]; v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return domain.Watermark{}, false, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "flowmaint: bad %s %q", SettingLastSequence, v)
		}
		w.LastSequence = seq
	}
	w.LastPartition = kv[SettingLastTable]
	return w, found, nil
}

// Save writes the checkpoint in one transaction
func (s SettingsState) Save(ctx context.Context, cp domain.Checkpoint) error {
	kv := map[string]string{
		SettingLastChange: strconv.FormatInt(cp.LastChange.Unix(), 10),
		SettingStats:      cp.Stats,
	}
	if cp.Watermark != nil {
		kv[SettingLastSequence] = strconv.FormatInt(cp.Watermark.LastSequence, 10)
		kv[SettingLastTable] = cp.Watermark.LastPartition
	}
	err := repokit.WithTx(ctx, s.DB, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).PutSettings(ctx, kv)
	})
	return perr.FromPostgres(err, "flowmaint: save checkpoint")
}

// Policy overlays stored values on defaults. Unparseable overrides are logged and ignored
func (s SettingsState) Policy(ctx context.Context, defaults domain.Policy) (domain.Policy, error) {
	kv, err := s.Binder.Bind(s.DB).GetSettings(ctx,
		SettingRetention, SettingPartitionMode, SettingDefaultEngine, SettingPollerInterval)
	if err != nil {
		return defaults, perr.FromPostgres(err, "flowmaint: load policy")
	}
	return applyOverrides(ctx, defaults, kv), nil
}

func applyOverrides(ctx context.Context, p domain.Policy, kv map[string]string) domain.Policy {
	l := logger.C(ctx)
	if v, ok := kv[SettingRetention]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.RetentionDays = n
		} else {
			l.Warn().Str("setting", SettingRetention).Str("value", v).Msg("flowmaint: ignoring bad override")
		}
	}
	if v, ok := kv[SettingPartitionMode]; ok && v != "" {
		if g, err := domain.ParseGranularity(v); err == nil {
			p.Granularity = g
		} else {
			l.Warn().Str("setting", SettingPartitionMode).Str("value", v).Msg("flowmaint: ignoring bad override")
		}
	}
	if v := kv[SettingDefaultEngine]; v != "" {
		p.DefaultEngine = v
	}
	if v, ok := kv[SettingPollerInterval]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PollerInterval = time.Duration(n) * time.Second
		} else {
			l.Warn().Str("setting", SettingPollerInterval).Str("value", v).Msg("flowmaint: ignoring bad override")
		}
	}
	return p
}
