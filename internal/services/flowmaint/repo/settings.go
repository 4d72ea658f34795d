package repo

import (
	"context"
	"sort"

	"flowkeeper/internal/platform/store"
)

type setting struct{ name, value string }

// GetSettings returns the stored values of names; absent names are left out
func (r *queries) GetSettings(ctx context.Context, names ...string) (map[string]string, error) {
	rows, err := store.Many(ctx, r.q, func(row store.Row) (setting, error) {
		var s setting
		err := row.Scan(&s.name, &s.value)
		return s, err
	}, `SELECT name, value FROM settings WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.name] = s.value
	}
	return out, nil
}

// PutSettings upserts every pair. Callers wanting atomicity bind the repo inside a Tx
func (r *queries) PutSettings(ctx context.Context, kv map[string]string) error {
	names := make([]string, 0, len(kv))
	for k := range kv {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO settings (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
		`, k, kv[k]); err != nil {
			return err
		}
	}
	return nil
}
