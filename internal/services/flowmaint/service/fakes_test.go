package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"flowkeeper/internal/modkit/repokit"
	"flowkeeper/internal/platform/store"
	"flowkeeper/internal/services/flowmaint/domain"
)

type memRow struct {
	seq int64
	end time.Time
}

type memTable struct {
	engine string
	rows   []memRow
}

// memRepo is an in-memory flow database
type memRepo struct {
	mu sync.Mutex

	tables    map[string]*memTable
	cache     []domain.ShardCacheEntry
	settings  map[string]string
	reportLog int64
	listeners int64
	schedules int64

	failList    error
	failExists  error
	failCount   error
	failGet     error
	failPut     error
	failCache   error
	failDrop    map[string]error
	failAlter   map[string]error
	blockDrop   bool
	existsCalls int
	drops       []string
	alters      []string
	puts        []map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		tables:    map[string]*memTable{},
		settings:  map[string]string{},
		failDrop:  map[string]error{},
		failAlter: map[string]error{},
	}
}

func (m *memRepo) addTable(name, engine string, rows ...memRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = &memTable{engine: engine, rows: rows}
}

func (m *memRepo) appendRows(name string, rows ...memRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name].rows = append(m.tables[name].rows, rows...)
}

func (m *memRepo) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[name]
	return ok
}

func (m *memRepo) ListTables(_ context.Context, prefix string) ([]domain.TableInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []domain.TableInfo
	for name, t := range m.tables {
		if strings.HasPrefix(name, prefix) {
			out = append(out, domain.TableInfo{Name: name, Engine: t.engine})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (m *memRepo) TableExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.failExists != nil {
		return false, m.failExists
	}
	_, ok := m.tables[name]
	return ok, nil
}

func (m *memRepo) DropTable(ctx context.Context, name string) error {
	if m.blockDrop {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDrop[name]; err != nil {
		return err
	}
	delete(m.tables, name)
	m.drops = append(m.drops, name)
	return nil
}

func (m *memRepo) SetEngine(_ context.Context, name, engine string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failAlter[name]; err != nil {
		return err
	}
	m.tables[name].engine = engine
	m.alters = append(m.alters, name)
	return nil
}

func (m *memRepo) tally(table string, keep func(memRow) bool) (domain.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCount != nil {
		return domain.Tally{}, m.failCount
	}
	t, ok := m.tables[table]
	if !ok {
		return domain.Tally{}, errors.New("relation does not exist")
	}
	var out domain.Tally
	for _, r := range t.rows {
		if keep(r) {
			out.Rows++
			out.MaxSeq = max(out.MaxSeq, r.seq)
		}
	}
	return out, nil
}

func (m *memRepo) CountSince(_ context.Context, table string, since time.Time) (domain.Tally, error) {
	return m.tally(table, func(r memRow) bool { return !r.end.Before(since) })
}

func (m *memRepo) CountAfter(_ context.Context, table string, seq int64) (domain.Tally, error) {
	return m.tally(table, func(r memRow) bool { return r.seq > seq })
}

func (m *memRepo) CountAll(_ context.Context, table string) (domain.Tally, error) {
	return m.tally(table, func(memRow) bool { return true })
}

func (m *memRepo) ListShardCache(context.Context) ([]domain.ShardCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCache != nil {
		return nil, m.failCache
	}
	return append([]domain.ShardCacheEntry(nil), m.cache...), nil
}

func (m *memRepo) DeleteShardCache(_ context.Context, e domain.ShardCacheEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cache {
		if c == e {
			m.cache = append(m.cache[:i], m.cache[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memRepo) ExpireReportLog(context.Context, int, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.reportLog
	m.reportLog = 0
	return n, nil
}

func (m *memRepo) GetSettings(_ context.Context, names ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	out := map[string]string{}
	for _, n := range names {
		if v, ok := m.settings[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

func (m *memRepo) PutSettings(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	cp := map[string]string{}
	for k, v := range kv {
		m.settings[k] = v
		cp[k] = v
	}
	m.puts = append(m.puts, cp)
	return nil
}

func (m *memRepo) CountListeners(context.Context) (int64, error) { return m.listeners, nil }

func (m *memRepo) CountDueSchedules(context.Context, time.Time, string) (int64, error) {
	return m.schedules, nil
}

// memDB satisfies repokit.TxRunner; the binder ignores it and returns the shared memRepo
type memDB struct{ txs int }

func (d *memDB) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (d *memDB) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (d *memDB) QueryRow(context.Context, string, ...any) store.Row            { return nil }
func (d *memDB) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	d.txs++
	return fn(d)
}

func binderFor(m *memRepo) repokit.Binder[domain.StorageRepo] {
	return repokit.BindFunc[domain.StorageRepo](func(repokit.Queryer) domain.StorageRepo { return m })
}

// seq builds rows lo..hi ending at end
func seq(lo, hi int64, end time.Time) []memRow {
	var out []memRow
	for s := lo; s <= hi; s++ {
		out = append(out, memRow{seq: s, end: end})
	}
	return out
}

const prefix = "plugin_flowview_raw_"
