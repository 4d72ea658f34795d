package store

import (
	"context"
	"errors"
)

type fakeTag int64

func (t fakeTag) String() string      { return "DELETE" }
func (t fakeTag) RowsAffected() int64 { return int64(t) }

// fakeRows serves data row by row; Scan copies into *int64 or *string
type fakeRows struct {
	data [][]any
	i    int
	err  error
}

func (r *fakeRows) Next() bool        { r.i++; return r.i <= len(r.data) }
func (r *fakeRows) Err() error        { return r.err }
func (r *fakeRows) Close()            {}
func (r *fakeRows) Columns() []string { return nil }
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *string:
			*p = row[i].(string)
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

type fakeRow struct {
	v   any
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch p := dest[0].(type) {
	case *int64:
		*p = r.v.(int64)
	case *string:
		*p = r.v.(string)
	}
	return nil
}

type fakeQuerier struct {
	rows    *fakeRows
	row     fakeRow
	tag     fakeTag
	err     error
	lastSQL string
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	f.lastSQL = sql
	return f.tag, f.err
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (Rows, error) {
	f.lastSQL = sql
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) Row {
	f.lastSQL = sql
	return f.row
}

func (f *fakeQuerier) Tx(ctx context.Context, fn func(q RowQuerier) error) error { return fn(f) }

// pingable wraps fakeQuerier with Ping and Close for Guard and Close tests
type pingable struct {
	fakeQuerier
	pingErr  error
	closeErr error
	closed   bool
}

func (p *pingable) Ping(context.Context) error { return p.pingErr }
func (p *pingable) Close() error               { p.closed = true; return p.closeErr }
