package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeSQL records statements and replays canned rows.
type fakeSQL struct {
	execTag  pgconn.CommandTag
	execErr  error
	row      []any
	rowErr   error
	rows     [][]any
	queryErr error

	queries []string
	args    [][]any
}

func (f *fakeSQL) record(query string, args []any) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.record(query, args)
	return f.execTag, f.execErr
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.record(query, args)
	if f.rowErr != nil {
		return stubRow{scan: func(...any) error { return f.rowErr }}
	}
	values := f.row
	return stubRow{scan: func(dest ...any) error { return assign(dest, values) }}
}

func (f *fakeSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	f.record(query, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &stubRows{values: f.rows, idx: -1}, nil
}

func (f *fakeSQL) lastArgs() []any {
	if len(f.args) == 0 {
		return nil
	}
	return f.args[len(f.args)-1]
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubRows struct {
	values [][]any
	idx    int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx < len(r.values)
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.values) {
		return errors.New("scan outside of rows")
	}
	return assign(dest, r.values[r.idx])
}

func (r *stubRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

// assign copies values into scan destinations; a nil value zeroes the target.
func assign(dest []any, values []any) error {
	if values == nil {
		return pgx.ErrNoRows
	}
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}
