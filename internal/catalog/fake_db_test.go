package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB understands the handful of statements issued by Postgres and keeps
// rows in memory. Each row is stored in entryColumns order followed by data.
type fakeDB struct {
	rows    map[uuid.UUID][]any
	execErr error
	queries []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[uuid.UUID][]any)}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	switch {
	case strings.HasPrefix(sql, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(sql, "INSERT"):
		id := args[0].(uuid.UUID)
		f.rows[id] = append([]any(nil), args...)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "DELETE"):
		id := args[0].(uuid.UUID)
		if _, ok := f.rows[id]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(f.rows, id)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("fakeDB: unexpected exec %q", sql)
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	if !strings.HasPrefix(sql, "SELECT") {
		return nil, fmt.Errorf("fakeDB: unexpected query %q", sql)
	}
	var out [][]any
	for _, r := range f.rows {
		out = append(out, r[:len(r)-1])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i][8].(time.Time).Before(out[j][8].(time.Time))
	})
	return &fakeRows{rows: out, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	f.queries = append(f.queries, sql)
	r, ok := f.rows[args[0].(uuid.UUID)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: r}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanValues(r.rows[r.pos], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos], nil
}

func scanValues(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("fakeDB: %d values for %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}
