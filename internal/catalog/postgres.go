package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bsipocz/gammapy/internal/irf"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS arf_tables (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	telescope   TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	filter      TEXT NOT NULL,
	bins        INTEGER NOT NULL,
	thresh_lo   DOUBLE PRECISION NOT NULL,
	thresh_hi   DOUBLE PRECISION NOT NULL,
	data        BYTEA NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

const (
	entryColumns = "id, name, telescope, instrument, filter, bins, thresh_lo, thresh_hi, created_at"

	insertSQL = `INSERT INTO arf_tables (` + entryColumns + `, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	getSQL    = `SELECT ` + entryColumns + `, data FROM arf_tables WHERE id = $1`
	listSQL   = `SELECT ` + entryColumns + ` FROM arf_tables ORDER BY created_at, name`
	deleteSQL = `DELETE FROM arf_tables WHERE id = $1`
)

// Postgres is a Catalog stored in the arf_tables table.
type Postgres struct {
	db  DBTX
	now func() time.Time
}

// NewPostgres returns a catalog using db. Call EnsureSchema once before use.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// EnsureSchema creates the arf_tables table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create arf_tables: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, name string, meta irf.ARFMeta, t *irf.EffectiveAreaTable) (Entry, error) {
	rec, err := newRecord(name, meta, t, p.now())
	if err != nil {
		return Entry{}, err
	}
	e := rec.Entry
	_, err = p.db.Exec(ctx, insertSQL,
		e.ID, e.Name, e.Telescope, e.Instrument, e.Filter, e.Bins,
		e.ThresholdLo, e.ThresholdHi, e.CreatedAt, rec.Data)
	if err != nil {
		return Entry{}, fmt.Errorf("insert arf table %q: %w", name, err)
	}
	return e, nil
}

func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var rec Record
	dest := append(entryDest(&rec.Entry), &rec.Data)
	if err := p.db.QueryRow(ctx, getSQL, id).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get arf table %s: %w", id, err)
	}
	return &rec, nil
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list arf tables: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(entryDest(&e)...); err != nil {
			return nil, fmt.Errorf("scan arf table: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list arf tables: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete arf table %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// entryDest returns scan targets in entryColumns order.
func entryDest(e *Entry) []any {
	return []any{
		&e.ID, &e.Name, &e.Telescope, &e.Instrument, &e.Filter, &e.Bins,
		&e.ThresholdLo, &e.ThresholdHi, &e.CreatedAt,
	}
}
