// Package catalog stores effective area tables by id.
//
// Tables are kept as encoded ARF files, so everything read back from a
// catalog has been through the same FITS codec as a file on disk.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bsipocz/gammapy/internal/fits"
	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/units"
)

// ErrNotFound is returned when no table has the requested id.
var ErrNotFound = errors.New("arf table not found")

// Entry describes a stored table.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Telescope   string    `json:"telescope"`
	Instrument  string    `json:"instrument"`
	Filter      string    `json:"filter"`
	Bins        int       `json:"bins"`
	ThresholdLo float64   `json:"thresh_lo_tev"`
	ThresholdHi float64   `json:"thresh_hi_tev"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record is an entry together with its encoded ARF file.
type Record struct {
	Entry
	Data []byte
}

// Table decodes the stored ARF file.
func (r *Record) Table() (*irf.EffectiveAreaTable, error) {
	l, err := fits.Decode(bytes.NewReader(r.Data))
	if err != nil {
		return nil, fmt.Errorf("decode table %s: %w", r.ID, err)
	}
	return irf.FromFITS(l)
}

// Catalog is a store of effective area tables.
type Catalog interface {
	Save(ctx context.Context, name string, meta irf.ARFMeta, t *irf.EffectiveAreaTable) (Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// newRecord encodes t and fills in a fresh entry.
func newRecord(name string, meta irf.ARFMeta, t *irf.EffectiveAreaTable, now time.Time) (*Record, error) {
	if name == "" {
		return nil, errors.New("table name is required")
	}
	l, err := t.ToFITS(meta)
	if err != nil {
		return nil, err
	}
	data, err := l.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode table %q: %w", name, err)
	}

	return &Record{
		Entry: Entry{
			ID:          uuid.New(),
			Name:        name,
			Telescope:   meta.Telescope,
			Instrument:  meta.Instrument,
			Filter:      meta.Filter,
			Bins:        t.Len(),
			ThresholdLo: t.ThresholdLo().In(units.TeV),
			ThresholdHi: t.ThresholdHi().In(units.TeV),
			CreatedAt:   now.UTC(),
		},
		Data: data,
	}, nil
}
