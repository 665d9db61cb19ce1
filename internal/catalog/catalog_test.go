package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/units"
)

func sampleTable(t *testing.T) *irf.EffectiveAreaTable {
	t.Helper()
	tbl, err := irf.NewEffectiveAreaTable(
		units.Energies(units.TeV, 0.1, 1),
		units.Energies(units.TeV, 1, 10),
		units.Areas(units.SquareMeter, 100, 900),
		irf.WithThresholds(units.NewEnergy(0.5, units.TeV), units.NewEnergy(20, units.TeV)),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// stepClock returns increasing times so List order is deterministic.
func stepClock() func() time.Time {
	base := time.Date(2026, 1, 23, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func catalogs() map[string]func() Catalog {
	return map[string]func() Catalog{
		"memory": func() Catalog {
			m := NewMemory()
			m.now = stepClock()
			return m
		},
		"postgres": func() Catalog {
			p := NewPostgres(newFakeDB())
			p.now = stepClock()
			return p
		},
	}
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	meta := irf.ARFMeta{Telescope: "HESS", Instrument: "HESS", Filter: "NONE"}

	for name, newCatalog := range catalogs() {
		t.Run(name, func(t *testing.T) {
			c := newCatalog()

			first, err := c.Save(ctx, "run-1", meta, sampleTable(t))
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if first.ID == uuid.Nil {
				t.Error("Save() returned a nil id")
			}
			if first.Bins != 2 || first.ThresholdLo != 0.5 || first.ThresholdHi != 20 {
				t.Errorf("Save() entry = %+v", first)
			}
			second, err := c.Save(ctx, "run-2", irf.DefaultARFMeta(), sampleTable(t))
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			rec, err := c.Get(ctx, first.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if diff := cmp.Diff(first, rec.Entry); diff != "" {
				t.Errorf("Get() entry mismatch (-want +got):\n%s", diff)
			}
			tbl, err := rec.Table()
			if err != nil {
				t.Fatalf("Table() error = %v", err)
			}
			got := units.AreaValues(tbl.EffectiveArea(), units.SquareMeter)
			if diff := cmp.Diff([]float64{100, 900}, got, cmpopts.EquateApprox(1e-6, 0)); diff != "" {
				t.Errorf("stored areas mismatch (-want +got):\n%s", diff)
			}

			list, err := c.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if diff := cmp.Diff([]Entry{first, second}, list); diff != "" {
				t.Errorf("List() mismatch (-want +got):\n%s", diff)
			}

			if err := c.Delete(ctx, first.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := c.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
			}
			if err := c.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSave_RequiresName(t *testing.T) {
	for name, newCatalog := range catalogs() {
		t.Run(name, func(t *testing.T) {
			if _, err := newCatalog().Save(context.Background(), "", irf.DefaultARFMeta(), sampleTable(t)); err == nil {
				t.Error("Save() without a name should fail")
			}
		})
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	e, err := m.Save(ctx, "run", irf.DefaultARFMeta(), sampleTable(t))
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := m.Get(ctx, e.ID)
	rec.Data[0] = 'X'

	again, _ := m.Get(ctx, e.ID)
	if again.Data[0] != 'S' {
		t.Error("stored data changed through a returned record")
	}
}

func TestPostgres_EnsureSchema(t *testing.T) {
	db := newFakeDB()
	if err := NewPostgres(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.queries) != 1 || db.queries[0] != schemaSQL {
		t.Errorf("queries = %q", db.queries)
	}

	db.execErr = errors.New("connection refused")
	if err := NewPostgres(db).EnsureSchema(context.Background()); !errors.Is(err, db.execErr) {
		t.Errorf("EnsureSchema() error = %v, want wrapped exec error", err)
	}
}
