// Package irf holds instrument response functions for imaging air Cherenkov
// telescopes: the Abramowski effective area parametrization and the
// tabulated EffectiveAreaTable with its OGIP ARF file format.
//
// Tables store energies in TeV and areas in m² regardless of the units they
// were built from. A table is never modified after construction.
package irf

import (
	"errors"
	"fmt"
	"math"

	"github.com/bsipocz/gammapy/internal/units"
)

// Default safe energy range used when no thresholds are given.
var (
	DefaultThresholdLo = units.NewEnergy(0.1, units.TeV)
	DefaultThresholdHi = units.NewEnergy(100, units.TeV)
)

// EffectiveAreaTable is a binned effective area response.
type EffectiveAreaTable struct {
	energyLo      []float64 // TeV
	energyHi      []float64 // TeV
	effectiveArea []float64 // m²
	threshLo      float64   // TeV
	threshHi      float64   // TeV
}

// TableOption configures NewEffectiveAreaTable.
type TableOption func(*tableOptions)

type tableOptions struct {
	threshLo units.Energy
	threshHi units.Energy
	strict   bool
}

// WithThresholds sets the safe energy range.
func WithThresholds(lo, hi units.Energy) TableOption {
	return func(o *tableOptions) {
		o.threshLo = lo
		o.threshHi = hi
	}
}

// Strict makes the constructor run Check and fail on any violation.
func Strict() TableOption {
	return func(o *tableOptions) { o.strict = true }
}

// NewEffectiveAreaTable builds a table from bin edges and per-bin areas.
//
// Every quantity must carry a unit; the first argument without one is
// reported as a *ValidationError wrapping ErrNotQuantity. Arguments are
// checked in the order effective_area, energy_hi, energy_lo,
// energy_thresh_lo, energy_thresh_hi. The three slices must have equal
// length.
func NewEffectiveAreaTable(energyLo, energyHi []units.Energy, effectiveArea []units.Area, opts ...TableOption) (*EffectiveAreaTable, error) {
	o := tableOptions{threshLo: DefaultThresholdLo, threshHi: DefaultThresholdHi}
	for _, opt := range opts {
		opt(&o)
	}

	for i, a := range effectiveArea {
		if !a.IsQuantity() {
			return nil, &ValidationError{Field: "effective_area", Index: i, Err: ErrNotQuantity}
		}
	}
	if err := checkEnergies("energy_hi", energyHi); err != nil {
		return nil, err
	}
	if err := checkEnergies("energy_lo", energyLo); err != nil {
		return nil, err
	}
	if !o.threshLo.IsQuantity() {
		return nil, &ValidationError{Field: "energy_thresh_lo", Index: -1, Err: ErrNotQuantity}
	}
	if !o.threshHi.IsQuantity() {
		return nil, &ValidationError{Field: "energy_thresh_hi", Index: -1, Err: ErrNotQuantity}
	}

	if len(energyLo) != len(energyHi) || len(energyLo) != len(effectiveArea) {
		return nil, &ValidationError{
			Field: "energy_lo, energy_hi, effective_area",
			Index: -1,
			Err: fmt.Errorf("%w: %d, %d, %d",
				ErrShape, len(energyLo), len(energyHi), len(effectiveArea)),
		}
	}

	t := &EffectiveAreaTable{
		energyLo:      units.EnergyValues(energyLo, units.TeV),
		energyHi:      units.EnergyValues(energyHi, units.TeV),
		effectiveArea: units.AreaValues(effectiveArea, units.SquareMeter),
		threshLo:      o.threshLo.In(units.TeV),
		threshHi:      o.threshHi.In(units.TeV),
	}
	if o.strict {
		if err := t.Check(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func checkEnergies(field string, es []units.Energy) error {
	for i, e := range es {
		if !e.IsQuantity() {
			return &ValidationError{Field: field, Index: i, Err: ErrNotQuantity}
		}
	}
	return nil
}

// Len returns the number of bins.
func (t *EffectiveAreaTable) Len() int { return len(t.energyHi) }

// EnergyLo returns the lower bin edges in TeV.
func (t *EffectiveAreaTable) EnergyLo() []units.Energy {
	return units.Energies(units.TeV, t.energyLo...)
}

// EnergyHi returns the upper bin edges in TeV.
func (t *EffectiveAreaTable) EnergyHi() []units.Energy {
	return units.Energies(units.TeV, t.energyHi...)
}

// EffectiveArea returns the per-bin areas in m².
func (t *EffectiveAreaTable) EffectiveArea() []units.Area {
	return units.Areas(units.SquareMeter, t.effectiveArea...)
}

// ThresholdLo returns the lower safe energy threshold in TeV.
func (t *EffectiveAreaTable) ThresholdLo() units.Energy {
	return units.NewEnergy(t.threshLo, units.TeV)
}

// ThresholdHi returns the upper safe energy threshold in TeV.
func (t *EffectiveAreaTable) ThresholdHi() units.Energy {
	return units.NewEnergy(t.threshHi, units.TeV)
}

// Check verifies the physical expectations that construction does not
// enforce: every bin has lo < hi, bins ascend, areas are non-negative and
// the lower threshold is below the upper one. All violations are returned
// joined together.
func (t *EffectiveAreaTable) Check() error {
	var errs []error
	for i := range t.energyHi {
		if !(t.energyLo[i] < t.energyHi[i]) {
			errs = append(errs, fmt.Errorf("bin %d: energy_lo %g TeV is not below energy_hi %g TeV",
				i, t.energyLo[i], t.energyHi[i]))
		}
		if i > 0 && t.energyLo[i] < t.energyLo[i-1] {
			errs = append(errs, fmt.Errorf("bin %d: energy_lo %g TeV is below previous bin %g TeV",
				i, t.energyLo[i], t.energyLo[i-1]))
		}
		if t.effectiveArea[i] < 0 || math.IsNaN(t.effectiveArea[i]) {
			errs = append(errs, fmt.Errorf("bin %d: effective_area %g m2 must be non-negative", i, t.effectiveArea[i]))
		}
	}
	if !(t.threshLo < t.threshHi) {
		errs = append(errs, fmt.Errorf("energy_thresh_lo %g TeV is not below energy_thresh_hi %g TeV",
			t.threshLo, t.threshHi))
	}
	return errors.Join(errs...)
}
