package irf

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bsipocz/gammapy/internal/units"
)

// MaxBins is the largest bin count LogEnergyEdges accepts.
const MaxBins = 1_000_000

// LogEnergyEdges returns n+1 logarithmically spaced bin edges from emin to emax.
func LogEnergyEdges(emin, emax units.Energy, n int) ([]units.Energy, error) {
	if !emin.IsQuantity() {
		return nil, &ValidationError{Field: "emin", Index: -1, Err: ErrNotQuantity}
	}
	if !emax.IsQuantity() {
		return nil, &ValidationError{Field: "emax", Index: -1, Err: ErrNotQuantity}
	}
	if n < 1 || n > MaxBins {
		return nil, fmt.Errorf("bins must be between 1 and %d, got %d", MaxBins, n)
	}
	lo, hi := emin.In(units.TeV), emax.In(units.TeV)
	if !(lo > 0 && lo < hi) {
		return nil, fmt.Errorf("energy range must satisfy 0 < emin < emax, got %s to %s", emin, emax)
	}

	edges := floats.LogSpan(make([]float64, n+1), lo, hi)
	return units.Energies(units.TeV, edges...), nil
}

// NewTableFromParametrization evaluates the Abramowski parametrization of
// instrument at the logarithmic centre of each bin between consecutive
// edges. Options are passed to NewEffectiveAreaTable.
func NewTableFromParametrization(instrument Instrument, edges []units.Energy, opts ...TableOption) (*EffectiveAreaTable, error) {
	if len(edges) < 2 {
		return nil, errors.New("at least two energy edges are required")
	}
	if err := checkEnergies("edges", edges); err != nil {
		return nil, err
	}

	n := len(edges) - 1
	lo := make([]units.Energy, n)
	hi := make([]units.Energy, n)
	area := make([]units.Area, n)
	for i := 0; i < n; i++ {
		lo[i], hi[i] = edges[i], edges[i+1]
		centre := math.Sqrt(lo[i].In(units.TeV) * hi[i].In(units.TeV))
		a, err := AbramowskiEffectiveArea(units.NewEnergy(centre, units.TeV), instrument)
		if err != nil {
			return nil, err
		}
		area[i] = a
	}
	return NewEffectiveAreaTable(lo, hi, area, opts...)
}
