package irf

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bsipocz/gammapy/internal/units"
)

// EffectiveAreaAtEnergy returns the area of the bin whose upper edge is
// closest to energy. There is no interpolation and no range check: energies
// outside the table get the area of the nearest edge bin. Ties go to the
// lower bin index.
func (t *EffectiveAreaTable) EffectiveAreaAtEnergy(energy units.Energy) (units.Area, error) {
	if !energy.IsQuantity() {
		return units.Area{}, &ValidationError{Field: "energy", Index: -1, Err: ErrNotQuantity}
	}
	i, err := t.nearestBin(energy.In(units.TeV))
	if err != nil {
		return units.Area{}, err
	}
	return units.NewArea(t.effectiveArea[i], units.SquareMeter), nil
}

func (t *EffectiveAreaTable) nearestBin(e float64) (int, error) {
	if len(t.energyHi) == 0 {
		return 0, ErrEmptyTable
	}
	dist := make([]float64, len(t.energyHi))
	for i, hi := range t.energyHi {
		dist[i] = math.Abs(hi - e)
	}
	return floats.MinIdx(dist), nil
}
