package irf

import (
	"fmt"
	"math"
	"strings"

	"github.com/bsipocz/gammapy/internal/units"
)

// Instrument names a telescope class with a known effective area
// parametrization.
type Instrument string

const (
	HESS  Instrument = "HESS"
	HESS2 Instrument = "HESS2"
	CTA   Instrument = "CTA"
)

// abramowskiParams holds g1 (cm²), g2 (dimensionless) and g3 (MeV).
type abramowskiParams struct {
	g1, g2, g3 float64
}

// Appendix B of Abramowski et al. (2010), MNRAS 402, 1342.
var abramowskiTable = map[Instrument]abramowskiParams{
	HESS:  {g1: 6.85e9, g2: 0.0891, g3: 5e5},
	HESS2: {g1: 2.05e9, g2: 0.0891, g3: 1e5},
	CTA:   {g1: 1.71e11, g2: 0.0891, g3: 1e5},
}

// Instruments returns the instruments with a parametrization, in a fixed order.
func Instruments() []Instrument {
	return []Instrument{HESS, HESS2, CTA}
}

func instrumentList() string {
	names := make([]string, 0, len(abramowskiTable))
	for _, in := range Instruments() {
		names = append(names, string(in))
	}
	return strings.Join(names, ", ")
}

// ParseInstrument validates an instrument name. Matching is exact.
func ParseInstrument(name string) (Instrument, error) {
	in := Instrument(name)
	if _, ok := abramowskiTable[in]; !ok {
		return "", fmt.Errorf("%w: %s; valid instruments: %s", ErrUnknownInstrument, name, instrumentList())
	}
	return in, nil
}

// AbramowskiEffectiveArea evaluates
//
//	A(E) = g1 * E^(-g2) * exp(-g3 / E)
//
// with E in MeV. The result is always in cm².
func AbramowskiEffectiveArea(energy units.Energy, instrument Instrument) (units.Area, error) {
	if !energy.IsQuantity() {
		return units.Area{}, &ValidationError{Field: "energy", Index: -1, Err: ErrNotQuantity}
	}
	p, ok := abramowskiTable[instrument]
	if !ok {
		return units.Area{}, fmt.Errorf("%w: %s; valid instruments: %s", ErrUnknownInstrument, instrument, instrumentList())
	}

	e := energy.In(units.MeV)
	value := p.g1 * math.Pow(e, -p.g2) * math.Exp(-p.g3/e)
	return units.NewArea(value, units.SquareCentimeter), nil
}
