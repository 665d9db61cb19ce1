package irf

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bsipocz/gammapy/internal/units"
)

// DefaultInfoEnergies are the energies reported by Info when none are given.
var DefaultInfoEnergies = []units.Energy{
	units.NewEnergy(1, units.TeV),
	units.NewEnergy(10, units.TeV),
}

// Stats summarises one array of the table.
type Stats struct {
	Size int
	Min  float64
	Max  float64
	Mean float64
	Unit string
}

func newStats(values []float64, unit string) Stats {
	s := Stats{Size: len(values), Unit: unit}
	if len(values) == 0 {
		return s
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean = stat.Mean(values, nil)
	return s
}

func (s Stats) String() string {
	if s.Size == 0 {
		return "size = 0"
	}
	return fmt.Sprintf("size = %d, min = %.3f %s, max = %.3f %s, mean = %.3f %s",
		s.Size, s.Min, s.Unit, s.Max, s.Unit, s.Mean, s.Unit)
}

// Summary holds the values reported by Info.
type Summary struct {
	EnergyLo      Stats
	EnergyHi      Stats
	EffectiveArea Stats
	ThresholdLo   units.Energy
	ThresholdHi   units.Energy
	Lookups       []Lookup
}

// Lookup is one effective area evaluated at a requested energy.
type Lookup struct {
	Energy units.Energy
	Area   units.Area
}

// Summarize computes the statistics shown by Info and looks up the
// effective area at each energy, defaulting to DefaultInfoEnergies.
func (t *EffectiveAreaTable) Summarize(energies ...units.Energy) (Summary, error) {
	if len(energies) == 0 {
		energies = DefaultInfoEnergies
	}
	s := Summary{
		EnergyLo:      newStats(t.energyLo, units.TeV.String()),
		EnergyHi:      newStats(t.energyHi, units.TeV.String()),
		EffectiveArea: newStats(t.effectiveArea, units.SquareMeter.String()),
		ThresholdLo:   t.ThresholdLo(),
		ThresholdHi:   t.ThresholdHi(),
	}
	for _, e := range energies {
		a, err := t.EffectiveAreaAtEnergy(e)
		if err != nil {
			return Summary{}, err
		}
		s.Lookups = append(s.Lookups, Lookup{Energy: e, Area: a})
	}
	return s, nil
}

func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("\nSummary ARF info\n")
	b.WriteString("----------------\n")
	fmt.Fprintf(&b, "Energy lo: %s\n", s.EnergyLo)
	fmt.Fprintf(&b, "Energy hi: %s\n", s.EnergyHi)
	fmt.Fprintf(&b, "Effective area: %s\n", s.EffectiveArea)
	fmt.Fprintf(&b, "Safe energy threshold lo: %s\n", s.ThresholdLo.Fmt("%6.3f"))
	fmt.Fprintf(&b, "Safe energy threshold hi: %s\n", s.ThresholdHi.Fmt("%6.3f"))
	for _, l := range s.Lookups {
		fmt.Fprintf(&b, "Effective area at E = %s: %s\n", l.Energy.Fmt("%4.1f"), l.Area.Fmt("%10.0f"))
	}
	return b.String()
}

// Info returns a human readable report of the table. See Summarize.
func (t *EffectiveAreaTable) Info(energies ...units.Energy) (string, error) {
	s, err := t.Summarize(energies...)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}
