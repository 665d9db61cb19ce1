// Package units provides the dimensioned quantities used by the instrument
// response code: energies and areas.
//
// Energy and Area are distinct types, so passing an area where an energy is
// expected does not compile. The zero value of either type carries no unit;
// it stands for a bare number and is rejected by every validating boundary.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoUnit is returned when a value has no unit attached.
	ErrNoUnit = errors.New("value has no unit")

	// ErrUnknownUnit is returned when a unit string is not recognised for the
	// requested dimension.
	ErrUnknownUnit = errors.New("unknown unit")
)

// EnergyUnit is a unit of energy. The zero value is "no unit".
type EnergyUnit int

const (
	noEnergyUnit EnergyUnit = iota
	EV
	KeV
	MeV
	GeV
	TeV
	PeV
	Erg
)

// energyScale holds the size of each unit in eV.
var energyScale = map[EnergyUnit]float64{
	EV:  1,
	KeV: 1e3,
	MeV: 1e6,
	GeV: 1e9,
	TeV: 1e12,
	PeV: 1e15,
	Erg: 6.241509074460763e11,
}

var energyNames = map[EnergyUnit]string{
	EV:  "eV",
	KeV: "keV",
	MeV: "MeV",
	GeV: "GeV",
	TeV: "TeV",
	PeV: "PeV",
	Erg: "erg",
}

func (u EnergyUnit) String() string {
	if name, ok := energyNames[u]; ok {
		return name
	}
	return ""
}

// AreaUnit is a unit of area. The zero value is "no unit".
type AreaUnit int

const (
	noAreaUnit AreaUnit = iota
	SquareCentimeter
	SquareMeter
	SquareKilometer
)

// areaScale holds the size of each unit in m².
var areaScale = map[AreaUnit]float64{
	SquareCentimeter: 1e-4,
	SquareMeter:      1,
	SquareKilometer:  1e6,
}

var areaNames = map[AreaUnit]string{
	SquareCentimeter: "cm2",
	SquareMeter:      "m2",
	SquareKilometer:  "km2",
}

func (u AreaUnit) String() string {
	if name, ok := areaNames[u]; ok {
		return name
	}
	return ""
}

// Energy is an energy value paired with its unit.
type Energy struct {
	value float64
	unit  EnergyUnit
}

// NewEnergy returns an energy of v in unit u.
func NewEnergy(v float64, u EnergyUnit) Energy {
	return Energy{value: v, unit: u}
}

// Energies returns one energy per value, all in unit u.
func Energies(u EnergyUnit, values ...float64) []Energy {
	out := make([]Energy, len(values))
	for i, v := range values {
		out[i] = Energy{value: v, unit: u}
	}
	return out
}

// IsQuantity reports whether e carries a known unit.
func (e Energy) IsQuantity() bool {
	_, ok := energyScale[e.unit]
	return ok
}

// Value returns the number in e's own unit.
func (e Energy) Value() float64 { return e.value }

// Unit returns e's unit.
func (e Energy) Unit() EnergyUnit { return e.unit }

// In returns the value of e expressed in u. It returns NaN when either side
// has no unit.
func (e Energy) In(u EnergyUnit) float64 {
	from, ok1 := energyScale[e.unit]
	to, ok2 := energyScale[u]
	if !ok1 || !ok2 {
		return math.NaN()
	}
	if e.unit == u {
		return e.value
	}
	return e.value * from / to
}

// To converts e to u.
func (e Energy) To(u EnergyUnit) Energy {
	return Energy{value: e.In(u), unit: u}
}

func (e Energy) String() string {
	if !e.IsQuantity() {
		return strconv.FormatFloat(e.value, 'g', -1, 64)
	}
	return strconv.FormatFloat(e.value, 'g', -1, 64) + " " + e.unit.String()
}

// Fmt formats the number with verb (for example "%6.3f") followed by the unit.
func (e Energy) Fmt(verb string) string {
	return fmt.Sprintf(verb, e.value) + " " + e.unit.String()
}

// Area is an area value paired with its unit.
type Area struct {
	value float64
	unit  AreaUnit
}

// NewArea returns an area of v in unit u.
func NewArea(v float64, u AreaUnit) Area {
	return Area{value: v, unit: u}
}

// Areas returns one area per value, all in unit u.
func Areas(u AreaUnit, values ...float64) []Area {
	out := make([]Area, len(values))
	for i, v := range values {
		out[i] = Area{value: v, unit: u}
	}
	return out
}

// IsQuantity reports whether a carries a known unit.
func (a Area) IsQuantity() bool {
	_, ok := areaScale[a.unit]
	return ok
}

// Value returns the number in a's own unit.
func (a Area) Value() float64 { return a.value }

// Unit returns a's unit.
func (a Area) Unit() AreaUnit { return a.unit }

// In returns the value of a expressed in u, or NaN when either side has no unit.
func (a Area) In(u AreaUnit) float64 {
	from, ok1 := areaScale[a.unit]
	to, ok2 := areaScale[u]
	if !ok1 || !ok2 {
		return math.NaN()
	}
	if a.unit == u {
		return a.value
	}
	return a.value * from / to
}

// To converts a to u.
func (a Area) To(u AreaUnit) Area {
	return Area{value: a.In(u), unit: u}
}

func (a Area) String() string {
	if !a.IsQuantity() {
		return strconv.FormatFloat(a.value, 'g', -1, 64)
	}
	return strconv.FormatFloat(a.value, 'g', -1, 64) + " " + a.unit.String()
}

// Fmt formats the number with verb followed by the unit.
func (a Area) Fmt(verb string) string {
	return fmt.Sprintf(verb, a.value) + " " + a.unit.String()
}

// EnergyValues returns the values of es expressed in u.
func EnergyValues(es []Energy, u EnergyUnit) []float64 {
	out := make([]float64, len(es))
	for i, e := range es {
		out[i] = e.In(u)
	}
	return out
}

// AreaValues returns the values of as expressed in u.
func AreaValues(as []Area, u AreaUnit) []float64 {
	out := make([]float64, len(as))
	for i, a := range as {
		out[i] = a.In(u)
	}
	return out
}

// LookupEnergyUnit resolves a unit name such as "TeV".
func LookupEnergyUnit(name string) (EnergyUnit, error) {
	name = strings.TrimSpace(name)
	for u, n := range energyNames {
		if n == name {
			return u, nil
		}
	}
	return noEnergyUnit, fmt.Errorf("%w: %q is not an energy unit", ErrUnknownUnit, name)
}

// LookupAreaUnit resolves a unit name such as "m^2", "m2" or "cm2".
func LookupAreaUnit(name string) (AreaUnit, error) {
	switch strings.ReplaceAll(strings.TrimSpace(name), "^", "") {
	case "cm2":
		return SquareCentimeter, nil
	case "m2":
		return SquareMeter, nil
	case "km2":
		return SquareKilometer, nil
	}
	return noAreaUnit, fmt.Errorf("%w: %q is not an area unit", ErrUnknownUnit, name)
}
