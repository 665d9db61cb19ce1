package units

// parse.go turns user-supplied strings such as "1 TeV", "500GeV" or
// "1e4 cm^2" into quantities.
//
// A string without a unit is rejected with ErrNoUnit rather than being
// assigned a default unit.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// quantityRegex splits a quantity string into its number and unit parts.
var quantityRegex = regexp.MustCompile(`^([+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?)\s*(.*)$`)

// splitQuantity returns the numeric value and the raw unit text of s.
func splitQuantity(s string) (float64, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", fmt.Errorf("empty quantity")
	}

	m := quantityRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, "", fmt.Errorf("invalid number format in %q", s)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid number format in %q: %w", s, err)
	}

	unit := strings.TrimSpace(m[2])
	if unit == "" {
		return 0, "", fmt.Errorf("%q: %w", s, ErrNoUnit)
	}
	return v, unit, nil
}

// ParseEnergy parses strings like "1 TeV" or "300GeV".
func ParseEnergy(s string) (Energy, error) {
	v, name, err := splitQuantity(s)
	if err != nil {
		return Energy{}, err
	}
	u, err := LookupEnergyUnit(name)
	if err != nil {
		return Energy{}, err
	}
	return NewEnergy(v, u), nil
}

// ParseArea parses strings like "100 m^2" or "1e4 cm2".
func ParseArea(s string) (Area, error) {
	v, name, err := splitQuantity(s)
	if err != nil {
		return Area{}, err
	}
	u, err := LookupAreaUnit(name)
	if err != nil {
		return Area{}, err
	}
	return NewArea(v, u), nil
}

// ParseEnergies parses every element of ss, stopping at the first failure.
func ParseEnergies(ss []string) ([]Energy, error) {
	out := make([]Energy, 0, len(ss))
	for _, s := range ss {
		e, err := ParseEnergy(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
