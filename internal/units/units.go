// Package units converts areas held in hectares to display units.
package units

import (
	"fmt"
	"strings"
)

// Area unit names.
const (
	Hectare = "ha"
	SqKm    = "km2"
	Acre    = "acre"
	SqM     = "m2"
)

// ValidUnits lists every accepted unit.
var ValidUnits = []string{Hectare, SqKm, Acre, SqM}

// hectares per unit
var perUnit = map[string]float64{
	Hectare: 1,
	SqKm:    100,
	Acre:    0.40468564224,
	SqM:     0.0001,
}

// IsValid reports whether unit is a known area unit.
func IsValid(unit string) bool {
	_, ok := perUnit[unit]
	return ok
}

// GetValidUnitsString returns the units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Parse validates a user-supplied unit; empty means hectares.
func Parse(unit string) (string, error) {
	if unit == "" {
		return Hectare, nil
	}
	u := strings.ToLower(unit)
	if !IsValid(u) {
		return "", fmt.Errorf("unknown area unit %q, want one of %s", unit, GetValidUnitsString())
	}
	return u, nil
}

// ConvertArea converts hectares to the target unit. Unknown units are
// left in hectares.
func ConvertArea(ha float64, target string) float64 {
	f, ok := perUnit[target]
	if !ok {
		return ha
	}
	return ha / f
}
