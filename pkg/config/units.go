package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Internal units: lengths in millimetres, angles in radians.
const (
	Nanometer  = 1e-6
	Micrometer = 1e-3
	Millimeter = 1.0
	Centimeter = 10.0
	Meter      = 1000.0

	Radian      = 1.0
	Milliradian = 1e-3
	Degree      = math.Pi / 180.0
)

// unitScale maps a unit suffix to its factor in internal units.
var unitScale = map[string]float64{
	"nm":   Nanometer,
	"um":   Micrometer,
	"mm":   Millimeter,
	"cm":   Centimeter,
	"m":    Meter,
	"rad":  Radian,
	"mrad": Milliradian,
	"deg":  Degree,
}

// ValidUnits lists the accepted unit suffixes.
var ValidUnits = []string{"nm", "um", "mm", "cm", "m", "rad", "mrad", "deg"}

// ParseQuantity parses a number with an optional unit suffix, e.g. "55um",
// "90deg" or "1.5". Unsuffixed values are taken to be in internal units.
func ParseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	// Split at the first letter that cannot be part of a float literal.
	i := len(s)
	for j, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			if (c == 'e' || c == 'E') && j+1 < len(s) && isExponentTail(s[j+1:]) {
				continue
			}
			i = j
			break
		}
	}

	num, unit := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", num)
	}
	if unit == "" {
		return v, nil
	}
	scale, ok := unitScale[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q, expected one of %s", unit, strings.Join(ValidUnits, ", "))
	}
	return v * scale, nil
}

// isExponentTail reports whether rest (the text after an 'e') continues a
// float exponent rather than a unit name.
func isExponentTail(rest string) bool {
	if rest == "" {
		return false
	}
	if rest[0] == '+' || rest[0] == '-' {
		rest = rest[1:]
	}
	return rest != "" && rest[0] >= '0' && rest[0] <= '9'
}
