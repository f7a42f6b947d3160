package units

import (
	"strconv"
	"strings"
)

// formatUnit renders the generic form used in errors and logs, e.g.
// "1000 m s^-1" or "kg^(1/2)". It is not meant to be parsed back.
func formatUnit(scale float64, bases []Unit, powers []Power) string {
	if len(bases) == 0 {
		if scale == 1 {
			return "dimensionless"
		}
		return strconv.FormatFloat(scale, 'g', -1, 64)
	}

	parts := make([]string, 0, len(bases)+1)
	if scale != 1 {
		parts = append(parts, strconv.FormatFloat(scale, 'g', -1, 64))
	}
	for i, b := range bases {
		parts = append(parts, formatTerm(unitName(b), powers[i]))
	}
	return strings.Join(parts, " ")
}

func formatTerm(name string, p Power) string {
	switch {
	case p == Int(1):
		return name
	case p.IsInt():
		return name + "^" + p.String()
	}
	return name + "^(" + p.String() + ")"
}
