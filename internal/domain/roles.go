package domain

import "strings"

// Roles names the dimensions that play each semantic role in a cube.
// An empty field means no dimension matched that role.
type Roles struct {
	EntityDim    string
	IndicatorDim string
	TimeDim      string
}

// RoleResolver infers which cube dimension identifies the city, which the
// indicator, and which the reference year. Cube providers do not guarantee
// stable dimension names across dataset versions, so resolution is a
// pluggable strategy rather than a fixed schema.
type RoleResolver interface {
	ResolveRoles(dimNames []string) Roles
}

// HeuristicResolver is the default RoleResolver. It matches the naming
// conventions observed in Eurostat urban datasets: the city dimension is the
// first one with the plural place-collection suffix ("cities"), the indicator
// dimension the first with the "indic" prefix ("indic_ur"), and the time
// dimension the one named exactly "time".
type HeuristicResolver struct{}

const (
	entitySuffix    = "ies"
	indicatorPrefix = "indic"
	timeDimName     = "time"
)

func (HeuristicResolver) ResolveRoles(dimNames []string) Roles {
	var roles Roles
	for _, name := range dimNames {
		switch {
		case roles.EntityDim == "" && strings.HasSuffix(name, entitySuffix):
			roles.EntityDim = name
		case roles.IndicatorDim == "" && strings.HasPrefix(name, indicatorPrefix):
			roles.IndicatorDim = name
		case roles.TimeDim == "" && name == timeDimName:
			roles.TimeDim = name
		}
	}
	return roles
}

// ValidEntityCode reports whether a code follows the Eurostat city coding
// convention: a two-letter country prefix and a trailing "C" city marker,
// e.g. "FR001C". Records with other codes (regions, aggregates) are skipped.
func ValidEntityCode(code string) bool {
	return code != "" && strings.HasSuffix(code, "C")
}

// CountryOf derives the ISO-2 country code from a city code prefix.
func CountryOf(code string) string {
	if len(code) < 2 {
		return ""
	}
	return strings.ToUpper(code[:2])
}
