package domain

import "strings"

// normRule maps a unit marker found in an indicator name to the divisor that
// scales raw values of that unit into [0,1].
type normRule struct {
	marker  string
	divisor float64
}

// normRules is evaluated in order, first match wins. The ordering is part of
// the contract: "minutes" must be tested before the fallback even though a
// name could carry several markers.
var normRules = []normRule{
	{"%", 100},
	{"minutes", 60},
	{"km", 50},
	{"eur", 100},
	{"per 1000", 1000},
}

// defaultDivisor scales unmarked indicators, which are assumed to be raw
// counts (population-scale magnitudes).
const defaultDivisor = 100000

// Normalize maps a raw indicator value to a score capped at 1.0, inferring
// the unit from case-insensitive markers in the indicator name.
//
// Only the upper bound is clamped; negative inputs produce negative scores.
func Normalize(value float64, indicatorName string) float64 {
	name := strings.ToLower(indicatorName)
	divisor := float64(defaultDivisor)
	for _, rule := range normRules {
		if strings.Contains(name, rule.marker) {
			divisor = rule.divisor
			break
		}
	}
	return min(value/divisor, 1.0)
}

// lowerBetterMarkers flag indicators where a higher raw value means worse
// quality: vehicle ownership, fatalities, costs, and travel times.
var lowerBetterMarkers = []string{
	"car",
	"motor cycle",
	"death",
	"accident",
	"cost",
	"time",
	"minutes",
	"eur",
}

// LowerIsBetter reports whether the normalized value of this indicator should
// be inverted (1 - normalized) before entering a weighted score.
func LowerIsBetter(indicatorName string) bool {
	name := strings.ToLower(indicatorName)
	for _, marker := range lowerBetterMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
