package domain

import "time"

// City is a geographic entity keyed by its Eurostat city code. Coordinates
// and population are only known for cities seeded from the gazetteer; cities
// first sighted during cube ingestion carry code, name, and country only.
type City struct {
	Code       string   `json:"city_code"`
	Name       string   `json:"city_name"`
	Country    string   `json:"country"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	Population *int64   `json:"population,omitempty"`
}

// Observation is a single (city, indicator, year) measurement. The triple is
// unique in the store; re-ingesting it replaces the row. Value is nil when
// the source cube has no figure for the cell.
type Observation struct {
	CityCode      string    `json:"city_code"`
	IndicatorCode string    `json:"indicator_code"`
	IndicatorName string    `json:"indicator_name"`
	Year          int       `json:"year"`
	Value         *float64  `json:"value"`
	Status        string    `json:"status,omitempty"`
	IngestedAt    time.Time `json:"-"`
}

// Indicator is a distinct indicator code with its most recently seen label.
type Indicator struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
