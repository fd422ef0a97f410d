// Command gencube writes a synthetic JSON-stat cube fixture for local
// testing of the ingestion path. It uses the actual domain types so the
// fixture always matches what the decoder expects.
//
// Usage:
//
//	go run ./cmd/gencube -cities 3 -indicators 2 -years 2 -out testdata/cube.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/citystat/city-quality-etl/internal/domain"
)

var countries = []string{"FR", "DE", "ES", "IT", "NL"}

var indicatorLabels = []string{
	"Population on the 1st of January, total",
	"Average time of journey to work (minutes)",
	"Cost of a monthly ticket for public transport (EUR)",
	"People killed in road accidents per 1000 inhabitants",
	"Share of green urban areas (%)",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	nCities := flag.Int("cities", 3, "number of city members")
	nIndicators := flag.Int("indicators", 2, "number of indicator members")
	nYears := flag.Int("years", 2, "number of year members, counting back from 2023")
	seed := flag.Int64("seed", 1, "random seed for cell values")
	out := flag.String("out", "", "output path (default stdout)")
	flag.Parse()

	cube := buildCube(*nCities, *nIndicators, *nYears, rand.New(rand.NewSource(*seed)))
	if err := cube.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cube, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %d-cell cube to %s", len(cube.Value), *out)
	return nil
}

func buildCube(nCities, nIndicators, nYears int, rng *rand.Rand) *domain.Cube {
	cities := domain.Category{Index: map[string]int{}, Label: map[string]string{}}
	for i := range nCities {
		code := fmt.Sprintf("%s%03dC", countries[i%len(countries)], i+1)
		cities.Index[code] = i
		cities.Label[code] = fmt.Sprintf("City %03d", i+1)
	}

	indicators := domain.Category{Index: map[string]int{}, Label: map[string]string{}}
	for i := range nIndicators {
		code := fmt.Sprintf("TT%d", i+1)
		indicators.Index[code] = i
		indicators.Label[code] = indicatorLabels[i%len(indicatorLabels)]
	}

	years := domain.Category{Index: map[string]int{}, Label: map[string]string{}}
	for i := range nYears {
		year := fmt.Sprintf("%d", 2023-nYears+1+i)
		years.Index[year] = i
		years.Label[year] = year
	}

	cells := nCities * nIndicators * nYears
	values := make([]*float64, cells)
	status := map[string]string{}
	for i := range values {
		// Sprinkle in nulls and "estimated" markers like real datasets have.
		switch rng.Intn(10) {
		case 0:
			continue
		case 1:
			status[fmt.Sprintf("%d", i)] = "e"
			fallthrough
		default:
			v := rng.Float64() * 100
			values[i] = &v
		}
	}

	return &domain.Cube{
		ID:   []string{"cities", "indic_ur", "time"},
		Size: []int{nCities, nIndicators, nYears},
		Dimension: map[string]domain.Dimension{
			"cities":   {Category: cities},
			"indic_ur": {Category: indicators},
			"time":     {Category: years},
		},
		Value:  values,
		Status: status,
	}
}
