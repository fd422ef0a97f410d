// Package rank computes weighted quality scores and city rankings over the
// indicator store.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/citystat/city-quality-etl/internal/domain"
	"github.com/citystat/city-quality-etl/internal/observability"
)

// Store is the read surface the ranking engines need. *store.Store satisfies it.
type Store interface {
	Cities(ctx context.Context, country string) ([]domain.City, error)
	LatestValue(ctx context.Context, cityCode, indicatorCode string) (domain.Observation, bool, error)
	HasIndicatorData(ctx context.Context, country string, indicatorCodes []string) (bool, error)
	TopByPopulation(ctx context.Context, country string, limit int) ([]domain.City, error)
}

// RankedCity is one entry of a ranking result. Score is the weighted quality
// score in [0,1], or the raw population in the fallback mode.
type RankedCity struct {
	CityCode string  `json:"city_code"`
	Name     string  `json:"city_name"`
	Country  string  `json:"country"`
	Score    float64 `json:"score"`
}

// Ranker orders cities by weighted quality score, falling back to population
// when no weighted indicator data exists.
type Ranker struct {
	store   Store
	scorer  *Scorer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRanker creates a Ranker sharing the given scorer's store.
func NewRanker(st Store, scorer *Scorer, logger *slog.Logger, metrics *observability.Metrics) *Ranker {
	return &Ranker{store: st, scorer: scorer, logger: logger, metrics: metrics}
}

// Rank scores every city (optionally restricted to one country), drops
// scores of zero or below, and returns the top entries by descending score.
// Ties break by city name ascending so results are deterministic.
func (r *Ranker) Rank(ctx context.Context, weights map[string]float64, limit int, country string) ([]RankedCity, error) {
	r.metrics.RankRequests.WithLabelValues("weighted").Inc()

	cities, err := r.store.Cities(ctx, country)
	if err != nil {
		return nil, err
	}

	rankings := make([]RankedCity, 0, len(cities))
	for _, city := range cities {
		score, err := r.scorer.Score(ctx, city.Code, weights)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", city.Code, err)
		}
		if score <= 0 {
			continue
		}
		rankings = append(rankings, RankedCity{
			CityCode: city.Code,
			Name:     city.Name,
			Country:  city.Country,
			Score:    round3(score),
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].Score != rankings[j].Score {
			return rankings[i].Score > rankings[j].Score
		}
		return rankings[i].Name < rankings[j].Name
	})

	if limit > 0 && len(rankings) > limit {
		rankings = rankings[:limit]
	}
	return rankings, nil
}

// RankWithFallback ranks a country's cities by weighted score, degrading to
// a plain population ranking when the weight map is empty or no city in the
// country has data for any weighted indicator. The fallback queries the
// gazetteer population directly; it never re-enters the data check, so the
// degradation terminates in one step.
func (r *Ranker) RankWithFallback(ctx context.Context, weights map[string]float64, country string, limit int) ([]RankedCity, error) {
	if len(weights) == 0 {
		return r.rankByPopulation(ctx, country, limit)
	}

	codes := make([]string, 0, len(weights))
	for code := range weights {
		codes = append(codes, code)
	}
	hasData, err := r.store.HasIndicatorData(ctx, country, codes)
	if err != nil {
		return nil, err
	}
	if !hasData {
		r.logger.Info("no indicator data for weights, falling back to population",
			"country", country, "indicators", len(codes))
		return r.rankByPopulation(ctx, country, limit)
	}

	return r.Rank(ctx, weights, limit, country)
}

func (r *Ranker) rankByPopulation(ctx context.Context, country string, limit int) ([]RankedCity, error) {
	r.metrics.RankRequests.WithLabelValues("population").Inc()

	cities, err := r.store.TopByPopulation(ctx, country, limit)
	if err != nil {
		return nil, err
	}

	rankings := make([]RankedCity, 0, len(cities))
	for _, city := range cities {
		entry := RankedCity{CityCode: city.Code, Name: city.Name, Country: city.Country}
		if city.Population != nil {
			entry.Score = float64(*city.Population)
		}
		rankings = append(rankings, entry)
	}
	return rankings, nil
}

// round3 keeps reported scores readable without changing the ordering.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
