package rank

import (
	"context"

	"github.com/citystat/city-quality-etl/internal/domain"
)

// Scorer computes per-city weighted quality scores from the latest
// observation of each weighted indicator.
type Scorer struct {
	store Store
}

// NewScorer creates a Scorer reading from the given store.
func NewScorer(st Store) *Scorer {
	return &Scorer{store: st}
}

// Score returns the weighted average of the city's normalized indicator
// values, using only the indicators that have data: an indicator with no
// observation, or a null latest value, contributes to neither the numerator
// nor the denominator, so missing indicators do not penalize a city.
// Returns 0.0 when nothing matches.
func (s *Scorer) Score(ctx context.Context, cityCode string, weights map[string]float64) (float64, error) {
	var totalScore, totalWeight float64

	for indicatorCode, weight := range weights {
		obs, found, err := s.store.LatestValue(ctx, cityCode, indicatorCode)
		if err != nil {
			return 0, err
		}
		if !found || obs.Value == nil {
			continue
		}

		normalized := domain.Normalize(*obs.Value, obs.IndicatorName)
		if domain.LowerIsBetter(obs.IndicatorName) {
			normalized = 1 - normalized
		}

		totalScore += normalized * weight
		totalWeight += weight
	}

	if totalWeight <= 0 {
		return 0, nil
	}
	return totalScore / totalWeight, nil
}
