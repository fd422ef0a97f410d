package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citystat/city-quality-etl/internal/domain"
	"github.com/citystat/city-quality-etl/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }

func TestUpsertCity_InsertOrIgnore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	assert.True(t, created)

	// Second sighting must not overwrite descriptive fields.
	created, err = s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paname", Country: "XX"})
	require.NoError(t, err)
	assert.False(t, created)

	city, found, err := s.GetCity(ctx, "FR001C")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Paris", city.Name)
	assert.Equal(t, "FR", city.Country)
}

func TestReplaceCity_OverwritesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)

	err = s.ReplaceCity(ctx, domain.City{
		Code: "FR001C", Name: "Paris", Country: "FR",
		Lat: f(48.8567), Lng: f(2.3522), Population: i(11_060_000),
	})
	require.NoError(t, err)

	city, found, err := s.GetCity(ctx, "FR001C")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, city.Population)
	assert.Equal(t, int64(11_060_000), *city.Population)
	require.NotNil(t, city.Lat)
	assert.InDelta(t, 48.8567, *city.Lat, 1e-9)
}

func TestUpsertObservation_IdempotentReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)

	obs := domain.Observation{
		CityCode: "FR001C", IndicatorCode: "TT1", IndicatorName: "Indicator one",
		Year: 2020, Value: f(42),
	}
	require.NoError(t, s.UpsertObservation(ctx, obs))

	obs.Value = f(43)
	obs.IndicatorName = "Indicator one, revised"
	require.NoError(t, s.UpsertObservation(ctx, obs))

	all, err := s.Observations(ctx, "FR001C", false)
	require.NoError(t, err)
	require.Len(t, all, 1, "re-ingesting the same triple must leave one row")
	require.NotNil(t, all[0].Value)
	assert.Equal(t, 43.0, *all[0].Value)
	assert.Equal(t, "Indicator one, revised", all[0].IndicatorName)
}

func TestLatestValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)

	for year, value := range map[int]float64{2018: 10, 2021: 30, 2019: 20} {
		require.NoError(t, s.UpsertObservation(ctx, domain.Observation{
			CityCode: "FR001C", IndicatorCode: "TT1", IndicatorName: "Indicator one",
			Year: year, Value: f(value),
		}))
	}

	obs, found, err := s.LatestValue(ctx, "FR001C", "TT1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2021, obs.Year)
	require.NotNil(t, obs.Value)
	assert.Equal(t, 30.0, *obs.Value)
	assert.Equal(t, "Indicator one", obs.IndicatorName)

	_, found, err = s.LatestValue(ctx, "FR001C", "TT9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestObservations_LatestOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)

	seed := []domain.Observation{
		{CityCode: "FR001C", IndicatorCode: "TT2", Year: 2019, Value: f(1)},
		{CityCode: "FR001C", IndicatorCode: "TT1", Year: 2019, Value: f(2)},
		{CityCode: "FR001C", IndicatorCode: "TT1", Year: 2020, Value: f(3)},
	}
	for _, o := range seed {
		require.NoError(t, s.UpsertObservation(ctx, o))
	}

	latest, err := s.Observations(ctx, "FR001C", true)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "TT1", latest[0].IndicatorCode)
	assert.Equal(t, 2020, latest[0].Year)
	assert.Equal(t, "TT2", latest[1].IndicatorCode)

	all, err := s.Observations(ctx, "FR001C", false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by indicator code, newest year first within each.
	assert.Equal(t, 2020, all[0].Year)
	assert.Equal(t, 2019, all[1].Year)
}

func TestCities_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []domain.City{
		{Code: "FR002C", Name: "Lyon", Country: "FR"},
		{Code: "DE001C", Name: "Berlin", Country: "DE"},
		{Code: "FR001C", Name: "Paris", Country: "FR"},
	} {
		_, err := s.UpsertCity(ctx, c)
		require.NoError(t, err)
	}

	all, err := s.Cities(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Berlin", all[0].Name)

	fr, err := s.Cities(ctx, "fr")
	require.NoError(t, err)
	require.Len(t, fr, 2)
	assert.Equal(t, "Lyon", fr[0].Name)
	assert.Equal(t, "Paris", fr[1].Name)
}

func TestDistinctIndicators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)

	seed := []domain.Observation{
		{CityCode: "FR001C", IndicatorCode: "TT2", IndicatorName: "Second", Year: 2020, Value: f(1)},
		{CityCode: "FR001C", IndicatorCode: "TT1", IndicatorName: "First", Year: 2019, Value: f(2)},
		{CityCode: "FR001C", IndicatorCode: "TT1", IndicatorName: "First", Year: 2020, Value: f(3)},
	}
	for _, o := range seed {
		require.NoError(t, s.UpsertObservation(ctx, o))
	}

	indicators, err := s.DistinctIndicators(ctx)
	require.NoError(t, err)
	require.Len(t, indicators, 2)
	assert.Equal(t, domain.Indicator{Code: "TT1", Name: "First"}, indicators[0])
	assert.Equal(t, domain.Indicator{Code: "TT2", Name: "Second"}, indicators[1])
}

func TestTopByPopulation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []domain.City{
		{Code: "FR001C", Name: "Paris", Country: "FR", Population: i(11_060_000)},
		{Code: "FR002C", Name: "Lyon", Country: "FR", Population: i(1_748_000)},
		{Code: "FR003C", Name: "Nowhere", Country: "FR"}, // unknown population
		{Code: "DE001C", Name: "Berlin", Country: "DE", Population: i(3_769_000)},
	} {
		require.NoError(t, s.ReplaceCity(ctx, c))
	}

	top, err := s.TopByPopulation(ctx, "FR", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Paris", top[0].Name)
	assert.Equal(t, "Lyon", top[1].Name)

	// Unknown populations sort last, and the country filter holds.
	all, err := s.TopByPopulation(ctx, "FR", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Nowhere", all[2].Name)
}

func TestHasIndicatorData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertObservation(ctx, domain.Observation{
		CityCode: "FR001C", IndicatorCode: "TT1", Year: 2020, Value: f(1),
	}))

	has, err := s.HasIndicatorData(ctx, "FR", []string{"TT1", "TT9"})
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasIndicatorData(ctx, "FR", []string{"TT9"})
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.HasIndicatorData(ctx, "DE", []string{"TT1"})
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.HasIndicatorData(ctx, "FR", nil)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBatch_RollbackDiscardsWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch, err := s.Begin(ctx)
	require.NoError(t, err)

	created, err := batch.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, batch.Rollback())

	_, found, err := s.GetCity(ctx, "FR001C")
	require.NoError(t, err)
	assert.False(t, found)

	// The write lock must be released: a new batch can start and commit.
	batch, err = s.Begin(ctx)
	require.NoError(t, err)
	_, err = batch.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	require.NoError(t, batch.Commit())
	require.NoError(t, batch.Rollback(), "rollback after commit is a no-op")

	_, found, err = s.GetCity(ctx, "FR001C")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeleteObservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertCity(ctx, domain.City{Code: "FR001C", Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertObservation(ctx, domain.Observation{
		CityCode: "FR001C", IndicatorCode: "TT1", Year: 2020, Value: f(1),
	}))

	require.NoError(t, s.DeleteObservation(ctx, "FR001C", "TT1", 2020))

	_, found, err := s.LatestValue(ctx, "FR001C", "TT1")
	require.NoError(t, err)
	assert.False(t, found)
}
