package gazetteer_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citystat/city-quality-etl/internal/adapter/gazetteer"
	"github.com/citystat/city-quality-etl/internal/store"
)

func newTestLoader(t *testing.T) (*gazetteer.Loader, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return gazetteer.NewLoader(st, logger), st
}

const sampleCSV = `city,city_ascii,lat,lng,country,iso2,population,id
Paris,Paris,48.8567,2.3522,France,FR,11060000,1250015082
Lyon,Lyon,45.76,4.84,France,FR,1748000,1250501537
,  ,0,0,France,FR,1,1250000000
Tokyo,Tokyo,35.6897,139.6922,Japan,JP,,1392685764
`

func TestLoad(t *testing.T) {
	loader, st := newTestLoader(t)
	ctx := context.Background()

	loaded, err := loader.Load(ctx, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, loaded, "the nameless row is skipped")

	city, found, err := st.GetCity(ctx, "1250015082")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Paris", city.Name)
	assert.Equal(t, "FR", city.Country)
	require.NotNil(t, city.Lat)
	assert.InDelta(t, 48.8567, *city.Lat, 1e-9)
	require.NotNil(t, city.Population)
	assert.Equal(t, int64(11_060_000), *city.Population)

	// Empty population stays unknown rather than zero.
	tokyo, found, err := st.GetCity(ctx, "1392685764")
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, tokyo.Population)
}

func TestLoad_ReplacesExistingRows(t *testing.T) {
	loader, st := newTestLoader(t)
	ctx := context.Background()

	_, err := loader.Load(ctx, strings.NewReader(sampleCSV))
	require.NoError(t, err)

	updated := strings.Replace(sampleCSV, "11060000", "12000000", 1)
	_, err = loader.Load(ctx, strings.NewReader(updated))
	require.NoError(t, err)

	city, _, err := st.GetCity(ctx, "1250015082")
	require.NoError(t, err)
	require.NotNil(t, city.Population)
	assert.Equal(t, int64(12_000_000), *city.Population)
}

func TestLoad_MissingRequiredColumn(t *testing.T) {
	loader, _ := newTestLoader(t)

	_, err := loader.Load(context.Background(), strings.NewReader("city,lat,lng\nParis,48.8,2.3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city_ascii")
}

func TestLoadFile_MissingFile(t *testing.T) {
	loader, _ := newTestLoader(t)

	_, err := loader.LoadFile(context.Background(), "testdata/does-not-exist.csv")
	require.Error(t, err)
}
