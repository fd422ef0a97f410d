package eurostat_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citystat/city-quality-etl/internal/adapter/eurostat"
	"github.com/citystat/city-quality-etl/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *eurostat.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return eurostat.NewClient(srv.URL, 5*time.Second, logger, observability.NewMetricsForTesting())
}

func TestDataset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/urb_ctour", r.URL.Path)
		assert.Equal(t, "JSON", r.URL.Query().Get("format"))
		assert.Equal(t, "EN", r.URL.Query().Get("lang"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": ["cities", "indic_ur", "time"],
			"size": [1, 1, 1],
			"dimension": {
				"cities": {"category": {"index": {"FR001C": 0}, "label": {"FR001C": "Paris"}}},
				"indic_ur": {"category": {"index": {"TT1": 0}, "label": {"TT1": "Indicator one"}}},
				"time": {"category": {"index": {"2020": 0}}}
			},
			"value": [42.5],
			"status": {"0": "e"}
		}`)
	})

	cube, err := client.Dataset(context.Background(), "urb_ctour")
	require.NoError(t, err)
	require.NoError(t, cube.Validate())

	assert.Equal(t, []string{"cities", "indic_ur", "time"}, cube.ID)
	require.Len(t, cube.Value, 1)
	require.NotNil(t, cube.Value[0])
	assert.Equal(t, 42.5, *cube.Value[0])
	assert.Equal(t, "e", cube.Status["0"])
	assert.Equal(t, "Paris", cube.Dimension["cities"].Category.Label["FR001C"])
}

func TestDataset_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "dataset not found", http.StatusNotFound)
	})

	_, err := client.Dataset(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "dataset not found")
}

func TestDataset_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	})

	_, err := client.Dataset(context.Background(), "urb_ctour")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode dataset")
}

func TestDataset_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Dataset(ctx, "urb_ctour")
	require.Error(t, err)
}
