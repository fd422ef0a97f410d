// Package gazetteer bulk-loads the worldcities CSV feed into the store,
// seeding city rows with coordinates and population.
package gazetteer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/citystat/city-quality-etl/internal/domain"
	"github.com/citystat/city-quality-etl/internal/store"
)

// Loader streams gazetteer rows into the store in one batch.
type Loader struct {
	store  *store.Store
	logger *slog.Logger
}

// NewLoader creates a Loader writing to st.
func NewLoader(st *store.Store, logger *slog.Logger) *Loader {
	return &Loader{store: st, logger: logger}
}

// LoadFile opens path and loads it via Load.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open gazetteer: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load reads a worldcities CSV (header row required) and replace-upserts one
// city per row. The gazetteer is authoritative for coordinates and
// population, so rows replace rather than ignore. Malformed rows are skipped
// and logged; the count of loaded cities is returned.
func (l *Loader) Load(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read gazetteer header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"id", "city_ascii", "country"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("gazetteer missing column %q", required)
		}
	}

	batch, err := l.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer batch.Rollback() //nolint:errcheck // no-op after commit

	loaded, skipped := 0, 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		city, ok := cityFromRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		if err := batch.ReplaceCity(ctx, city); err != nil {
			return loaded, err
		}
		loaded++
	}

	if err := batch.Commit(); err != nil {
		return 0, err
	}

	l.logger.Info("gazetteer loaded", "cities", loaded, "skipped", skipped)
	return loaded, nil
}

func cityFromRow(row []string, cols map[string]int) (domain.City, bool) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	code := field("id")
	name := field("city_ascii")
	if code == "" || name == "" {
		return domain.City{}, false
	}

	// Prefer the ISO-2 code so gazetteer rows match the two-letter country
	// filter used by the query layer.
	country := strings.ToUpper(field("iso2"))
	if country == "" {
		country = field("country")
	}

	city := domain.City{
		Code:    code,
		Name:    name,
		Country: country,
	}
	if v, err := strconv.ParseFloat(field("lat"), 64); err == nil {
		city.Lat = &v
	}
	if v, err := strconv.ParseFloat(field("lng"), 64); err == nil {
		city.Lng = &v
	}
	if v, err := strconv.ParseFloat(field("population"), 64); err == nil {
		pop := int64(v)
		city.Population = &pop
	}
	return city, true
}
