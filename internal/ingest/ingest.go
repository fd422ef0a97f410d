// Package ingest flattens indicator cubes into city observations and writes
// them to the store, one transaction per cube.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/citystat/city-quality-etl/internal/domain"
	"github.com/citystat/city-quality-etl/internal/observability"
	"github.com/citystat/city-quality-etl/internal/store"
)

// Result aggregates the per-record outcomes of one cube ingestion.
// ObservationsAdded counts replacements of existing triples too; the store
// does not distinguish insert from replace on the upsert path.
type Result struct {
	EntitiesAdded     int `json:"entities_added"`
	ObservationsAdded int `json:"observations_added"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`
}

// Ingestor decodes cubes and persists their records with skip-and-count
// semantics: a bad record never aborts the batch.
type Ingestor struct {
	store    *store.Store
	resolver domain.RoleResolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates an Ingestor. A nil resolver defaults to the naming heuristic.
func New(st *store.Store, resolver domain.RoleResolver, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	if resolver == nil {
		resolver = domain.HeuristicResolver{}
	}
	return &Ingestor{
		store:    st,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// IngestCube decodes every cell of the cube and upserts cities and
// observations inside a single store batch.
//
// Fatal errors (invalid shape, transaction open/commit failure) abort the
// call. Everything per-record is swallowed into the counters: records with
// no resolvable city or indicator dimension or a non-conforming city code
// are skipped, malformed years and store write failures count as errors,
// and ingestion continues.
func (in *Ingestor) IngestCube(ctx context.Context, cube *domain.Cube) (Result, error) {
	if err := cube.Validate(); err != nil {
		return Result{}, err
	}

	roles := in.resolver.ResolveRoles(cube.ID)
	in.logger.Debug("resolved dimension roles",
		"entity_dim", roles.EntityDim,
		"indicator_dim", roles.IndicatorDim,
		"time_dim", roles.TimeDim,
	)

	start := clock.Now()
	batch, err := in.store.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open ingestion batch: %w", err)
	}
	defer batch.Rollback() //nolint:errcheck // no-op after commit

	var res Result
	for rec := range domain.DecodeCube(cube) {
		in.metrics.RecordsDecoded.Inc()
		in.ingestRecord(ctx, batch, roles, rec, &res)
	}

	if err := batch.Commit(); err != nil {
		return res, err
	}

	in.metrics.IngestDuration.Observe(clock.Since(start).Seconds())
	in.logger.Info("cube ingested",
		"entities_added", res.EntitiesAdded,
		"observations_added", res.ObservationsAdded,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}

// ingestRecord applies one flat record to the batch, updating counters in res.
func (in *Ingestor) ingestRecord(ctx context.Context, batch *store.Batch, roles domain.Roles, rec domain.FlatRecord, res *Result) {
	cityCode, ok := rec.Dims[roles.EntityDim]
	if roles.EntityDim == "" || !ok || !domain.ValidEntityCode(cityCode) {
		res.Skipped++
		in.metrics.RecordsSkipped.Inc()
		return
	}

	city := domain.City{
		Code:    cityCode,
		Name:    rec.Labels[roles.EntityDim],
		Country: domain.CountryOf(cityCode),
	}
	created, err := batch.UpsertCity(ctx, city)
	if err != nil {
		res.Errors++
		in.metrics.IngestErrors.Inc()
		in.logger.Warn("city upsert failed", "city_code", cityCode, "error", err)
		return
	}
	if created {
		res.EntitiesAdded++
		in.metrics.CitiesAdded.Inc()
	}

	indicatorCode, ok := rec.Dims[roles.IndicatorDim]
	if roles.IndicatorDim == "" || !ok {
		res.Skipped++
		in.metrics.RecordsSkipped.Inc()
		return
	}

	year := 0
	if timeCode, ok := rec.Dims[roles.TimeDim]; roles.TimeDim != "" && ok {
		year, err = strconv.Atoi(timeCode)
		if err != nil {
			res.Errors++
			in.metrics.IngestErrors.Inc()
			in.logger.Warn("malformed year, skipping record",
				"city_code", cityCode, "indicator_code", indicatorCode, "time", timeCode)
			return
		}
	}

	obs := domain.Observation{
		CityCode:      cityCode,
		IndicatorCode: indicatorCode,
		IndicatorName: rec.Labels[roles.IndicatorDim],
		Year:          year,
		Value:         rec.Value,
		Status:        rec.Status,
		IngestedAt:    clock.Now(),
	}
	if err := batch.UpsertObservation(ctx, obs); err != nil {
		res.Errors++
		in.metrics.IngestErrors.Inc()
		in.logger.Warn("observation upsert failed",
			"city_code", cityCode, "indicator_code", indicatorCode, "year", year, "error", err)
		return
	}
	res.ObservationsAdded++
	in.metrics.ObservationsWritten.Inc()
}
