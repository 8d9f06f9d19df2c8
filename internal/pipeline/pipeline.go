package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Extractor reads the input city list.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.CityRecord, error)
}

// Transformer moves a record through the locate and enrich stages.
type Transformer interface {
	Locate(ctx context.Context, rec domain.CityRecord) (domain.CityRecord, error)
	Enrich(ctx context.Context, rec domain.CityRecord) (domain.CityRecord, error)
}

// LocationSaver persists coordinates found by geocoding.
type LocationSaver interface {
	SaveLocations(ctx context.Context, records []domain.CityRecord) error
}

// Loader writes the finished dataset and returns the artifact paths.
type Loader interface {
	Load(ctx context.Context, ds domain.Dataset) ([]string, error)
}

// Pipeline stages.
const (
	StageLocate  = "locate"
	StageFetch   = "fetch"
	StageConvert = "convert"
)

// Skip records why a city was dropped from the output.
type Skip struct {
	City    string
	Country string
	Stage   string
	Reason  string
	Err     error
}

// Report summarizes one run.
type Report struct {
	Read      int
	Geocoded  int
	Located   int
	Enriched  int
	Skipped   []Skip
	Artifacts []string
	Duration  time.Duration
}

// Pipeline runs the city list through geocoding, normals enrichment and export.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	saver       LocationSaver
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, l Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		tracer:      observability.Tracer(),
	}
}

// SetLocationSaver enables writing geocoded coordinates back to the input.
func (p *Pipeline) SetLocationSaver(s LocationSaver) {
	p.saver = s
}

// Run processes every city once. Per-city failures are logged, counted and
// reported; the city is left out of the artifacts. Run returns an error only
// when the input cannot be read, the context is cancelled, no city could be
// enriched (domain.ErrNoData), or the artifacts cannot be written. In each of
// those cases the report describes the work done so far.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	report, err := p.run(ctx)
	report.Duration = time.Since(start)
	p.metrics.RunDuration.Set(report.Duration.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	p.metrics.LastSuccess.SetToCurrentTime()
	p.logger.Info("pipeline finished",
		"read", report.Read,
		"enriched", report.Enriched,
		"skipped", len(report.Skipped),
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context) (Report, error) {
	var report Report

	records, err := p.extractor.Extract(ctx)
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}
	report.Read = len(records)
	p.metrics.CitiesRead.Add(float64(len(records)))
	p.logger.Info("city list loaded", "cities", len(records))

	if err := p.locateAll(ctx, records, &report); err != nil {
		return report, err
	}
	if report.Geocoded > 0 && p.saver != nil {
		// Losing the write-back only costs a re-geocode next run.
		if err := p.saver.SaveLocations(ctx, records); err != nil {
			p.logger.Warn("save geocoded locations failed", "error", err)
		} else {
			p.logger.Info("geocoded locations saved", "geocoded", report.Geocoded)
		}
	}

	if err := p.enrichAll(ctx, records, &report); err != nil {
		return report, err
	}

	ds := domain.NewDataset(records)
	report.Enriched = len(ds.Cities)
	if len(ds.Cities) == 0 {
		p.metrics.CitiesExported.Set(0)
		return report, domain.ErrNoData
	}

	paths, err := p.loader.Load(ctx, ds)
	report.Artifacts = paths
	if err != nil {
		return report, fmt.Errorf("load: %w", err)
	}
	p.metrics.CitiesExported.Set(float64(len(ds.Cities)))
	return report, nil
}

// locateAll geocodes records that lack coordinates. All lookups finish
// before any normals are fetched so the write-back sees the whole list.
func (p *Pipeline) locateAll(ctx context.Context, records []domain.CityRecord, report *Report) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.locate")
	defer span.End()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		located, err := p.locateOne(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.skip(report, rec, StageLocate, err)
			continue
		}
		if located.GeoSource == "geocoded" {
			report.Geocoded++
			p.logger.Debug("city located",
				"city", rec.City,
				"country", rec.Country,
				"place", located.PlaceName,
			)
		}
		report.Located++
		records[i] = located
	}
	span.SetAttributes(attribute.Int("cities.located", report.Located))
	return nil
}

func (p *Pipeline) locateOne(ctx context.Context, rec domain.CityRecord) (domain.CityRecord, error) {
	ctx, span := p.tracer.Start(ctx, "city.locate", trace.WithAttributes(
		attribute.String("city", rec.City),
		attribute.String("country", rec.Country),
	))
	defer span.End()

	located, err := p.transformer.Locate(ctx, rec)
	if err != nil {
		span.SetStatus(codes.Error, domain.FailureReason(err))
	}
	return located, err
}

// enrichAll fetches and converts normals for every located record.
func (p *Pipeline) enrichAll(ctx context.Context, records []domain.CityRecord, report *Report) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.enrich")
	defer span.End()

	for i, rec := range records {
		if rec.Stage() != domain.StageLocated {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		enriched, err := p.enrichOne(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stage := StageFetch
			if errors.Is(err, domain.ErrConversionImpossible) {
				stage = StageConvert
			}
			p.skip(report, rec, stage, err)
			continue
		}
		records[i] = enriched
		p.logger.Debug("city enriched",
			"city", rec.City,
			"country", rec.Country,
			"station", enriched.Climate.StationID,
			"station_name", enriched.Climate.StationName,
		)
	}
	return nil
}

func (p *Pipeline) enrichOne(ctx context.Context, rec domain.CityRecord) (domain.CityRecord, error) {
	ctx, span := p.tracer.Start(ctx, "city.enrich", trace.WithAttributes(
		attribute.String("city", rec.City),
		attribute.String("country", rec.Country),
		attribute.Float64("lat", rec.Geo.Lat),
		attribute.Float64("lon", rec.Geo.Lon),
	))
	defer span.End()

	enriched, err := p.transformer.Enrich(ctx, rec)
	if err != nil {
		span.SetStatus(codes.Error, domain.FailureReason(err))
	}
	return enriched, err
}

func (p *Pipeline) skip(report *Report, rec domain.CityRecord, stage string, err error) {
	reason := domain.FailureReason(err)
	report.Skipped = append(report.Skipped, Skip{
		City:    rec.City,
		Country: rec.Country,
		Stage:   stage,
		Reason:  reason,
		Err:     err,
	})
	p.metrics.CitiesSkipped.WithLabelValues(stage, reason).Inc()
	p.logger.Warn("city skipped",
		"city", rec.City,
		"country", rec.Country,
		"stage", stage,
		"reason", reason,
		"error", err,
	)
}
