// Command etl builds the monthly climate normals dataset for a city list and
// renders the comfort map.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/adapter/citylist"
	"github.com/couchcryptid/climate-normals-etl/internal/adapter/export"
	"github.com/couchcryptid/climate-normals-etl/internal/adapter/geocache"
	"github.com/couchcryptid/climate-normals-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/climate-normals-etl/internal/adapter/meteostat"
	"github.com/couchcryptid/climate-normals-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/climate-normals-etl/internal/adapter/throttle"
	"github.com/couchcryptid/climate-normals-etl/internal/config"
	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/observability"
	"github.com/couchcryptid/climate-normals-etl/internal/pipeline"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString())
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	store := citylist.NewStore(cfg.InputPath, logger)
	normals := meteostat.NewClient(meteostat.Options{
		BaseURL:    cfg.MeteostatURL,
		APIKey:     cfg.MeteostatAPIKey,
		Timeout:    cfg.MeteostatTimeout,
		StartYear:  cfg.NormalsStart,
		EndYear:    cfg.NormalsEnd,
		Candidates: cfg.StationCandidates,
	}, metrics, logger)
	exporter := export.NewExporter(export.Options{
		OutputDir: cfg.OutputDir,
		CSVName:   cfg.OutCSV,
		JSONName:  cfg.OutJSON,
		HTMLName:  cfg.OutHTML,
		SiteDir:   cfg.SiteDir,
		Filters: export.Filters{
			ComfortMinF: cfg.ComfortMinF,
			ComfortMaxF: cfg.ComfortMaxF,
			PrecipMaxIn: cfg.PrecipMaxIn,
		},
	}, logger)

	precision := domain.Precision{TempDecimals: cfg.TempDecimals, PrecipDecimals: cfg.PrecipDecimals}
	transformer := pipeline.NewTransformer(newGeocoder(cfg, metrics, logger), normals, precision)

	p := pipeline.New(store, transformer, exporter, logger, metrics)
	if cfg.SaveGeocoded && cfg.Geocoder != config.GeocoderNone {
		p.SetLocationSaver(store)
	}

	report, runErr := p.Run(ctx)
	printSummary(os.Stdout, report)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("write metrics textfile failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, context.Canceled):
		logger.Warn("run interrupted, no artifacts written")
		return exitInterrupted
	case errors.Is(runErr, domain.ErrNoData):
		logger.Error("no data collected, check network access and API availability", "skipped", len(report.Skipped))
		return 1
	default:
		logger.Error("run failed", "error", runErr)
		return 1
	}
}

// newGeocoder builds the configured provider behind the process-wide rate
// limit, with an in-run cache in front so repeated cities skip the limiter.
func newGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Geocoder {
	var provider domain.Geocoder
	switch cfg.Geocoder {
	case config.GeocoderMapbox:
		provider = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, metrics, logger)
	case config.GeocoderNominatim:
		provider = nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, metrics, logger)
	default:
		logger.Info("geocoding disabled, cities without coordinates will be skipped")
		return nil
	}

	logger.Info("geocoding enabled",
		"provider", cfg.Geocoder,
		"interval", cfg.GeocodeInterval,
		"cache_size", cfg.GeocodeCacheSize,
	)
	return geocache.NewCachedGeocoder(throttle.NewGeocoder(provider, cfg.GeocodeInterval), cfg.GeocodeCacheSize, metrics)
}

func printSummary(w io.Writer, r pipeline.Report) {
	fmt.Fprintf(w, "Cities read: %d, enriched: %d, skipped: %d (%.1fs)\n",
		r.Read, r.Enriched, len(r.Skipped), r.Duration.Seconds())
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s, %s at %s: %s\n", s.City, s.Country, s.Stage, s.Reason)
	}
	if len(r.Artifacts) > 0 {
		fmt.Fprintln(w, "Artifacts:")
		for _, path := range r.Artifacts {
			fmt.Fprintf(w, "- %s\n", path)
		}
	}
}
