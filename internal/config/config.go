package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Geocoder providers.
const (
	GeocoderNominatim = "nominatim"
	GeocoderMapbox    = "mapbox"
	GeocoderNone      = "none"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	InputPath    string
	OutputDir    string
	OutCSV       string
	OutJSON      string
	OutHTML      string
	SiteDir      string
	SaveGeocoded bool

	LogLevel        string
	LogFormat       string
	MetricsTextfile string
	OTLPEndpoint    string

	// Geocoding configuration.
	Geocoder           string
	GeocodeInterval    time.Duration
	GeocodeTimeout     time.Duration
	GeocodeCacheSize   int
	NominatimURL       string
	NominatimUserAgent string
	MapboxToken        string

	// Climate normals configuration.
	MeteostatURL      string
	MeteostatAPIKey   string
	MeteostatTimeout  time.Duration
	NormalsStart      int
	NormalsEnd        int
	StationCandidates int

	// Display settings.
	ComfortMinF    float64
	ComfortMaxF    float64
	PrecipMaxIn    float64
	TempDecimals   int
	PrecipDecimals int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	geocodeInterval, err := parseDuration("GEOCODE_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	meteostatTimeout, err := parseDuration("METEOSTAT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	candidates, err := parsePositiveInt("STATION_CANDIDATES", 5)
	if err != nil {
		return nil, err
	}
	normalsStart, err := parsePositiveInt("NORMALS_START", 1991)
	if err != nil {
		return nil, err
	}
	normalsEnd, err := parsePositiveInt("NORMALS_END", 2020)
	if err != nil {
		return nil, err
	}
	tempDecimals, err := parseDecimals("TEMP_DECIMALS", 0)
	if err != nil {
		return nil, err
	}
	precipDecimals, err := parseDecimals("PRECIP_DECIMALS", 1)
	if err != nil {
		return nil, err
	}

	comfortMin, err := parseFloat("COMFORT_MIN_F", 50)
	if err != nil {
		return nil, err
	}
	comfortMax, err := parseFloat("COMFORT_MAX_F", 75)
	if err != nil {
		return nil, err
	}
	precipMax, err := parseFloat("PRECIP_MAX_IN", 5)
	if err != nil {
		return nil, err
	}

	saveGeocoded := true
	if v := os.Getenv("SAVE_GEOCODED"); v != "" {
		saveGeocoded = v == "true"
	}

	siteDir := "site"
	if v, ok := os.LookupEnv("SITE_DIR"); ok {
		siteDir = v
	}

	cfg := &Config{
		InputPath:    sharedcfg.EnvOrDefault("INPUT_PATH", "cities_200.csv"),
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		OutCSV:       sharedcfg.EnvOrDefault("OUT_CSV", "dataset_monthly_normals.csv"),
		OutJSON:      sharedcfg.EnvOrDefault("OUT_JSON", "dataset_monthly_normals.json"),
		OutHTML:      sharedcfg.EnvOrDefault("OUT_HTML", "comfort_map_dropdown.html"),
		SiteDir:      siteDir,
		SaveGeocoded: saveGeocoded,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		Geocoder:           sharedcfg.EnvOrDefault("GEOCODER", GeocoderNominatim),
		GeocodeInterval:    geocodeInterval,
		GeocodeTimeout:     geocodeTimeout,
		GeocodeCacheSize:   cacheSize,
		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "nomad-comfort-map"),
		MapboxToken:        os.Getenv("MAPBOX_TOKEN"),

		MeteostatURL:      sharedcfg.EnvOrDefault("METEOSTAT_URL", "https://meteostat.p.rapidapi.com"),
		MeteostatAPIKey:   os.Getenv("METEOSTAT_API_KEY"),
		MeteostatTimeout:  meteostatTimeout,
		NormalsStart:      normalsStart,
		NormalsEnd:        normalsEnd,
		StationCandidates: candidates,

		ComfortMinF:    comfortMin,
		ComfortMaxF:    comfortMax,
		PrecipMaxIn:    precipMax,
		TempDecimals:   tempDecimals,
		PrecipDecimals: precipDecimals,
	}

	if cfg.InputPath == "" {
		return nil, errors.New("INPUT_PATH is required")
	}
	switch cfg.Geocoder {
	case GeocoderNominatim, GeocoderNone:
	case GeocoderMapbox:
		if cfg.MapboxToken == "" {
			return nil, errors.New("GEOCODER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return nil, errors.New("GEOCODER must be one of nominatim, mapbox, none")
	}
	if cfg.MeteostatAPIKey == "" {
		return nil, errors.New("METEOSTAT_API_KEY is required")
	}
	if cfg.NormalsEnd < cfg.NormalsStart {
		return nil, errors.New("NORMALS_END must not be before NORMALS_START")
	}
	if cfg.ComfortMaxF < cfg.ComfortMinF {
		return nil, errors.New("COMFORT_MAX_F must not be below COMFORT_MIN_F")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseDecimals(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, errors.New("invalid " + key + ": must be between 0 and 6")
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}
