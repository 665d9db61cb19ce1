package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load builds a Config from the environment, filling unset fields from
// their default tags, and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// parsers convert a raw environment value into a field of the given kind.
// Durations are handled before the kind lookup since they are int64s.
var parsers = map[reflect.Kind]func(string) (any, error){
	reflect.String: func(s string) (any, error) { return s, nil },
	reflect.Int: func(s string) (any, error) {
		return strconv.Atoi(s)
	},
	reflect.Int64: func(s string) (any, error) {
		return strconv.ParseInt(s, 10, 64)
	},
	reflect.Float64: func(s string) (any, error) {
		return strconv.ParseFloat(s, 64)
	},
	reflect.Bool: func(s string) (any, error) {
		return strconv.ParseBool(s)
	},
}

// envValue resolves the raw value for a tagged field: the env variable,
// then envAlt, then the default tag. ok is false when nothing applies.
func envValue(tag reflect.StructTag) (name, value string, ok bool, err error) {
	name = tag.Get("env")
	if name == "" {
		return "", "", false, nil
	}
	for _, key := range []string{name, tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if v := os.Getenv(key); v != "" {
			return name, v, true, nil
		}
	}
	if tag.Get("required") == "true" {
		return name, "", false, fmt.Errorf("required environment variable %s is not set", name)
	}
	def := tag.Get("default")
	return name, def, def != "", nil
}

// loadStruct fills v, descending into nested config sections.
func loadStruct(v reflect.Value) error {
	for i := 0; i < v.NumField(); i++ {
		sf, fv := v.Type().Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv); err != nil {
				return err
			}
			continue
		}

		name, raw, ok, err := envValue(sf.Tag)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", name, raw, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch {
	case fv.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		fv.Set(reflect.ValueOf(items))
		return nil
	}

	parse, ok := parsers[fv.Kind()]
	if !ok {
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	val, err := parse(raw)
	if err != nil {
		return err
	}
	fv.Set(reflect.ValueOf(val).Convert(fv.Type()))
	return nil
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	db := c.Database
	if db.UsePostgres() {
		check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
		check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
		check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	check(c.Upload.MaxFileSize > 0, "UPLOAD_MAX_FILE_SIZE must be positive")
	check(c.Upload.MaxConcurrent > 0, "UPLOAD_MAX_CONCURRENT must be positive")
	check(c.Upload.MaxWait > 0, "UPLOAD_MAX_WAIT must be positive")

	check(!c.Rate.Enabled || c.Rate.RequestsPerMinute > 0,
		"RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")

	arf := c.ARF
	check(arf.ThresholdLo < arf.ThresholdHi, "ARF_THRESH_LO (%g) must be below ARF_THRESH_HI (%g)",
		arf.ThresholdLo, arf.ThresholdHi)
	check(arf.EnergyMin > 0 && arf.EnergyMin < arf.EnergyMax,
		"ARF_ENERGY_MIN (%g) and ARF_ENERGY_MAX (%g) must satisfy 0 < min < max", arf.EnergyMin, arf.EnergyMax)
	check(arf.Bins > 0, "ARF_BINS must be positive")
	check(arf.MaxBins >= arf.Bins, "ARF_MAX_BINS (%d) must be >= ARF_BINS (%d)", arf.MaxBins, arf.Bins)

	plot := c.Plot
	check(plot.Width > 0 && plot.Height > 0, "PLOT_WIDTH and PLOT_HEIGHT (%dx%d) must be positive",
		plot.Width, plot.Height)
	check(plot.MaxWidth >= plot.Width && plot.MaxHeight >= plot.Height,
		"PLOT_MAX_WIDTH and PLOT_MAX_HEIGHT (%dx%d) must be at least PLOT_WIDTH and PLOT_HEIGHT (%dx%d)",
		plot.MaxWidth, plot.MaxHeight, plot.Width, plot.Height)

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		check(false, "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		check(false, "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	if c.Database.UsePostgres() {
		fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d}, ", c.Database.MaxConns)
	} else {
		b.WriteString("Database: {memory}, ")
	}
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d, MaxWait: %s}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.MaxWait)
	fmt.Fprintf(&b, "ARF: {Telescope: %q, Instrument: %q, Thresholds: %g-%g TeV, Grid: %g-%g TeV/%d}, ",
		c.ARF.Telescope, c.ARF.Instrument, c.ARF.ThresholdLo, c.ARF.ThresholdHi,
		c.ARF.EnergyMin, c.ARF.EnergyMax, c.ARF.Bins)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
