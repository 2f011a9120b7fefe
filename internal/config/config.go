package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/five82/stm2mon/internal/ingest"
)

// Sink kinds.
const (
	SinkInflux = "influx"
	SinkSQLite = "sqlite"
)

const (
	defaultConfigPath = "~/.config/stm2mon/config.toml"
	defaultSQLitePath = "~/.local/share/stm2mon/points.db"
	defaultLogFile    = "~/.local/share/stm2mon/stm2mon.log"
	envPrefix         = "STM2"
)

// Config is the full application configuration.
type Config struct {
	Sink    SinkConfig    `mapstructure:"sink"`
	Influx  InfluxConfig  `mapstructure:"influx"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Run     RunConfig     `mapstructure:"run"`

	// File is the config file that was read, or "" when defaults were used.
	File string `mapstructure:"-"`
}

type SinkConfig struct {
	Kind       string `mapstructure:"kind"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type InfluxConfig struct {
	URL      string        `mapstructure:"url"`
	Database string        `mapstructure:"database"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type IngestConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
	AlertFraction float64       `mapstructure:"alert_fraction"`
	EventBuffer   int           `mapstructure:"event_buffer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// RunConfig holds run values from the file, environment or flags. Numbers
// stay text until the operator's form or the headless runner converts them.
type RunConfig struct {
	File     string `mapstructure:"file"`
	RunID    string `mapstructure:"run_id"`
	Material string `mapstructure:"material"`
	Density  string `mapstructure:"density"`
	ZRatio   string `mapstructure:"z_ratio"`
	Target   string `mapstructure:"target"`
}

// Input converts the run section into the form the ingestion engine parses.
func (r RunConfig) Input() ingest.RunInput {
	return ingest.RunInput{
		LogPath:         r.File,
		RunID:           r.RunID,
		Material:        r.Material,
		Density:         r.Density,
		ZRatio:          r.ZRatio,
		TargetThickness: r.Target,
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"sink":           "sink.kind",
	"sqlite-path":    "sink.sqlite_path",
	"influx-url":     "influx.url",
	"influx-db":      "influx.database",
	"poll-interval":  "ingest.poll_interval",
	"alert-fraction": "ingest.alert_fraction",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file",
	"metrics-addr":   "metrics.addr",
	"file":           "run.file",
	"run-id":         "run.run_id",
	"material":       "run.material",
	"density":        "run.density",
	"z-ratio":        "run.z_ratio",
	"target":         "run.target",
}

// RegisterFlags defines the command line flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("sink", "", "time-series store: influx or sqlite")
	fs.String("sqlite-path", "", "SQLite database for the sqlite sink")
	fs.String("influx-url", "", "InfluxDB base URL")
	fs.String("influx-db", "", "InfluxDB database name")
	fs.Duration("poll-interval", 0, "wait between reads when the log has no new data")
	fs.Float64("alert-fraction", 0, "share of the target thickness that raises the alert")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: text or json")
	fs.String("log-file", "", "write logs to this file")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("file", "", "STM-2 log file to follow")
	fs.String("run-id", "", "run identifier (defaults to the log file name)")
	fs.String("material", "", "deposited material")
	fs.String("density", "", "material density in g/cm3")
	fs.String("z-ratio", "", "material z-ratio")
	fs.String("target", "", "target thickness")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sink.kind", SinkInflux)
	v.SetDefault("sink.sqlite_path", defaultSQLitePath)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.database", "stm2")
	v.SetDefault("influx.username", "")
	v.SetDefault("influx.password", "")
	v.SetDefault("influx.timeout", "5s")
	v.SetDefault("ingest.poll_interval", ingest.DefaultPollInterval.String())
	v.SetDefault("ingest.stop_timeout", ingest.DefaultStopTimeout.String())
	v.SetDefault("ingest.alert_fraction", ingest.DefaultAlertFraction)
	v.SetDefault("ingest.event_buffer", ingest.DefaultEventBuffer)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	for _, key := range []string{"file", "run_id", "material", "density", "z_ratio", "target"} {
		v.SetDefault("run."+key, "")
	}
}

// Load reads the config file at path (or the default location), applies
// STM2_* environment overrides and any flags that were set on flags, and
// validates the result. A missing config file is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(resolved)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// MATERIAL is the variable existing acquisition scripts already export.
	if err := v.BindEnv("run.material", envPrefix+"_RUN_MATERIAL", "MATERIAL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	c.Sink.SQLitePath = mustExpand(c.Sink.SQLitePath)
	c.Influx.URL = strings.TrimSpace(c.Influx.URL)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if strings.TrimSpace(c.Log.File) != "" {
		c.Log.File = mustExpand(c.Log.File)
	}
	if strings.TrimSpace(c.Run.File) != "" {
		c.Run.File = mustExpand(c.Run.File)
	}
}

// Validate reports settings the application cannot run with.
func (c Config) Validate() error {
	switch c.Sink.Kind {
	case SinkInflux:
		if c.Influx.URL == "" {
			return invalid("influx.url is required for the influx sink")
		}
	case SinkSQLite:
		if strings.TrimSpace(c.Sink.SQLitePath) == "" {
			return invalid("sink.sqlite_path is required for the sqlite sink")
		}
	default:
		return invalid("unknown sink.kind %q", c.Sink.Kind)
	}
	if c.Ingest.PollInterval <= 0 {
		return invalid("ingest.poll_interval must be positive")
	}
	if c.Ingest.StopTimeout <= 0 {
		return invalid("ingest.stop_timeout must be positive")
	}
	if c.Ingest.AlertFraction <= 0 || c.Ingest.AlertFraction > 1 {
		return invalid("ingest.alert_fraction %v must be in (0, 1]", c.Ingest.AlertFraction)
	}
	if c.Ingest.EventBuffer <= 0 {
		return invalid("ingest.event_buffer must be positive")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, invalid("log.level %q: %v", l.Level, err)
	}
	return level, nil
}

// DefaultLogFile is where the TUI writes its log when log.file is unset.
func DefaultLogFile() string {
	return mustExpand(defaultLogFile)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ingest.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
