package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tcncore/internal/protocol/report"
	"tcncore/internal/services/observation"
)

// ConfigFile is the name of the optional config file inside Home.
const ConfigFile = "config.yaml"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home      string `yaml:"home"`      // data directory, e.g. $HOME/.tcn
	RelayURL  string `yaml:"relay_url"` // relay base URL, e.g. http://127.0.0.1:8080
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	TokenInterval     time.Duration `yaml:"token_interval"`
	RotationPeriod    time.Duration `yaml:"rotation_period"`
	AcceptanceWindow  time.Duration `yaml:"acceptance_window"`
	MaxReportLength   uint32        `yaml:"max_report_length"`
	ReplayTolerance   uint32        `yaml:"replay_tolerance"`
	MaxHistoricalKeys int           `yaml:"max_historical_keys"`

	// Retention of observations; zero means MinRetention.
	Retention        time.Duration `yaml:"retention"`
	TimeSlack        time.Duration `yaml:"time_slack"`
	MaxContactWindow time.Duration `yaml:"max_contact_window"`
	Workers          int           `yaml:"workers"`
	FetchLimit       int           `yaml:"fetch_limit"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
	HTTP        *http.Client  `yaml:"-"` // optional; built from HTTPTimeout when nil
}

// DefaultConfig returns the configuration used when no file or flag says
// otherwise.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Home:              filepath.Join(home, ".tcn"),
		RelayURL:          "http://127.0.0.1:8080",
		LogLevel:          "info",
		LogFormat:         "text",
		TokenInterval:     15 * time.Minute,
		RotationPeriod:    24 * time.Hour,
		AcceptanceWindow:  14 * 24 * time.Hour,
		MaxReportLength:   report.DefaultMaxLength,
		ReplayTolerance:   4,
		MaxHistoricalKeys: 32,
		Retention:         28 * 24 * time.Hour,
		TimeSlack:         24 * time.Hour,
		Workers:           4,
		FetchLimit:        100,
		HTTPTimeout:       30 * time.Second,
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an
// error when allowMissing is set.
func LoadConfig(path string, allowMissing bool) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func (c *Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// MinRetention is the shortest observation retention that still covers
// every report the device may accept.
func (c *Config) MinRetention() time.Duration {
	return observation.MinRetention(c.AcceptanceWindow, c.TokenInterval, c.MaxReportLength)
}

// MinHistoricalKeys is how many retired keys can still be inside their
// acceptance window at once. Pruning below it would drop reportable keys.
func (c *Config) MinHistoricalKeys() int {
	if c.RotationPeriod <= 0 {
		return 1
	}
	n := (c.AcceptanceWindow + c.RotationPeriod - 1) / c.RotationPeriod
	return max(int(n), 1)
}

// Validate checks cfg for values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Home == "" {
		errs = append(errs, errors.New("home is required"))
	}
	if c.TokenInterval <= 0 {
		errs = append(errs, errors.New("token_interval must be positive"))
	}
	if c.RotationPeriod < c.TokenInterval {
		errs = append(errs, errors.New("rotation_period must be at least one token_interval"))
	}
	if c.AcceptanceWindow < c.RotationPeriod {
		errs = append(errs, errors.New("acceptance_window must be at least one rotation_period"))
	}
	if c.MaxReportLength == 0 {
		errs = append(errs, errors.New("max_report_length must be positive"))
	}
	if need := c.MinHistoricalKeys(); c.MaxHistoricalKeys < need {
		errs = append(errs, fmt.Errorf("max_historical_keys %d is below the %d retired keys one acceptance_window can hold", c.MaxHistoricalKeys, need))
	}
	if c.TimeSlack < 0 || c.MaxContactWindow < 0 {
		errs = append(errs, errors.New("time_slack and max_contact_window must not be negative"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if c.FetchLimit < 1 {
		errs = append(errs, errors.New("fetch_limit must be at least 1"))
	}
	if c.Retention != 0 && c.TokenInterval > 0 && c.Retention < c.MinRetention() {
		errs = append(errs, fmt.Errorf("retention %s is shorter than the %s needed to match every acceptable report", c.Retention, c.MinRetention()))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
