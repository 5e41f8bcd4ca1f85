package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kcevents/internal/fsutil"
	"kcevents/internal/meetup"
	"kcevents/internal/model"
)

// NOTE: The YAML file is optional. Everything needed for a CI run can come
// from MEETUP_* environment variables; see ApplyEnv.

const (
	defaultEventsPath   = "public/data/events.json"
	defaultCalendarPath = "public/data/events.ics"
	defaultCalendarName = "Code and Coffee KC"
	defaultTokenFile    = ".meetup-refresh-token"
	defaultListen       = "127.0.0.1:8080"
	defaultHTTPTimeout  = 15 * time.Second
	defaultDuration     = 120
)

// ConfigError reports configuration that cannot produce a run.
type ConfigError struct {
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("configuration incomplete: missing %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("configuration invalid: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CredentialsConfig holds Meetup OAuth client credentials. These are secrets
// and are normally supplied through the environment, not the file.
type CredentialsConfig struct {
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	// AccessToken skips the exchange entirely when set.
	AccessToken string `yaml:"access_token,omitempty"`
	// TokenFile persists rotated refresh tokens between runs.
	TokenFile string `yaml:"token_file"`
}

// OutputConfig locates the generated artifacts.
type OutputConfig struct {
	Events string `yaml:"events"`
	// Calendar is the ICS feed path; empty disables the feed.
	Calendar     string `yaml:"calendar"`
	CalendarName string `yaml:"calendar_name"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type MetricsConfig struct {
	// Textfile is a node_exporter textfile-collector path; empty disables.
	Textfile string `yaml:"textfile,omitempty"`
}

type ArchiveConfig struct {
	// Path is a SQLite database keeping one snapshot per run; empty disables.
	Path string `yaml:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview server.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Group is the Meetup group urlname.
	Group    string `yaml:"group"`
	APIURL   string `yaml:"api_url"`
	TokenURL string `yaml:"token_url"`
	// HTTPTimeout bounds each upstream request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// DefaultDurationMinutes applies to events without a usable end time.
	DefaultDurationMinutes int `yaml:"default_duration_minutes"`

	Credentials CredentialsConfig `yaml:"credentials"`
	Output      OutputConfig      `yaml:"output"`

	// Venues are consulted before the built-in venue table.
	Venues []model.Venue `yaml:"venues"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Archive ArchiveConfig `yaml:"archive"`

	// Listen is the preview server address.
	Listen string `yaml:"listen"`
	// BasicAuth, if non-nil, protects every preview endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Group:                  meetup.DefaultGroup,
		APIURL:                 meetup.DefaultEndpoint,
		TokenURL:               meetup.DefaultTokenURL,
		HTTPTimeout:            defaultHTTPTimeout,
		DefaultDurationMinutes: defaultDuration,
		Credentials:            CredentialsConfig{TokenFile: defaultTokenFile},
		Output: OutputConfig{
			Events:       defaultEventsPath,
			Calendar:     defaultCalendarPath,
			CalendarName: defaultCalendarName,
		},
		Venues: []model.Venue{},
		Log:    LogConfig{Level: "info", Format: "text"},
		Listen: defaultListen,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly. Output.Calendar is left alone: an
// explicit empty value disables the feed.
func (c *Config) Normalize() {
	c.Group = strings.TrimSpace(c.Group)
	if c.Group == "" {
		c.Group = meetup.DefaultGroup
	}
	if c.APIURL == "" {
		c.APIURL = meetup.DefaultEndpoint
	}
	if c.TokenURL == "" {
		c.TokenURL = meetup.DefaultTokenURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = defaultDuration
	}
	if c.Credentials.TokenFile == "" {
		c.Credentials.TokenFile = defaultTokenFile
	}
	if c.Output.Events == "" {
		c.Output.Events = defaultEventsPath
	}
	if c.Output.CalendarName == "" {
		c.Output.CalendarName = defaultCalendarName
	}
	if c.Venues == nil {
		c.Venues = []model.Venue{}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = "info"
	}
	switch strings.ToLower(c.Log.Format) {
	case "json":
		c.Log.Format = "json"
	default:
		c.Log.Format = "text"
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
}

// Validate reports whether c can drive a run. A static access token is
// enough on its own; otherwise the client id and secret are required, with
// the refresh token coming from the environment or the token file.
func (c *Config) Validate() error {
	var missing []string
	if c.Credentials.AccessToken == "" {
		if c.Credentials.ClientID == "" {
			missing = append(missing, "MEETUP_CLIENT_ID")
		}
		if c.Credentials.ClientSecret == "" {
			missing = append(missing, "MEETUP_CLIENT_SECRET")
		}
		if c.Credentials.RefreshToken == "" && c.Credentials.TokenFile == "" {
			missing = append(missing, "MEETUP_REFRESH_TOKEN")
		}
	}
	if c.Group == "" {
		missing = append(missing, "group")
	}
	if c.Output.Events == "" {
		missing = append(missing, "output.events")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing, Err: errors.New("required settings are empty")}
	}
	for i, v := range c.Venues {
		if strings.TrimSpace(v.Name) == "" {
			return &ConfigError{Err: fmt.Errorf("venues[%d]: name is required", i)}
		}
	}
	return nil
}

// Load reads the YAML configuration at path. An empty path or a missing file
// yields the defaults; unlike a long-running service, a build job must not
// create files it was not asked for.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically with 0600 perms, since the file may
// hold client secrets.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600, 0o700)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
