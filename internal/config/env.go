package config

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. MEETUP_CLIENT_ID.
const EnvPrefix = "MEETUP"

// envBindings maps environment keys (without prefix) to the setter that
// applies them.
var envBindings = map[string]func(c *Config, v string){
	"client_id":      func(c *Config, v string) { c.Credentials.ClientID = v },
	"client_secret":  func(c *Config, v string) { c.Credentials.ClientSecret = v },
	"refresh_token":  func(c *Config, v string) { c.Credentials.RefreshToken = v },
	"access_token":   func(c *Config, v string) { c.Credentials.AccessToken = v },
	"token_file":     func(c *Config, v string) { c.Credentials.TokenFile = v },
	"group_urlname":  func(c *Config, v string) { c.Group = v },
	"api_url":        func(c *Config, v string) { c.APIURL = v },
	"token_url":      func(c *Config, v string) { c.TokenURL = v },
	"events_path":    func(c *Config, v string) { c.Output.Events = v },
	"calendar_path":  func(c *Config, v string) { c.Output.Calendar = v },
	"archive_path":   func(c *Config, v string) { c.Archive.Path = v },
	"metrics_file":   func(c *Config, v string) { c.Metrics.Textfile = v },
	"log_level":      func(c *Config, v string) { c.Log.Level = v },
	"log_format":     func(c *Config, v string) { c.Log.Format = v },
	"http_timeout": func(c *Config, v string) {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTPTimeout = d
		}
	},
}

// ApplyEnv overlays MEETUP_* environment variables onto c. Set variables win
// over the file; empty ones are ignored.
func (c *Config) ApplyEnv() {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, set := range envBindings {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			set(c, val)
		}
	}
	c.Normalize()
}

// EnvKeys lists the recognized environment variable names, sorted.
func EnvKeys() []string {
	keys := make([]string, 0, len(envBindings))
	for k := range envBindings {
		keys = append(keys, EnvPrefix+"_"+strings.ToUpper(k))
	}
	sort.Strings(keys)
	return keys
}
