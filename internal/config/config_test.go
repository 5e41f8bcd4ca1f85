package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcevents/internal/meetup"
	"kcevents/internal/model"
)

func TestLoadMissingFileReturnsDefaultsWithoutCreatingIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcevents.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, meetup.DefaultGroup, cfg.Group)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "public/data/events.json", cfg.Output.Events)
	assert.Equal(t, ".meetup-refresh-token", cfg.Credentials.TokenFile)
}

func TestLoadPartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcevents.yaml")
	yml := `
group: other-group
http_timeout: 3s
output:
  events: out/events.json
venues:
  - name: The Hub
    address: 1 Main St
    city: Overland Park
    state: KS
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other-group", cfg.Group)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "out/events.json", cfg.Output.Events)
	assert.Equal(t, "public/data/events.ics", cfg.Output.Calendar)
	assert.Equal(t, meetup.DefaultEndpoint, cfg.APIURL)
	assert.Equal(t, 120, cfg.DefaultDurationMinutes)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Venues, 1)
	assert.Equal(t, "Overland Park", cfg.Venues[0].City)
}

func TestLoadExplicitEmptyCalendarDisablesFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcevents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  calendar: \"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Output.Calendar)
}

func TestLoadInvalidYAMLIsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcevents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("group: [unterminated"), 0o600))

	_, err := Load(path)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestSaveRoundTripWithPrivatePerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kcevents.yaml")
	cfg := DefaultConfig()
	cfg.Group = "roundtrip"
	cfg.Venues = []model.Venue{{Name: "The Hub", City: "Overland Park", State: "KS"}}

	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"MEETUP_CLIENT_ID", "MEETUP_CLIENT_SECRET"}, ce.Missing)
	assert.Contains(t, err.Error(), "configuration incomplete")

	cfg.Credentials.ClientID = "id"
	cfg.Credentials.ClientSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Credentials.TokenFile = ""
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Equal(t, []string{"MEETUP_REFRESH_TOKEN"}, ce.Missing)

	static := DefaultConfig()
	static.Credentials.AccessToken = "tok"
	assert.NoError(t, static.Validate())

	static.Venues = []model.Venue{{Name: " "}}
	assert.ErrorAs(t, static.Validate(), &ce)
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("MEETUP_CLIENT_ID", "env-id")
	t.Setenv("MEETUP_CLIENT_SECRET", "env-secret")
	t.Setenv("MEETUP_REFRESH_TOKEN", "env-refresh")
	t.Setenv("MEETUP_GROUP_URLNAME", "env-group")
	t.Setenv("MEETUP_TOKEN_FILE", "/tmp/token")
	t.Setenv("MEETUP_HTTP_TIMEOUT", "2s")
	t.Setenv("MEETUP_ACCESS_TOKEN", "")

	cfg := DefaultConfig()
	cfg.Group = "file-group"
	cfg.Credentials.AccessToken = "file-token"
	cfg.ApplyEnv()

	assert.Equal(t, "env-id", cfg.Credentials.ClientID)
	assert.Equal(t, "env-secret", cfg.Credentials.ClientSecret)
	assert.Equal(t, "env-refresh", cfg.Credentials.RefreshToken)
	assert.Equal(t, "env-group", cfg.Group)
	assert.Equal(t, "/tmp/token", cfg.Credentials.TokenFile)
	assert.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	// Empty variables never clear file values.
	assert.Equal(t, "file-token", cfg.Credentials.AccessToken)
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys()
	assert.Contains(t, keys, "MEETUP_CLIENT_ID")
	assert.Contains(t, keys, "MEETUP_GROUP_URLNAME")
	assert.IsIncreasing(t, keys)
}
