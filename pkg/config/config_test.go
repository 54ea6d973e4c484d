package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, s.Model)
	assert.Equal(t, DefaultMaxRetries, s.MaxRetries)
	assert.Equal(t, DefaultBreakerThreshold, s.BreakerThreshold)
	assert.Equal(t, DefaultBreakerCooldown, s.BreakerCooldown)
	assert.Equal(t, DefaultInactivityTimeout, s.InactivityTimeout)
	assert.True(t, s.BrowserHeadless)
}

func TestLoadYamlOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concierge.yaml")
	content := "model: gpt-4o-mini\nmax_retries: 5\ninactivity_timeout: 10m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", s.Model)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 10*time.Minute, s.InactivityTimeout)
}

func TestEnvOverridesYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 5\n"), 0600))

	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("BREAKER_COOLDOWN_SECONDS", "120")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, s.MaxRetries)
	assert.Equal(t, 2*time.Minute, s.BreakerCooldown)
}

func TestLoadMissingYamlIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
}

func TestLoadMalformedYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [broken"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("breaker_cooldown: soon\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker_cooldown")
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Settings)
		errStr string
	}{
		{
			name:   "valid defaults",
			mutate: func(s *Settings) {},
		},
		{
			name:   "negative retries",
			mutate: func(s *Settings) { s.MaxRetries = -1 },
			errStr: "max_retries",
		},
		{
			name:   "zero threshold",
			mutate: func(s *Settings) { s.BreakerThreshold = 0 },
			errStr: "breaker_threshold",
		},
		{
			name: "keepalive not shorter than inactivity timeout",
			mutate: func(s *Settings) {
				s.KeepAliveInterval = s.InactivityTimeout
			},
			errStr: "keepalive_interval",
		},
		{
			name:   "max delay below base delay",
			mutate: func(s *Settings) { s.RetryMaxDelay = s.RetryBaseDelay / 2 },
			errStr: "retry delays",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := defaults()
			tc.mutate(&s)
			err := s.Validate()
			if tc.errStr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errStr)
			}
		})
	}
}
