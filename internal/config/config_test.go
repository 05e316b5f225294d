package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DESK_PREFERENCE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.Remote.BaseURL)
	assert.Equal(t, "queue", cfg.Sync.Taxonomy)
	assert.Equal(t, 3*time.Second, cfg.Push.ReconnectBase())
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Debounce())
	assert.Equal(t, PreferenceMemory, cfg.Desk.PreferenceBackend)
	assert.Equal(t, "0.0.0.0:8090", cfg.App.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKET_API_URL", "http://tickets.internal/api")
	t.Setenv("PUSH_RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("PUSH_RECONNECT_JITTER", "0.5")
	t.Setenv("SYNC_POLL_INTERVAL_SECONDS", "0")
	t.Setenv("TICKET_API_PAGE_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://tickets.internal/api", cfg.Remote.BaseURL)
	assert.Equal(t, 3, cfg.Push.MaxAttempts)
	assert.Equal(t, 0.5, cfg.Push.Jitter)
	assert.Zero(t, cfg.Sync.PollInterval())
	assert.Equal(t, 100, cfg.Remote.PageSize)
}

func TestLoadRejectsUnknownPreferenceBackend(t *testing.T) {
	t.Setenv("DESK_PREFERENCE_BACKEND", "etcd")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DESK_PREFERENCE_BACKEND", PreferencePostgres)
	t.Setenv("POSTGRES_DSN", "")
	_, err = Load()
	assert.Error(t, err)
}
