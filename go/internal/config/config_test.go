package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/issues"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, FeedListen, cfg.Feed.Mode)
	assert.Equal(t, "poker_changes", cfg.Feed.NotifyChannel)
	assert.Equal(t, PresenceMemory, cfg.Presence.Transport)
	assert.Equal(t, 1, cfg.Policy.MinVotesToReveal)
	assert.False(t, cfg.Policy.SpectatorsCanControl)
	assert.Equal(t, 30*time.Second, cfg.ResyncInterval)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
game_id: sprint-42
activation_mode: steps
feed:
  mode: poll
  poll_interval: 500ms
presence:
  transport: nats
  ttl: 1m
policy:
  min_votes_to_reveal: 2
`), 0o600))

	t.Setenv("FEED_MODE", "memory")
	t.Setenv("SPECTATORS_CAN_CONTROL", "true")
	t.Setenv("RETRY_BASE_DELAY", "50ms")
	t.Setenv("RETRY_MAX", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sprint-42", cfg.GameID)
	assert.Equal(t, FeedMemory, cfg.Feed.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Feed.PollInterval)
	assert.Equal(t, PresenceNATS, cfg.Presence.Transport)
	assert.Equal(t, time.Minute, cfg.Presence.TTL)
	assert.Equal(t, 2, cfg.Policy.MinVotesToReveal)
	assert.True(t, cfg.Policy.SpectatorsCanControl)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryConfig().BaseDelay)
	assert.Equal(t, 3, cfg.RetryConfig().MaxRetries, "unparsable values keep the default")

	mode, err := cfg.Activation()
	require.NoError(t, err)
	assert.Equal(t, issues.ActivateSteps, mode)

	sc := cfg.SessionConfig()
	assert.Equal(t, "sprint-42", sc.GameID)
	assert.Equal(t, cfg.Policy, sc.Policy)
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	t.Setenv("FEED_MODE", "carrier-pigeon")
	_, err := Load("")
	assert.ErrorContains(t, err, "feed mode")

	t.Setenv("FEED_MODE", "")
	t.Setenv("PRESENCE_TRANSPORT", "smoke")
	_, err = Load("")
	assert.ErrorContains(t, err, "presence transport")

	t.Setenv("PRESENCE_TRANSPORT", "")
	t.Setenv("ACTIVATION_MODE", "magic")
	_, err = Load("")
	assert.ErrorContains(t, err, "activation mode")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed: [unclosed"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestEnsureGameIDCreatesRoomOnlyWhenMissing(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.EnsureGameID())
	assert.Regexp(t, `^room-[0-9a-f]{8}$`, cfg.GameID)

	first := cfg.GameID
	assert.False(t, cfg.EnsureGameID())
	assert.Equal(t, first, cfg.GameID)

	other := Default()
	other.EnsureGameID()
	assert.NotEqual(t, first, other.GameID)

	named := Default()
	named.GameID = "sprint-42"
	assert.False(t, named.EnsureGameID())
	assert.Equal(t, "sprint-42", named.GameID)
}
