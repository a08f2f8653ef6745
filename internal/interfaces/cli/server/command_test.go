package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
)

func TestMapEnvToGinMode(t *testing.T) {
	tests := map[string]string{
		"production":  gin.ReleaseMode,
		"prod":        gin.ReleaseMode,
		"development": gin.DebugMode,
		"debug":       gin.DebugMode,
		"test":        gin.TestMode,
		"staging":     gin.ReleaseMode,
	}
	for in, want := range tests {
		assert.Equal(t, want, mapEnvToGinMode(in), in)
	}
}

func TestServer_InvalidTierSetFailsBeforeDialingRedis(t *testing.T) {
	t.Setenv("GATEWARDEN_ENV", "test")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  host: 127.0.0.1
  port: 1
  dial_timeout: 1s
  connect_retries: 20
ratelimit:
  key_prefix: rl
  tiers:
    - {name: global, kind: global, window_ms: 60000, max: 100}
    - {name: apikey, kind: apikey, window_ms: 60000, max: 50, elevates: ghost}
`), 0o600))

	cmd := NewCommand()
	cmd.SetArgs([]string{"--config", path})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	start := time.Now()
	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "ghost")
	assert.Less(t, time.Since(start), time.Second)
}
