package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrecedence(t *testing.T) {
	Env = map[string]string{"CACHE_HOST": "from-file"}
	t.Cleanup(func() { Env = nil })

	t.Setenv("CACHE_HOST", "from-os")
	t.Setenv("CACHE_PORT", "6380")

	assert.Equal(t, "from-file", GetEnv("CACHE_HOST", "fallback"))
	assert.Equal(t, "6380", GetEnv("CACHE_PORT", "6379"))
	assert.Equal(t, "0", GetEnv("CACHE_DB", "0"))
}

func TestSetupEnvFileMissingFileFallsBackToProcessEnv(t *testing.T) {
	t.Setenv("SUBSYNC_ENV_FILE", "testdata/does-not-exist.env")
	t.Setenv("APP_ENV", "dev")

	SetupEnvFile()
	t.Cleanup(func() { Env = nil })

	assert.True(t, IsDev())
}
