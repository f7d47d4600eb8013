package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegnet/pegfollow/internal/asset"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PEGFOLLOW_POSTGRES_DSN", "PEGFOLLOW_FACTOMD_SERVER", "PEGFOLLOW_LISTEN_ADDR",
		"PEGFOLLOW_NETWORK", "PEGFOLLOW_GENESIS", "PEGFOLLOW_GRADER_POLICY", "PEGFOLLOW_API_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, asset.MainNet, settings.Network)
	assert.Equal(t, uint32(1), settings.Genesis)
	assert.Equal(t, "stock", settings.GraderPolicy)
	assert.Equal(t, "localhost:8088", settings.FactomdServer)
	assert.Equal(t, "", settings.PostgresDSN)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PEGFOLLOW_NETWORK", "TestNet")
	t.Setenv("PEGFOLLOW_GENESIS", "1000")
	t.Setenv("PEGFOLLOW_API_TOKEN", "supersecret")

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, asset.TestNet, settings.Network)
	assert.Equal(t, uint32(1000), settings.Genesis)
	assert.Equal(t, "supersecret", settings.APIAuthToken)
}

func TestLoad_UnknownNetwork(t *testing.T) {
	t.Setenv("PEGFOLLOW_NETWORK", "FooNet")
	_, err := Load("")
	require.Error(t, err)
}
