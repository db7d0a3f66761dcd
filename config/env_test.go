package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVarsUsesDefaultWhenUnset(t *testing.T) {
	t.Setenv("SWARM_TEST_UNSET_VAR", "")
	got := SubstituteEnvVars("${SWARM_TEST_UNSET_VAR:fallback}")
	assert.Equal(t, "fallback", got)
}

func TestSubstituteEnvVarsUsesEnvValue(t *testing.T) {
	t.Setenv("SWARM_TEST_VAR", "from-env")
	got := SubstituteEnvVars("${SWARM_TEST_VAR:fallback}")
	assert.Equal(t, "from-env", got)
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("SWARM_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())
}

func TestGetEnvironmentReadsSwarmEnv(t *testing.T) {
	t.Setenv("SWARM_ENV", "Production")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
}
