package main

import (
	"testing"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConfigValue(t *testing.T) {
	cfg := &Config{}

	require.NoError(t, setConfigValue(cfg, "default.base_url", "https://staging.foanalytics.dev"))
	require.NoError(t, setConfigValue(cfg, "auth.token", "tok-abc"))
	assert.Equal(t, "https://staging.foanalytics.dev", cfg.Default.BaseURL)
	assert.Equal(t, "tok-abc", cfg.Auth.Token)

	assert.Error(t, setConfigValue(cfg, "nosection", "x"))
	assert.Error(t, setConfigValue(cfg, "default.unknown", "x"))
	assert.Error(t, setConfigValue(cfg, "other.token", "x"))
}

func TestConfigTOMLRoundTrip(t *testing.T) {
	cfg := &Config{
		Default: ConfigDefault{BaseURL: "https://app.foanalytics.dev"},
		Auth:    ConfigAuth{Token: "tok-abc"},
	}

	data, err := toml.Marshal(cfg)
	require.NoError(t, err)

	var got Config
	require.NoError(t, toml.Unmarshal(data, &got))
	assert.Equal(t, *cfg, got)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "tok-...wxyz", maskToken("tok-1234567890wxyz"))
}
