package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestUnmarshalOverridesDefaultsAndParsesDurations(t *testing.T) {
	doc := `
port: 8883
qos_retry_interval: 5s
session_expiry: 2h
max_clients: 100
`
	cfg := Default()
	require.NoError(t, yaml.Unmarshal([]byte(doc), cfg))

	assert.Equal(t, 8883, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.QoSRetryInterval)
	assert.Equal(t, 2*time.Hour, cfg.SessionExpiry)
	assert.Equal(t, 100, cfg.MaxClients)
	// untouched fields keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.BindAddr)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPacketSizeBelowPayloadSize(t *testing.T) {
	cfg := Default()
	cfg.MaxPayloadSize = 8192
	cfg.MaxPacketSize = 4096
	assert.Error(t, cfg.Validate())
}
