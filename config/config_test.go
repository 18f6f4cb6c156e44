package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalgrand/roomstream/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "roomstream", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, "tcp://broker.hivemq.com:1883", cfg.Ingress.BrokerURL)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, ":3000", cfg.Gateway.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_TYPE", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("PIPELINE_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.App.IsDevelopment())
	assert.Equal(t, "mongo", cfg.Store.Type)
	assert.Equal(t, "mongodb://db:27017", cfg.Store.MongoURI)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
}

func TestBrokerHost(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"tcp://broker.hivemq.com:1883", "broker.hivemq.com"},
		{"ssl://broker.example.com:8883", "broker.example.com"},
		{"tcp://localhost:1883", "localhost"},
		{"localhost:1883", "localhost"},
		{"broker.hivemq.com", "broker.hivemq.com"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ing := IngressConfig{BrokerURL: tt.url}
			assert.Equal(t, tt.want, ing.BrokerHost())
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.App.Environment = "qa" }},
		{"unknown log format", func(c *Config) { c.App.LogFormat = "xml" }},
		{"unknown store type", func(c *Config) { c.Store.Type = "postgres" }},
		{"mongo without URI", func(c *Config) { c.Store.Type = "mongo"; c.Store.MongoURI = "" }},
		{"unknown cache type", func(c *Config) { c.Cache.Type = "memcached" }},
		{"empty broker URL", func(c *Config) { c.Ingress.BrokerURL = "" }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}
