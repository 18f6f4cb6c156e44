// Package config loads application configuration from environment
// variables, with an optional .env file for development.
package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/coastalgrand/roomstream/errors"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Ingress   IngressConfig
	Pipeline  PipelineConfig
	Store     StoreConfig
	Cache     CacheConfig
	Broadcast BroadcastConfig
	Gateway   GatewayConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name            string        `envconfig:"APP_NAME" default:"roomstream"`
	Environment     string        `envconfig:"APP_ENV" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"` // text or json
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// IngressConfig holds MQTT ingress settings for both adapters.
type IngressConfig struct {
	BrokerURL     string `envconfig:"MQTT_BROKER_URL" default:"tcp://broker.hivemq.com:1883"`
	ClientID      string `envconfig:"MQTT_CLIENT_ID" default:""`
	LocalAddr     string `envconfig:"MQTT_LOCAL_ADDR" default:":1883"`
	LocalDisabled bool   `envconfig:"MQTT_LOCAL_DISABLED" default:"false"`
}

// BrokerHost returns the bare hostname of the remote broker, stripped of
// scheme and port. Devices report their broker as a hostname, so the
// normalizer's mqttServer default must be one too.
func (i *IngressConfig) BrokerHost() string {
	if u, err := url.Parse(i.BrokerURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if host, _, err := net.SplitHostPort(i.BrokerURL); err == nil {
		return host
	}
	return i.BrokerURL
}

// PipelineConfig sizes the processing pool.
type PipelineConfig struct {
	Workers   int `envconfig:"PIPELINE_WORKERS" default:"4"`
	QueueSize int `envconfig:"PIPELINE_QUEUE_SIZE" default:"256"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Type          string `envconfig:"STORE_TYPE" default:"memory"` // memory or mongo
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"roomstream"`
	Seed          bool   `envconfig:"STORE_SEED" default:"true"`
}

// CacheConfig selects and configures the query API cache.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// BroadcastConfig holds the WebSocket dispatcher settings.
type BroadcastConfig struct {
	Addr string `envconfig:"WS_ADDR" default:":8080"`
	Path string `envconfig:"WS_PATH" default:"/ws"`
}

// GatewayConfig holds the HTTP query API settings.
type GatewayConfig struct {
	Addr         string        `envconfig:"HTTP_ADDR" default:":3000"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
}

// IsDevelopment reports whether the app runs in development mode. The
// embedded local broker starts only in development.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from the environment, after loading a .env
// file when one exists. Explicit env file paths override the default.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "process environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", msg)
	}

	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return invalid(fmt.Sprintf("unknown environment %q", c.App.Environment))
	}
	switch c.App.LogFormat {
	case "text", "json":
	default:
		return invalid(fmt.Sprintf("unknown log format %q", c.App.LogFormat))
	}
	switch c.Store.Type {
	case "memory", "mongo":
	default:
		return invalid(fmt.Sprintf("unknown store type %q", c.Store.Type))
	}
	if c.Store.Type == "mongo" && c.Store.MongoURI == "" {
		return invalid("mongo store requires MONGODB_URI")
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return invalid(fmt.Sprintf("unknown cache type %q", c.Cache.Type))
	}
	if c.Ingress.BrokerURL == "" {
		return invalid("remote broker URL required")
	}
	if c.Pipeline.Workers < 1 {
		return invalid("pipeline workers must be positive")
	}
	return nil
}
