// Package config provides the framework configuration, including parsing
// configuration files, command line parameters and environment variables,
// as well as default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/xavierroma/vala/app/logging"

	"gopkg.in/yaml.v2"
)

// Config is the main configuration object
type Config struct {
	// Main holds general settings
	Main *MainConfig `yaml:"main,omitempty"`
	// Frontend configures the connection server
	Frontend *FrontendConfig `yaml:"frontend,omitempty"`
	// Static configures the static file fallback
	Static *StaticConfig `yaml:"static,omitempty"`
	// Logging configures logging behavior
	Logging *logging.Options `yaml:"logging,omitempty"`
	// Metrics configures the metrics listener
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	// Tracing configures distributed tracing
	Tracing *TracingConfig `yaml:"tracing,omitempty"`

	LoaderWarnings []string `yaml:"-"`
}

// MainConfig is a collection of general configuration values
type MainConfig struct {
	// StrictRoutes makes a duplicate route a startup error; when false the
	// later route replaces the earlier one with a warning
	StrictRoutes bool `yaml:"strict_routes"`
}

// FrontendConfig configures the listener and per-connection behavior
type FrontendConfig struct {
	ListenAddress    string `yaml:"listen_address,omitempty"`
	ListenPort       int    `yaml:"listen_port,omitempty"`
	ConnectionsLimit int    `yaml:"connections_limit,omitempty"`
	// IdleTimeoutMS bounds the wait for the next request on a connection
	IdleTimeoutMS int `yaml:"idle_timeout_ms,omitempty"`
	// RequestTimeoutMS bounds one middleware chain; 0 disables it
	RequestTimeoutMS int   `yaml:"request_timeout_ms,omitempty"`
	MaxHeaderBytes   int   `yaml:"max_header_bytes,omitempty"`
	MaxBodyBytes     int64 `yaml:"max_body_bytes,omitempty"`
	Compression      bool  `yaml:"compression"`

	IdleTimeout    time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`
}

// StaticConfig configures the static file fallback
type StaticConfig struct {
	// Root is the directory searched when no route matches; empty disables
	Root       string `yaml:"root,omitempty"`
	CacheTTLMS int    `yaml:"cache_ttl_ms,omitempty"`

	CacheTTL time.Duration `yaml:"-"`
}

// MetricsConfig configures the prometheus listener
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address,omitempty"`
	// ListenPort of 0 disables the metrics listener
	ListenPort int `yaml:"listen_port,omitempty"`
}

// TracingConfig configures the tracer provider
type TracingConfig struct {
	// Provider is one of none or stdout
	Provider    string  `yaml:"provider,omitempty"`
	ServiceName string  `yaml:"service_name,omitempty"`
	SampleRate  float64 `yaml:"sample_rate,omitempty"`
}

// NewConfig returns a Config initialized with default values
func NewConfig() *Config {
	return &Config{
		Main: &MainConfig{
			StrictRoutes: DefaultStrictRoutes,
		},
		Frontend: &FrontendConfig{
			ListenAddress:    DefaultListenAddress,
			ListenPort:       DefaultListenPort,
			ConnectionsLimit: DefaultConnectionsLimit,
			IdleTimeoutMS:    DefaultIdleTimeoutMS,
			RequestTimeoutMS: DefaultRequestTimeoutMS,
			MaxHeaderBytes:   DefaultMaxHeaderBytes,
			MaxBodyBytes:     DefaultMaxBodyBytes,
			Compression:      DefaultCompression,
		},
		Static:  &StaticConfig{},
		Logging: logging.NewOptions(),
		Metrics: &MetricsConfig{
			ListenAddress: DefaultMetricsListenAddress,
			ListenPort:    DefaultMetricsListenPort,
		},
		Tracing: &TracingConfig{
			Provider:    DefaultTracingProvider,
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
		},
	}
}

var (
	// ErrInvalidPort is returned for a listen port outside 0-65535
	ErrInvalidPort = errors.New("invalid listen port")
	// ErrInvalidTracingProvider is returned for an unknown tracing provider
	ErrInvalidTracingProvider = errors.New("invalid tracing provider")
)

// Validate checks the config and derives the duration fields
func (c *Config) Validate() error {
	if c.Frontend.ListenPort < 0 || c.Frontend.ListenPort > 65535 {
		return fmt.Errorf("frontend: %w: %d", ErrInvalidPort, c.Frontend.ListenPort)
	}
	if c.Metrics.ListenPort < 0 || c.Metrics.ListenPort > 65535 {
		return fmt.Errorf("metrics: %w: %d", ErrInvalidPort, c.Metrics.ListenPort)
	}
	switch c.Tracing.Provider {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTracingProvider, c.Tracing.Provider)
	}
	if c.Frontend.MaxHeaderBytes <= 0 {
		c.Frontend.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	c.Frontend.IdleTimeout = time.Duration(c.Frontend.IdleTimeoutMS) * time.Millisecond
	c.Frontend.RequestTimeout = time.Duration(c.Frontend.RequestTimeoutMS) * time.Millisecond
	c.Static.CacheTTL = time.Duration(c.Static.CacheTTLMS) * time.Millisecond
	if c.Static.Root != "" {
		if fi, err := os.Stat(c.Static.Root); err != nil || !fi.IsDir() {
			c.LoaderWarnings = append(c.LoaderWarnings,
				"static root is not a readable directory: "+c.Static.Root)
		}
	}
	return nil
}

// loadYAML overlays the YAML document onto c
func (c *Config) loadYAML(b []byte) error {
	return yaml.Unmarshal(b, c)
}

func (c *Config) loadFile(flags *Flags) error {
	b, err := os.ReadFile(flags.ConfigPath)
	if err != nil {
		return err
	}
	return c.loadYAML(b)
}

// String returns the running configuration as YAML
func (c *Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
