package config

import (
	"flag"
	"os"
	"strconv"
)

const (
	// Command-line flags
	cfConfig      = "config"
	cfVersion     = "version"
	cfLogLevel    = "log-level"
	cfPort        = "port"
	cfHostname    = "hostname"
	cfStatic      = "static"
	cfMetricsPort = "metrics-port"

	// Environment variables
	evPort        = "VALA_PORT"
	evHostname    = "VALA_HOSTNAME"
	evStatic      = "VALA_STATIC_ROOT"
	evMetricsPort = "VALA_METRICS_PORT"
	evLogLevel    = "VALA_LOG_LEVEL"
)

// Flags holds the values of the supported command line flags
type Flags struct {
	PrintVersion bool
	customPath   bool
	ListenPort   int
	MetricsPort  int
	ConfigPath   string
	Hostname     string
	StaticRoot   string
	LogLevel     string
}

// Load returns the application configuration, starting with a default
// config, then overriding with any provided config file, then env vars,
// and finally flags.
func Load(applicationName string, arguments []string) (*Config, *Flags, error) {
	c := NewConfig()
	flags, err := parseFlags(applicationName, arguments)
	if err != nil {
		return nil, flags, err
	}
	if flags.PrintVersion {
		return nil, flags, nil
	}
	if err := c.loadFile(flags); err != nil && flags.customPath {
		// a user-provided path couldn't be loaded
		return nil, flags, err
	}
	c.loadEnvVars()
	c.loadFlags(flags)
	if err := c.Validate(); err != nil {
		return nil, flags, err
	}
	return c, flags, nil
}

func parseFlags(applicationName string, arguments []string) (*Flags, error) {
	flags := &Flags{}
	flagSet := flag.NewFlagSet(applicationName, flag.ContinueOnError)

	flagSet.BoolVar(&flags.PrintVersion, cfVersion, false,
		"Prints the version")
	flagSet.StringVar(&flags.ConfigPath, cfConfig, "",
		"Path to the config file")
	flagSet.StringVar(&flags.LogLevel, cfLogLevel, "",
		"Level of logging to use (debug, info, warn, error)")
	flagSet.IntVar(&flags.ListenPort, cfPort, 0,
		"Port the server listens on")
	flagSet.StringVar(&flags.Hostname, cfHostname, "",
		"Address the server listens on")
	flagSet.StringVar(&flags.StaticRoot, cfStatic, "",
		"Directory served when no route matches")
	flagSet.IntVar(&flags.MetricsPort, cfMetricsPort, 0,
		"Port that the /metrics endpoint listens on")

	if err := flagSet.Parse(arguments); err != nil {
		return nil, err
	}
	if flags.ConfigPath != "" {
		flags.customPath = true
	} else {
		flags.ConfigPath = DefaultConfigPath
	}
	return flags, nil
}

func (c *Config) loadEnvVars() {
	if x := os.Getenv(evPort); x != "" {
		if y, err := strconv.ParseInt(x, 10, 32); err == nil {
			c.Frontend.ListenPort = int(y)
		}
	}
	if x := os.Getenv(evHostname); x != "" {
		c.Frontend.ListenAddress = x
	}
	if x := os.Getenv(evStatic); x != "" {
		c.Static.Root = x
	}
	if x := os.Getenv(evMetricsPort); x != "" {
		if y, err := strconv.ParseInt(x, 10, 32); err == nil {
			c.Metrics.ListenPort = int(y)
		}
	}
	if x := os.Getenv(evLogLevel); x != "" {
		c.Logging.LogLevel = x
	}
}

func (c *Config) loadFlags(flags *Flags) {
	if flags.ListenPort > 0 {
		c.Frontend.ListenPort = flags.ListenPort
	}
	if flags.Hostname != "" {
		c.Frontend.ListenAddress = flags.Hostname
	}
	if flags.StaticRoot != "" {
		c.Static.Root = flags.StaticRoot
	}
	if flags.MetricsPort > 0 {
		c.Metrics.ListenPort = flags.MetricsPort
	}
	if flags.LogLevel != "" {
		c.Logging.LogLevel = flags.LogLevel
	}
}
