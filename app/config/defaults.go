package config

const (
	// DefaultConfigPath is the default location of the config file
	DefaultConfigPath = "/etc/vala/vala.yaml"

	DefaultStrictRoutes = true

	DefaultListenAddress    = ""
	DefaultListenPort       = 8080
	DefaultConnectionsLimit = 0
	DefaultIdleTimeoutMS    = 120000
	DefaultRequestTimeoutMS = 0
	DefaultMaxHeaderBytes   = 1 << 20
	DefaultMaxBodyBytes     = 10 << 20
	DefaultCompression      = true

	DefaultMetricsListenAddress = ""
	DefaultMetricsListenPort    = 8481

	DefaultTracingProvider    = "none"
	DefaultTracingServiceName = "vala"
	DefaultTracingSampleRate  = 1.0
)
