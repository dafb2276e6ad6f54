package config

import "time"

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string // connection string for the database
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	SQLLogLevel       string // sets the log level for sql subsystem
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, e.g. "debug:cache.* info:*"
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry
	TelemetryStdout   bool   // write traces and metrics to stdout instead of the endpoint
	ProfilingPort     int    // port for profiling
	Addr              string // listen addr for the http server (plain, h2c)
	TLSAddr           string // listen addr for the http server (tls)
	TLSCertFile       string // path to TLS certificate
	TLSKeyFile        string // path to TLS key
	TLSCAFile         string // path to TLS CA
	TraefikCerts      string // path to traefik certs file
	TraefikCertDomain string // the domain to lookup within the traefik certs
	Fetcher           string // telemetry backend: graphql, postgres, nats
	GraphQLURL        string // endpoint of the paddock graphql service
	FetchTimeout      string // timeout for a single lap fetch
	NatsURL           string // url of the nats server
	NatsBucket        string // jetstream kv bucket for fetched laps, empty disables
	ServeNats         bool   // answer lap requests received via nats
	LandmarksSource   string // file or postgres
	LandmarksFile     string // path to the landmarks yaml file
	MaxSessions       int    // limit of sessions created via http, 0 means no limit
)

const (
	FetcherGraphQL  = "graphql"
	FetcherPostgres = "postgres"
	FetcherNats     = "nats"

	LandmarksFromFile     = "file"
	LandmarksFromPostgres = "postgres"
)

// Config holds the configuration values which are used by the application
type Config struct {
	Fetcher         string
	FetchTimeout    time.Duration
	LandmarksSource string
	ServeNats       bool
}

// ParseDuration returns def if s is not a valid duration.
func ParseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// NeedsDB reports whether one of the configured components uses postgres.
func (c *Config) NeedsDB() bool {
	return c.Fetcher == FetcherPostgres || c.LandmarksSource == LandmarksFromPostgres
}

// NeedsNats reports whether one of the configured components uses nats.
func (c *Config) NeedsNats() bool {
	return c.Fetcher == FetcherNats || c.ServeNats
}
