package telemetry

// Config controls the OTLP trace exporter. The start command builds one
// from the telemetry section of the configuration file; when Enabled is
// false, Init installs a no-op provider and every span helper in this
// package becomes free.
type Config struct {
	Enabled bool

	// Identity reported to the trace backend.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, host:port.
	// Insecure dials it without TLS, which suits a local collector.
	Endpoint string
	Insecure bool

	// SampleRate is the fraction of traces to keep, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns the package defaults: tracing off, a local
// collector endpoint, and full sampling once enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "pixav",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
