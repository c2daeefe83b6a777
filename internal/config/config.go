package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds process-level settings read from the environment. The service
// definitions themselves live in the YAML file loaded by Load.
type Config struct {
	MetricsPort   int      // port for /metrics and the status API
	MetricsPrefix string   // metric name prefix, e.g. "probevisor" -> probevisor_status
	LogDir        string   // logs directory
	APIKeys       []string // keys accepted by /api routes; empty disables auth
	APIRPM        int      // per-IP requests per minute on /api routes; 0 disables limiting
	CORSOrigins   []string // empty allows any origin
	TraceExporter string   // none | stdout | otlp
	OTLPEndpoint  string   // host:port of the OTLP gRPC receiver
}

func FromEnv() Config {
	port := 9080
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			port = n
		}
	}

	prefix := os.Getenv("METRICS_PREFIX")
	if prefix == "" {
		prefix = "probevisor"
	}

	// Logs
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	rpm := 120
	if v := os.Getenv("API_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			rpm = n
		}
	}

	exporter := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_TRACES_EXPORTER")))
	if exporter == "" {
		exporter = "none"
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	return Config{
		MetricsPort:   port,
		MetricsPrefix: prefix,
		LogDir:        logDir,
		APIKeys:       splitList(os.Getenv("API_KEYS")),
		APIRPM:        rpm,
		CORSOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
		TraceExporter: exporter,
		OTLPEndpoint:  endpoint,
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
