package domain

import "time"

// CheckResult is the outcome of one scheduler iteration for a service.
type CheckResult struct {
	Service          string    `json:"service"`
	Kind             string    `json:"kind"` // http | command
	Target           string    `json:"target"`
	Up               bool      `json:"up"`
	Status           int       `json:"status,omitempty"` // HTTP status or exit code
	LatencyMS        float64   `json:"latency_ms"`
	Reason           string    `json:"reason,omitempty"`
	CertSecondsLeft  *int64    `json:"cert_seconds_left,omitempty"`
	FallbackAttempts int       `json:"fallback_attempts"`
	CheckedAt        time.Time `json:"checked_at"`
}
