package config

import (
	"regexp"
	"time"
)

// File is a loaded and validated service file.
type File struct {
	Services []Service // sorted by name
	Alerts   *Alerts   // nil when no alerts block is configured
}

// Service is one supervised target. Values are built once by Load and never
// mutated afterwards.
type Service struct {
	Name      string
	Probe     Probe
	Every     time.Duration
	Expect    Expect
	OnFailure *Action
}

// Probe is either *HTTPProbe or *CommandProbe.
type Probe interface {
	Kind() string
}

type HTTPProbe struct {
	URL             string
	Method          string
	Headers         map[string]string
	Body            Body // nil when no body is sent
	FollowRedirects bool
	Timeout         time.Duration
	MaxBytes        int64 // 0 reads the whole body
	Retries         int   // extra attempts on transport errors
}

func (*HTTPProbe) Kind() string { return "http" }

// CommandProbe runs Command through the user's shell; its exit code is
// compared against Expect.Status.
type CommandProbe struct {
	Command string
	Timeout time.Duration
}

func (*CommandProbe) Kind() string { return "command" }

// Body is one of JSONBody, FormBody or TextBody.
type Body interface {
	isBody()
}

type JSONBody struct {
	Value any
}

type FormBody struct {
	Values map[string]string
}

type TextBody struct {
	Text string
}

func (JSONBody) isBody() {}
func (FormBody) isBody() {}
func (TextBody) isBody() {}

type Expect struct {
	Status      int
	Header      map[string]string // response header -> required value prefix
	Body        string            // pattern as written in the file
	BodyPattern *regexp.Regexp    // compiled Body, nil when unset
}

// Action is the fallback run when a probe does not match expectations.
type Action struct {
	Command     string
	HTTPURL     string
	MaxAttempts *int // nil means unlimited
}

type Alerts struct {
	SlackWebhook    string
	Cooldown        time.Duration
	AlertOnRecovery bool
	Every           time.Duration
}

// HTTP returns the service's HTTP probe, or nil for command probes.
func (s Service) HTTP() *HTTPProbe {
	p, _ := s.Probe.(*HTTPProbe)
	return p
}
