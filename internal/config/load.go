package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/probevisor/internal/pattern"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultAlertCooldown = 10 * time.Minute
	defaultAlertEvery    = 30 * time.Second
)

var (
	ErrNoServices   = errors.New("no services defined")
	ErrBothProbes   = errors.New("service cannot have both 'url' and 'test'")
	ErrNoProbe      = errors.New("service must have either 'url' or 'test'")
	ErrEmptyPattern = pattern.ErrEmpty
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report yaml keys instead of Go field names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

type rawFile struct {
	Services map[string]rawService `yaml:"services"`
	Alerts   *rawAlerts            `yaml:"alerts"`
}

type rawService struct {
	URL             string            `yaml:"url" validate:"omitempty,url"`
	Test            string            `yaml:"test"`
	Method          string            `yaml:"method" validate:"oneof=GET HEAD POST PUT PATCH DELETE OPTIONS CONNECT TRACE"`
	Headers         map[string]string `yaml:"headers"`
	Body            *rawBody          `yaml:"body" validate:"-"`
	FollowRedirects bool              `yaml:"follow_redirects"`
	Timeout         string            `yaml:"timeout"`
	MaxBytes        int64             `yaml:"max_bytes" validate:"min=0"`
	Retries         int               `yaml:"retries" validate:"min=0,max=10"`
	Every           string            `yaml:"every" validate:"required"`
	Expect          rawExpect         `yaml:"expect"`
}

type rawExpect struct {
	Status *int              `yaml:"status" validate:"required,min=0,max=999"`
	Header map[string]string `yaml:"header"`
	Body   *string           `yaml:"body"`
	IfNot  *rawAction        `yaml:"if_not"`
}

type rawAction struct {
	Cmd  string `yaml:"cmd"`
	HTTP string `yaml:"http" validate:"omitempty,url"`
	Stop *int   `yaml:"stop" validate:"omitempty,min=0"`
}

type rawAlerts struct {
	SlackWebhook    string `yaml:"slack_webhook" validate:"required,url"`
	Cooldown        string `yaml:"cooldown"`
	AlertOnRecovery bool   `yaml:"alert_on_recovery"`
	Every           string `yaml:"every"`
}

type rawBody struct {
	body Body
}

func (b *rawBody) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		b.body = TextBody{Text: s}
		return nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			break
		}
		key, val := n.Content[0].Value, n.Content[1]
		switch key {
		case "json":
			var v any
			if err := val.Decode(&v); err != nil {
				return err
			}
			b.body = JSONBody{Value: v}
			return nil
		case "form":
			var m map[string]string
			if err := val.Decode(&m); err != nil {
				return err
			}
			b.body = FormBody{Values: m}
			return nil
		}
	}
	return fmt.Errorf("line %d: body must be text, {json: ...} or {form: ...}", n.Line)
}

// Load reads and validates a service file. Every problem found in every
// service is reported in the returned error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse service file: %w", err)
	}
	if len(raw.Services) == 0 {
		return nil, ErrNoServices
	}

	names := make([]string, 0, len(raw.Services))
	for name := range raw.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	f := &File{Services: make([]Service, 0, len(names))}
	for _, name := range names {
		svc, err := raw.Services[name].build(name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("service %q: %w", name, err))
			continue
		}
		f.Services = append(f.Services, svc)
	}

	if raw.Alerts != nil {
		a, err := raw.Alerts.build()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("alerts: %w", err))
		}
		f.Alerts = a
	}

	if errs != nil {
		return nil, errs
	}
	return f, nil
}

func (r rawService) build(name string) (Service, error) {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = "GET"
	}

	errs := structErrors(r)

	switch {
	case r.URL != "" && r.Test != "":
		errs = multierr.Append(errs, ErrBothProbes)
	case r.URL == "" && r.Test == "":
		errs = multierr.Append(errs, ErrNoProbe)
	}

	every, err := ParseDuration(r.Every)
	if r.Every != "" && err != nil {
		errs = multierr.Append(errs, fmt.Errorf("every: %w", err))
	} else if r.Every != "" && every < time.Second {
		errs = multierr.Append(errs, fmt.Errorf("every: must be at least 1s, got %s", every))
	}

	timeout := defaultTimeout
	if r.Timeout != "" {
		if timeout, err = ParseDuration(r.Timeout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("timeout: %w", err))
		} else if timeout <= 0 {
			errs = multierr.Append(errs, errors.New("timeout: must be positive"))
		}
	}

	svc := Service{Name: name, Every: every}
	if r.Expect.Status != nil {
		svc.Expect.Status = *r.Expect.Status
	}

	if r.URL != "" {
		if u, err := url.Parse(r.URL); err == nil && u.Scheme != "http" && u.Scheme != "https" {
			errs = multierr.Append(errs, fmt.Errorf("url: unsupported scheme %q", u.Scheme))
		}
		p := &HTTPProbe{
			URL:             r.URL,
			Method:          r.Method,
			Headers:         r.Headers,
			FollowRedirects: r.FollowRedirects,
			Timeout:         timeout,
			MaxBytes:        r.MaxBytes,
			Retries:         r.Retries,
		}
		if r.Body != nil {
			p.Body = r.Body.body
			if jb, ok := p.Body.(JSONBody); ok {
				if _, err := json.Marshal(jb.Value); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("body: json: %w", err))
				}
			}
		}
		svc.Probe = p

		svc.Expect.Header = r.Expect.Header
		if r.Expect.Body != nil {
			svc.Expect.Body = *r.Expect.Body
			re, err := pattern.Compile(*r.Expect.Body)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expect.body: %w", err))
			}
			svc.Expect.BodyPattern = re
		}
	} else if r.Test != "" {
		svc.Probe = &CommandProbe{Command: r.Test, Timeout: timeout}
		if r.Body != nil {
			errs = multierr.Append(errs, errors.New("body: only applies to url probes"))
		}
		if r.Expect.Body != nil || len(r.Expect.Header) > 0 {
			errs = multierr.Append(errs, errors.New("expect: body and header only apply to url probes"))
		}
	}

	if a := r.Expect.IfNot; a != nil {
		if a.Cmd == "" && a.HTTP == "" {
			errs = multierr.Append(errs, errors.New("expect.if_not: needs cmd or http"))
		}
		svc.OnFailure = &Action{Command: a.Cmd, HTTPURL: a.HTTP, MaxAttempts: a.Stop}
	}

	if errs != nil {
		return Service{}, errs
	}
	return svc, nil
}

func (r rawAlerts) build() (*Alerts, error) {
	errs := structErrors(r)
	a := &Alerts{
		SlackWebhook:    r.SlackWebhook,
		Cooldown:        defaultAlertCooldown,
		AlertOnRecovery: r.AlertOnRecovery,
		Every:           defaultAlertEvery,
	}
	if r.Cooldown != "" {
		d, err := ParseDuration(r.Cooldown)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cooldown: %w", err))
		}
		a.Cooldown = d
	}
	if r.Every != "" {
		d, err := ParseDuration(r.Every)
		if err != nil || d <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("every: invalid duration %q", r.Every))
		}
		a.Every = d
	}
	return a, errs
}

// structErrors runs tag validation and returns one error per failing field.
func structErrors(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var errs error
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := fmt.Sprintf("%s: failed %q", field, fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		errs = multierr.Append(errs, errors.New(msg))
	}
	return errs
}
