package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const sampleFile = `
services:
  web:
    url: https://example.com/health
    method: post
    headers:
      X-Token: abc
    body:
      json:
        name: probe
        tags: [a, b]
    follow_redirects: true
    timeout: 3s
    max_bytes: 1024
    retries: 2
    every: 1m
    expect:
      status: 200
      header:
        Content-Type: application/json
      body: '"ok"'
      if_not:
        cmd: systemctl restart web
        http: https://hooks.example.com/restart
        stop: 2
  cron:
    test: pgrep cron
    every: 30s
    expect:
      status: 0
      if_not:
        cmd: service cron start
alerts:
  slack_webhook: https://hooks.slack.com/services/T/B/X
  alert_on_recovery: true
`

func TestParse_Sample(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)
	require.Len(t, f.Services, 2)

	cron := f.Services[0]
	require.Equal(t, "cron", cron.Name)
	cp, ok := cron.Probe.(*CommandProbe)
	require.True(t, ok)
	require.Equal(t, "pgrep cron", cp.Command)
	require.Equal(t, 5*time.Second, cp.Timeout)
	require.Equal(t, 30*time.Second, cron.Every)
	require.Nil(t, cron.HTTP())
	require.NotNil(t, cron.OnFailure)
	require.Nil(t, cron.OnFailure.MaxAttempts)

	web := f.Services[1]
	require.Equal(t, "web", web.Name)
	hp := web.HTTP()
	require.NotNil(t, hp)
	require.Equal(t, "POST", hp.Method)
	require.Equal(t, "abc", hp.Headers["X-Token"])
	require.True(t, hp.FollowRedirects)
	require.Equal(t, 3*time.Second, hp.Timeout)
	require.EqualValues(t, 1024, hp.MaxBytes)
	require.Equal(t, 2, hp.Retries)
	jb, ok := hp.Body.(JSONBody)
	require.True(t, ok)
	require.Equal(t, map[string]any{"name": "probe", "tags": []any{"a", "b"}}, jb.Value)

	require.Equal(t, 200, web.Expect.Status)
	require.Equal(t, "application/json", web.Expect.Header["Content-Type"])
	require.NotNil(t, web.Expect.BodyPattern)
	require.True(t, web.Expect.BodyPattern.MatchString(`{"status":"ok"}`))
	require.NotNil(t, web.OnFailure.MaxAttempts)
	require.Equal(t, 2, *web.OnFailure.MaxAttempts)
	require.Equal(t, "https://hooks.example.com/restart", web.OnFailure.HTTPURL)

	require.NotNil(t, f.Alerts)
	require.True(t, f.Alerts.AlertOnRecovery)
	require.Equal(t, 10*time.Minute, f.Alerts.Cooldown)
	require.Equal(t, 30*time.Second, f.Alerts.Every)
}

func TestParse_Bodies(t *testing.T) {
	f, err := Parse([]byte(`
services:
  form:
    url: http://localhost/login
    method: Post
    body:
      form:
        user: admin
    every: 10s
    expect: {status: 200}
  text:
    url: http://localhost/raw
    method: put
    body: "hello world"
    every: 10s
    expect: {status: 204}
`))
	require.NoError(t, err)
	require.Equal(t, FormBody{Values: map[string]string{"user": "admin"}}, f.Services[0].HTTP().Body)
	require.Equal(t, "POST", f.Services[0].HTTP().Method)
	require.Equal(t, TextBody{Text: "hello world"}, f.Services[1].HTTP().Body)
	require.Equal(t, "PUT", f.Services[1].HTTP().Method)
}

func TestParse_StopZero(t *testing.T) {
	f, err := Parse([]byte(`
services:
  s:
    url: http://localhost
    every: 1s
    expect:
      status: 200
      if_not: {cmd: "true", stop: 0}
`))
	require.NoError(t, err)
	require.NotNil(t, f.Services[0].OnFailure.MaxAttempts)
	require.Equal(t, 0, *f.Services[0].OnFailure.MaxAttempts)
	require.Equal(t, "GET", f.Services[0].HTTP().Method)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"both probes": `
services:
  s: {url: "http://x", test: "true", every: 1s, expect: {status: 0}}`,
		"no probe": `
services:
  s: {every: 1s, expect: {status: 0}}`,
		"bad method": `
services:
  s: {url: "http://x", method: FETCH, every: 1s, expect: {status: 200}}`,
		"missing status": `
services:
  s: {url: "http://x", every: 1s, expect: {}}`,
		"missing every": `
services:
  s: {url: "http://x", expect: {status: 200}}`,
		"bad every": `
services:
  s: {url: "http://x", every: 5x, expect: {status: 200}}`,
		"sub-second every": `
services:
  s: {url: "http://x", every: 10ms, expect: {status: 200}}`,
		"empty pattern": `
services:
  s: {url: "http://x", every: 1s, expect: {status: 200, body: "  "}}`,
		"bad raw pattern": `
services:
  s: {url: "http://x", every: 1s, expect: {status: 200, body: 'r"(unclosed"'}}`,
		"bad scheme": `
services:
  s: {url: "ftp://x/file", every: 1s, expect: {status: 200}}`,
		"bad body": `
services:
  s: {url: "http://x", body: {xml: "<a/>"}, every: 1s, expect: {status: 200}}`,
		"empty if_not": `
services:
  s: {url: "http://x", every: 1s, expect: {status: 200, if_not: {stop: 1}}}`,
		"negative stop": `
services:
  s: {url: "http://x", every: 1s, expect: {status: 200, if_not: {cmd: "true", stop: -1}}}`,
		"json and form together": `
services:
  s: {url: "http://x", body: {json: {a: 1}, form: {b: "2"}}, every: 1s, expect: {status: 200}}`,
		"body on command": `
services:
  s: {test: "true", every: 1s, expect: {status: 0, body: "ok"}}`,
		"no services": `services: {}`,
		"alerts without webhook": `
services:
  s: {test: "true", every: 1s, expect: {status: 0}}
alerts: {cooldown: 5m}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParse_ReportsEveryService(t *testing.T) {
	_, err := Parse([]byte(`
services:
  a: {every: 1s, expect: {status: 0}}
  b: {url: "http://x", test: "true", every: 1s, expect: {status: 0}}
`))
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	require.ErrorIs(t, errs[0], ErrNoProbe)
	require.ErrorIs(t, errs[1], ErrBothProbes)
}

func TestParse_EmptyPatternSentinel(t *testing.T) {
	_, err := Parse([]byte(`
services:
  s: {url: "http://x", every: 1s, expect: {status: 200, body: ""}}`))
	require.ErrorIs(t, err, ErrEmptyPattern)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probevisor.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Services, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestParse_JSONBodyValue(t *testing.T) {
	f, err := Parse([]byte(`
services:
  api:
    url: http://x
    method: post
    body:
      json:
        id: 7
        nested: {ok: true}
        list: [1, "two"]
    every: 1s
    expect: {status: 200}
`))
	require.NoError(t, err)
	jb, ok := f.Services[0].HTTP().Body.(JSONBody)
	require.True(t, ok)

	b, err := json.Marshal(jb.Value)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":7,"nested":{"ok":true},"list":[1,"two"]}`, string(b))
}
