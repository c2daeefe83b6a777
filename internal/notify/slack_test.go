package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/multierr"
)

func TestSlack_OK(t *testing.T) {
	var got, ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL, "probevisor/test")
	if s == nil {
		t.Fatal("expected slack client")
	}
	err := s.Send(context.Background(), "Title", "Hello")
	if err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got != "*Title*\nHello" {
		t.Fatalf("payload not as expected: %q", got)
	}
	if ua != "probevisor/test" {
		t.Fatalf("user agent not set: %q", ua)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL, "")
	err := s.Send(context.Background(), "X", "Y")
	if err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestSlack_Disabled(t *testing.T) {
	var s *Slack = NewSlack("", "")
	if err := s.Send(context.Background(), "X", "Y"); !errors.Is(err, ErrSlackDisabled) {
		t.Fatalf("expected ErrSlackDisabled, got %v", err)
	}
}

type failing struct{ err error }

func (f failing) Send(context.Context, string, string) error { return f.err }

func TestMulti_CollectsAllErrors(t *testing.T) {
	e1, e2 := errors.New("one"), errors.New("two")
	err := Multi{failing{e1}, nil, failing{nil}, failing{e2}}.Send(context.Background(), "t", "x")
	if got := multierr.Errors(err); len(got) != 2 {
		t.Fatalf("expected 2 errors, got %v", got)
	}
}
