package fallback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/notify"
	"github.com/hamed0406/probevisor/internal/shell"
)

type countingRunner struct {
	n    atomic.Int32
	code int
	err  error
}

func (r *countingRunner) run(ctx context.Context, cmd string) (int, error) {
	r.n.Add(1)
	return r.code, r.err
}

func newController(r *countingRunner) *Controller {
	return &Controller{
		Logger:   zap.NewNop(),
		Counters: NewCounters(),
		Run:      r.run,
		HTTP:     notify.NewHook("probevisor/test"),
	}
}

func intp(i int) *int { return &i }

func TestExecute_CapOfTwo(t *testing.T) {
	r := &countingRunner{}
	c := newController(r)
	action := &config.Action{Command: "restart", MaxAttempts: intp(2)}

	for i, want := range []int{1, 2} {
		res, err := c.Execute(context.Background(), "web", action)
		require.NoError(t, err)
		require.False(t, res.Suppressed, "call %d", i)
		require.Equal(t, want, res.Attempt)
		require.Equal(t, want, c.Counters.Get("web"))
	}

	res, err := c.Execute(context.Background(), "web", action)
	require.NoError(t, err)
	require.True(t, res.Suppressed)
	require.Equal(t, 2, c.Counters.Get("web"))
	require.EqualValues(t, 2, r.n.Load())
}

func TestExecute_Unlimited(t *testing.T) {
	r := &countingRunner{}
	c := newController(r)
	action := &config.Action{Command: "restart"}

	for i := 0; i < 100; i++ {
		res, err := c.Execute(context.Background(), "web", action)
		require.NoError(t, err)
		require.False(t, res.Suppressed)
	}
	require.Equal(t, 100, c.Counters.Get("web"))
	require.EqualValues(t, 100, r.n.Load())
}

func TestExecute_StopZeroNeverRuns(t *testing.T) {
	r := &countingRunner{}
	c := newController(r)

	res, err := c.Execute(context.Background(), "web", &config.Action{Command: "restart", MaxAttempts: intp(0)})
	require.NoError(t, err)
	require.True(t, res.Suppressed)
	require.Zero(t, c.Counters.Get("web"))
	require.Zero(t, r.n.Load())
}

func TestExecute_CountersArePerService(t *testing.T) {
	c := newController(&countingRunner{})
	action := &config.Action{Command: "x", MaxAttempts: intp(1)}

	_, _ = c.Execute(context.Background(), "a", action)
	res, _ := c.Execute(context.Background(), "b", action)
	require.False(t, res.Suppressed)
	require.Equal(t, 1, c.Counters.Get("a"))
	require.Equal(t, 1, c.Counters.Get("b"))
}

func TestExecute_CommandAndHTTP(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer s.Close()

	r := &countingRunner{code: 4}
	c := newController(r)
	res, err := c.Execute(context.Background(), "web", &config.Action{Command: "restart", HTTPURL: s.URL})
	require.NoError(t, err)
	require.NotNil(t, res.CommandExit)
	require.Equal(t, 4, *res.CommandExit)
	require.Equal(t, http.StatusAccepted, res.HTTPStatus)
	require.EqualValues(t, 1, hits.Load())
}

func TestExecute_ErrorsAreCombinedAndCounted(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	r := &countingRunner{err: shell.ErrSignaled}
	c := newController(r)
	res, err := c.Execute(context.Background(), "web", &config.Action{Command: "restart", HTTPURL: url})
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.True(t, errors.Is(err, shell.ErrSignaled))
	require.Nil(t, res.CommandExit)
	require.Equal(t, 1, c.Counters.Get("web"))
}

func TestExecute_RealShellSignal(t *testing.T) {
	t.Setenv("SHELL", "sh")
	c := newController(&countingRunner{})
	c.Run = shell.Run

	_, err := c.Execute(context.Background(), "web", &config.Action{Command: "kill -9 $$"})
	require.ErrorIs(t, err, shell.ErrSignaled)
}

func TestCounters_AdmitIsAtomic(t *testing.T) {
	c := NewCounters()
	max := intp(10)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Admit("web", max); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 10, admitted.Load())
	require.Equal(t, 10, c.Get("web"))
}
