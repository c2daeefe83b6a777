package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/probevisor/internal/httpapi/middleware"
	"github.com/hamed0406/probevisor/internal/repo"
)

// ErrServerExited is returned by Serve when the server stops on its own.
var ErrServerExited = errors.New("metrics server exited")

const errNoMetrics = "No metrics collected in the registry"

type Server struct {
	Logger      *zap.Logger
	Gatherer    prometheus.Gatherer
	Results     repo.ResultStore // optional; enables /api/services
	APIKeys     []string
	APIRPM      int
	CORSOrigins []string
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if len(s.CORSOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/metrics", s.handleMetrics)

	if s.Results != nil {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(s.APIRPM))
			r.Use(apimw.RequireKey(s.APIKeys))
			r.Get("/api/services", s.handleServices)
		})
	}
	return r
}

// handleMetrics renders every registered series in the Prometheus text
// format. An empty registry is a server error, not an empty page.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	mfs, err := s.Gatherer.Gather()
	if err != nil {
		s.Logger.Error("metrics_gather_error", zap.Error(err))
		http.Error(w, "gather metrics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(mfs) == 0 {
		http.Error(w, errNoMetrics, http.StatusInternalServerError)
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			s.Logger.Error("metrics_encode_error", zap.Error(err))
			http.Error(w, "encode metrics: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", string(format))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// Listen binds port on all interfaces, dual-stack first and IPv4-only when
// the host has no IPv6.
func Listen(port int) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("[::]:%d", port))
	if err == nil {
		return ln, nil
	}
	ln, err4 := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err4 != nil {
		return nil, multierr.Combine(err, err4)
	}
	return ln, nil
}

// Serve runs the server on ln until ctx is cancelled, then shuts it down.
// Any other exit is reported as ErrServerExited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.Logger.Info("metrics_listen", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("%w: %v", ErrServerExited, err)
	}
}
