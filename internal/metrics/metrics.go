// Package metrics holds the per-service Prometheus series every scheduler
// writes to and the exposition endpoint reads from.
package metrics

import (
	"fmt"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/multierr"
)

// LabelService is the only label carried by every series.
const LabelService = "service_name"

var prefixRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Registry owns a private prometheus.Registry so tests and multiple
// supervisors never collide on the global default registerer.
type Registry struct {
	reg *prometheus.Registry

	Status       *prometheus.GaugeVec
	Failures     *prometheus.CounterVec
	ResponseTime *prometheus.HistogramVec
	CertExpiry   *prometheus.GaugeVec
}

// New builds the four metric families named <prefix>_status,
// <prefix>_failures_total, <prefix>_response_time_seconds and
// <prefix>_ssl_cert_expiry_seconds. An invalid prefix is reported here.
func New(prefix string) (*Registry, error) {
	if !prefixRE.MatchString(prefix) {
		return nil, fmt.Errorf("invalid metrics prefix %q", prefix)
	}
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_status",
			Help: "1 when the last probe matched expectations, 0 otherwise",
		}, []string{LabelService}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_failures_total",
			Help: "Probes that could not complete",
		}, []string{LabelService}),
		ResponseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_response_time_seconds",
			Help:    "Probe duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{LabelService}),
		CertExpiry: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_ssl_cert_expiry_seconds",
			Help: "Seconds until the service's TLS leaf certificate expires",
		}, []string{LabelService}),
	}

	var errs error
	for _, c := range []prometheus.Collector{r.Status, r.Failures, r.ResponseTime, r.CertExpiry} {
		errs = multierr.Append(errs, r.reg.Register(c))
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// Init creates the status, failure and latency series for service so they
// are exported before its first probe completes. The certificate gauge only
// appears once a TLS check succeeds.
func (r *Registry) Init(service string) {
	r.Status.WithLabelValues(service)
	r.Failures.WithLabelValues(service)
	r.ResponseTime.WithLabelValues(service)
}

func (r *Registry) SetStatus(service string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	r.Status.WithLabelValues(service).Set(v)
}

func (r *Registry) IncFailures(service string) {
	r.Failures.WithLabelValues(service).Inc()
}

func (r *Registry) ObserveResponseTime(service string, d time.Duration) {
	r.ResponseTime.WithLabelValues(service).Observe(d.Seconds())
}

func (r *Registry) SetCertExpiry(service string, seconds int64) {
	r.CertExpiry.WithLabelValues(service).Set(float64(seconds))
}

// Gather snapshots every registered series.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
