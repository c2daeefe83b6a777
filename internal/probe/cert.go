package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/probevisor/internal/metrics"
)

var (
	ErrNotHTTPS      = errors.New("not an https url")
	ErrNoCertificate = errors.New("no peer certificate presented")
)

const defaultCertTimeout = 10 * time.Second

// CertProber reads the leaf certificate of an HTTPS endpoint and reports how
// long it has left.
type CertProber struct {
	Roots   *x509.CertPool // nil uses the system trust store
	Timeout time.Duration
	Metrics *metrics.Registry
	Now     func() time.Time
}

// Check sets the service's certificate-expiry gauge. On error the gauge keeps
// its previous value.
func (c *CertProber) Check(ctx context.Context, service, rawURL string) (int64, error) {
	secs, err := c.Remaining(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	if c.Metrics != nil {
		c.Metrics.SetCertExpiry(service, secs)
	}
	return secs, nil
}

// Remaining returns whole seconds until the leaf certificate's NotAfter,
// clamped at zero.
func (c *CertProber) Remaining(ctx context.Context, rawURL string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return 0, fmt.Errorf("%w: %s", ErrNotHTTPS, rawURL)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "443"
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCertTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    c.Roots,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return 0, fmt.Errorf("tls handshake with %s: %w", net.JoinHostPort(host, port), err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return 0, ErrNoCertificate
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return 0, ErrNoCertificate
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	left := certs[0].NotAfter.Sub(now())
	if left < 0 {
		left = 0
	}
	return int64(left / time.Second), nil
}
