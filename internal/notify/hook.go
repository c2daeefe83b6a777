package notify

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Hook issues the bare GET used by fallback actions. Any response, whatever
// its status, counts as delivered; only transport failures are errors.
type Hook struct {
	UserAgent string
	Client    *http.Client
}

func NewHook(userAgent string) *Hook {
	return &Hook{
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Get calls url and returns the response status code.
func (h *Hook) Get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", h.UserAgent)

	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
