// Package httpx holds the HTTP plumbing shared by the source providers:
// status classification, Retry-After parsing, bounded body reads and
// credential-safe error messages.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/painradar/internal/domain"
)

const (
	// MaxBodyBytes caps every provider response read into memory.
	MaxBodyBytes = 4 << 20
	maxDetail    = 512
)

// NewClient returns an HTTP client with a per-request timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Do sends req and returns the response when the status is 2xx.
// Non-2xx answers become *domain.StatusError with the body excerpt as detail;
// transport failures are redacted and classified as transient.
// The caller closes the body of a successful response.
func Do(hc *http.Client, req *http.Request, provider string) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, transportError(req.Context(), provider, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close() //nolint:errcheck // body fully consumed

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetail))
	return nil, &domain.StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		RetryAfter: RetryAfter(resp.Header, time.Now()),
		Detail:     strings.TrimSpace(string(body)),
	}
}

// GetJSON performs a GET and decodes a JSON body into v.
func GetJSON(ctx context.Context, hc *http.Client, provider, rawURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	resp, err := Do(hc, req, provider)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only
	return DecodeJSON(resp.Body, v)
}

// DecodeJSON decodes a bounded body. Any decode failure is a schema violation.
func DecodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(r, MaxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, domain.ErrUnexpectedSchema)
	}
	return nil
}

// ReadBody reads a bounded body.
func ReadBody(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w: %w", domain.ErrSourceTransient, err)
	}
	return b, nil
}

// RetryAfter reads the wait hint of a throttled response. It understands
// Retry-After (seconds or HTTP date), x-rate-limit-reset (unix epoch seconds)
// and x-ratelimit-reset (seconds until reset).
func RetryAfter(h http.Header, now time.Time) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil && t.After(now) {
			return t.Sub(now)
		}
	}
	if v := strings.TrimSpace(h.Get("X-Rate-Limit-Reset")); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if t := time.Unix(epoch, 0); t.After(now) {
				return t.Sub(now)
			}
		}
	}
	if v := strings.TrimSpace(h.Get("X-Ratelimit-Reset")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}

// transportError strips the query string from URL errors so keys passed as
// parameters never reach logs, and marks network failures transient.
func transportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: request aborted: %w", provider, ctxErr)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		redacted := RedactURL(uerr.URL)
		inner := uerr.Err
		if errors.Is(inner, context.DeadlineExceeded) {
			// client timeout, not the caller's deadline
			return fmt.Errorf("%s: %s %s: timeout: %w", provider, uerr.Op, redacted, domain.ErrSourceTransient)
		}
		return fmt.Errorf("%s: %s %s: %v: %w", provider, uerr.Op, redacted, inner, domain.ErrSourceTransient)
	}
	return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrSourceTransient)
}

// RedactURL drops the query and fragment of a URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
