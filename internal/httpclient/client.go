package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds a whole exchange with the transcription service.
	// Dot detection plus model refinement on CPU can take tens of seconds.
	DefaultTimeout = 2 * time.Minute
	// MaxResponseBytes caps response bodies; the segmentation map arrives
	// inline as a base64 data URL, so this is larger than a text-only API needs.
	MaxResponseBytes = 32 * 1024 * 1024
	// Transport tuning for a single local or LAN service.
	MaxIdleConns          = 16
	MaxIdleConnsPerHost   = 8
	IdleConnTimeout       = 90 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ExpectContinueTimeout = 1 * time.Second
	DialTimeout           = 10 * time.Second
)

var (
	defaultClient     *http.Client
	defaultClientOnce sync.Once
	overrideClient    *http.Client
)

// NewClient returns a client with its own pooled transport. timeout bounds
// the whole exchange including reading the body.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          MaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// GetDefaultClient returns the shared client used for service calls.
func GetDefaultClient() *http.Client {
	if overrideClient != nil {
		return overrideClient
	}
	defaultClientOnce.Do(func() {
		defaultClient = NewClient(DefaultTimeout)
	})
	return defaultClient
}

// SetDefaultClientForTesting swaps the shared client and returns a restore
// func.
func SetDefaultClientForTesting(client *http.Client) (restore func()) {
	prev := overrideClient
	overrideClient = client
	return func() { overrideClient = prev }
}

// ErrBodyTooLarge is returned when a response exceeds MaxResponseBytes.
var ErrBodyTooLarge = fmt.Errorf("response body too large (limit %d bytes)", MaxResponseBytes)

// DoAndRead sends req and returns the whole body with the response. The
// body is always closed. When a response arrived but its body could not be
// read, the response is returned alongside the error.
func DoAndRead(client *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := readCapped(resp)
	if err != nil {
		return nil, resp, err
	}
	return body, resp, nil
}

func readCapped(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > MaxResponseBytes {
		return nil, ErrBodyTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to read response body: %w", err)
	case int64(len(body)) > MaxResponseBytes:
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// IsTimeout reports whether err came from a deadline, either the context's
// or the client's own Timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
