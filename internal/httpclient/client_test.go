package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetDefaultClient(t *testing.T) {
	client := GetDefaultClient()
	if client == nil {
		t.Fatal("Expected client to not be nil")
	}
	if client.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout to be %v, got %v", DefaultTimeout, client.Timeout)
	}
	if GetDefaultClient() != client {
		t.Errorf("Expected singleton client instance")
	}
}

func TestNewClient(t *testing.T) {
	customTimeout := 5 * time.Second
	client := NewClient(customTimeout)
	if client.Timeout != customTimeout {
		t.Errorf("Expected timeout to be %v, got %v", customTimeout, client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok || transport == nil {
		t.Fatalf("Expected transport to be *http.Transport")
	}
	if transport.MaxIdleConnsPerHost != MaxIdleConnsPerHost {
		t.Errorf("Expected MaxIdleConnsPerHost to be %d, got %d", MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	}
	if transport.DialContext == nil {
		t.Errorf("Expected a dialer with a connect timeout")
	}
}

func TestDoAndRead(t *testing.T) {
	expectedBody := `{"raw":"hello"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, expectedBody)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	body, resp, err := DoAndRead(GetDefaultClient(), req)
	if err != nil {
		t.Fatalf("DoAndRead failed: %v", err)
	}
	if string(body) != expectedBody {
		t.Errorf("Expected body %q, got %q", expectedBody, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Status)
	}
}

func TestDoAndRead_BodyCap(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"declared length", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", MaxResponseBytes+1))
			w.WriteHeader(http.StatusOK)
		}},
		{"streamed body", func(w http.ResponseWriter, r *http.Request) {
			chunk := bytes.Repeat([]byte("A"), 1<<20)
			for written := 0; written <= MaxResponseBytes; written += len(chunk) {
				if _, err := w.Write(chunk); err != nil {
					return
				}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			_, resp, err := DoAndRead(GetDefaultClient(), req)
			if !errors.Is(err, ErrBodyTooLarge) {
				t.Fatalf("expected ErrBodyTooLarge, got: %v", err)
			}
			if resp == nil || resp.StatusCode != http.StatusOK {
				t.Fatalf("response should accompany a body error, got %+v", resp)
			}
		})
	}
}

func TestDoAndRead_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, resp, err := DoAndRead(GetDefaultClient(), req)
	if err == nil || resp != nil {
		t.Fatalf("expected a transport error without a response, got resp=%v err=%v", resp, err)
	}
	if IsTimeout(err) {
		t.Fatalf("refused connection must not look like a timeout: %v", err)
	}
}

func TestIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, _, err := DoAndRead(GetDefaultClient(), req)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got: %v", err)
	}
	if IsTimeout(errors.New("connection refused")) {
		t.Fatalf("plain error must not be a timeout")
	}
	if IsTimeout(nil) {
		t.Fatalf("nil must not be a timeout")
	}
}

func TestSetDefaultClientForTesting(t *testing.T) {
	custom := &http.Client{Timeout: 3 * time.Second}
	restore := SetDefaultClientForTesting(custom)
	defer restore()

	if GetDefaultClient() != custom {
		t.Fatalf("Expected overridden default client")
	}
}
