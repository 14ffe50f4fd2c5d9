package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/httpclient"
	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/version"
)

const translatePath = "/translate"

// Client talks to the transcription service over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
}

type Option func(*Client)

// WithHTTPClient replaces the shared client from httpclient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends an Authorization: Bearer header on every call.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid service url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid service url %q: missing host", baseURL)
	}
	c := &Client{baseURL: u, http: httpclient.GetDefaultClient()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the URL submissions are posted to.
func (c *Client) Endpoint() string {
	return c.baseURL.JoinPath(translatePath).String()
}

// Translate uploads one image and decodes the result. Every failure comes
// back as an *apperrors.Error of kind TransportUnreachable, Timeout or
// InvalidResponse.
func (c *Client) Translate(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, apperrors.TransportUnreachable(fmt.Errorf("build request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), body)
	if err != nil {
		return nil, apperrors.TransportUnreachable(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	respBody, resp, err := httpclient.DoAndRead(c.sender(ctx), httpReq)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, apperrors.Timeout(fmt.Errorf("send request: %w", err))
		}
		if resp != nil {
			return nil, apperrors.InvalidResponse(err)
		}
		return nil, apperrors.TransportUnreachable(fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(
			apperrors.KindTransportUnreachable,
			fmt.Sprintf("Transcription service error (%d). Please try again.", resp.StatusCode),
			fmt.Errorf("service status=%s body=%s", resp.Status, truncate(respBody, 256)),
		)
	}

	out, err := DecodeResponse(respBody)
	if err != nil {
		return nil, err
	}
	logger.Debug("Service response decoded",
		"request_id", req.RequestID,
		"status", resp.Status,
		"has_raw", out.Raw != nil,
		"has_refined", out.Refined != nil,
		"has_translated", out.Translated != nil,
		"has_image", out.Image != nil,
	)
	return out, nil
}

// sender returns the client for one call. When ctx carries a deadline it
// bounds the exchange alone and the client's own Timeout is dropped.
func (c *Client) sender(ctx context.Context) *http.Client {
	if _, ok := ctx.Deadline(); !ok || c.http.Timeout == 0 {
		return c.http
	}
	hc := *c.http
	hc.Timeout = 0
	return &hc
}

// DecodeResponse validates and decodes a success body.
func DecodeResponse(body []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, apperrors.InvalidResponse(fmt.Errorf("decode response body: %w", err))
	}
	if fields == nil {
		return nil, apperrors.InvalidResponse(errors.New("response body is null"))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.InvalidResponse(fmt.Errorf("decode response fields: %w", err))
	}
	if out.Error != nil {
		return nil, apperrors.New(
			apperrors.KindInvalidResponse,
			fmt.Sprintf("Transcription service rejected the image: %s", *out.Error),
			fmt.Errorf("service error field: %s", *out.Error),
		)
	}

	found := false
	for _, key := range knownFields {
		if _, ok := fields[key]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.InvalidResponse(errors.New("response has none of the expected fields"))
	}
	return &out, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(req Request) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := req.Filename
	if filename == "" {
		filename = "braille"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if err := writer.WriteField("mode", req.Mode); err != nil {
		return nil, "", fmt.Errorf("write mode field: %w", err)
	}
	if req.TargetLanguage != "" {
		if err := writer.WriteField("target_lang", req.TargetLanguage); err != nil {
			return nil, "", fmt.Errorf("write target_lang field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
