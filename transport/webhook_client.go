package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-forwarder/core"
)

const (
	defaultConnectTimeout     = 15 * time.Second
	defaultReadTimeout        = 15 * time.Second
	defaultWebhookContentType = "application/json; charset=utf-8"
)

const defaultResponseBodyLimit int64 = 64 << 10

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type WebhookClientConfig struct {
	ConnectTimeout       time.Duration
	ReadTimeout          time.Duration
	MaxResponseBodyBytes int64
	DefaultHeaders       map[string]string
}

// WebhookClient posts delivery payloads over HTTP. Response bodies beyond
// MaxResponseBodyBytes are read and dropped so the connection can be reused.
type WebhookClient struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewWebhookClient(client HTTPDoer, cfg WebhookClientConfig) *WebhookClient {
	if client == nil {
		client = newHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	limit := cfg.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	return &WebhookClient{
		Client:               client,
		DefaultHeaders:       cloneHeaders(cfg.DefaultHeaders),
		MaxResponseBodyBytes: limit,
	}
}

// NewWebhookClientFromConfig builds a client with the delivery timeouts.
func NewWebhookClientFromConfig(cfg core.DeliveryConfig) *WebhookClient {
	return NewWebhookClient(nil, WebhookClientConfig{
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
	})
}

func newHTTPClient(connectTimeout time.Duration, readTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: readTimeout,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
		},
		Timeout: connectTimeout + readTimeout,
	}
}

func (c *WebhookClient) Post(ctx context.Context, req core.WebhookRequest) (core.WebhookResponse, error) {
	if c == nil || c.Client == nil {
		return core.WebhookResponse{}, transportError(
			"transport: webhook client requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := strings.TrimSpace(req.URL)
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return core.WebhookResponse{}, core.NewConfigurationError(err, "transport: invalid webhook url", map[string]any{"url": target})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, parsed.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.WebhookResponse{}, core.NewConfigurationError(err, "transport: create webhook request", map[string]any{"url": target})
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultWebhookContentType
	}
	httpReq.Header.Set("Content-Type", contentType)
	for key, value := range c.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	httpRes, err := c.Client.Do(httpReq)
	if err != nil {
		return core.WebhookResponse{}, core.NewTransientDeliveryError(err, "webhook request failed: "+err.Error(), map[string]any{"url": target})
	}
	defer httpRes.Body.Close()

	limit := c.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit))
	if err != nil {
		return core.WebhookResponse{}, core.NewTransientDeliveryError(err, "webhook response read failed: "+err.Error(), map[string]any{
			"url":         target,
			"status_code": httpRes.StatusCode,
		})
	}
	_, _ = io.Copy(io.Discard, httpRes.Body)

	return core.WebhookResponse{
		StatusCode: httpRes.StatusCode,
		Status:     http.StatusText(httpRes.StatusCode),
		Body:       body,
	}, nil
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}

var _ core.WebhookTransport = (*WebhookClient)(nil)
