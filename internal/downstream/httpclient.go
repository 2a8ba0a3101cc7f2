package downstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/middleware"
)

// TokenHeader carries the session token on every protected call.
const TokenHeader = "access-token"

type ClientConfig struct {
	// ReadTimeout is used for GET requests
	ReadTimeout time.Duration
	// WriteTimeout is used for POST, PUT, PATCH, DELETE requests
	WriteTimeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Client wraps http.Client for calls to the remote API:
// - forwards X-Request-Id from the context
// - applies a read or write timeout based on the method
// - maps transport failures and non-2xx answers to package errors
// - logs and counts every call
type Client struct {
	service    string
	baseClient *http.Client
	config     ClientConfig
}

func NewClient(service string, config ClientConfig) *Client {
	return &Client{
		service: service,
		baseClient: &http.Client{
			// per-request timeouts come from the context
			Timeout:   0,
			Transport: &middleware.TracingTransport{Base: http.DefaultTransport},
		},
		config: config,
	}
}

// Do executes req. On success the caller owns resp.Body; any non-2xx status
// is consumed here and returned as a *StatusError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	reqID := middleware.GetRequestID(ctx)
	if reqID != "" {
		req.Header.Set(middleware.HeaderXRequestID, reqID)
	}

	timeout := c.config.ReadTimeout
	if isWriteMethod(req.Method) {
		timeout = c.config.WriteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req = req.WithContext(ctx)

	log := logger.Log.With().
		Str("service", c.service).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", reqID).
		Logger()

	start := time.Now()
	resp, err := c.baseClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		cancel()
		mapped := mapTransportError(err)
		observe(c.service, req.Method, mapped.Error(), duration)
		log.Warn().Err(err).Dur("duration", duration).Msg("downstream_request_failed")
		return nil, mapped
	}

	observe(c.service, req.Method, strconv.Itoa(resp.StatusCode), duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		se := decodeError(resp)
		log.Info().Int("status", resp.StatusCode).Str("message", se.Message).Dur("duration", duration).Msg("downstream_request_rejected")
		return nil, se
	}

	log.Debug().Int("status", resp.StatusCode).Dur("duration", duration).Msg("downstream_request_completed")

	// the timeout must outlive Do until the caller has read the body
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// NewRequest builds a request with the session token attached when present.
func (c *Client) NewRequest(ctx context.Context, method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	return req, nil
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	// connection refused, DNS errors, etc.
	return ErrUnavailable
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
