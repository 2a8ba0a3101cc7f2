package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/baechuer/user-console/internal/domain"
)

var ErrEmptyToken = errors.New("login answered without a token")

// AuthClient talks to the remote login and registration endpoints.
type AuthClient struct {
	client  *Client
	baseURL string
}

func NewAuthClient(baseURL string, config ClientConfig) *AuthClient {
	return &AuthClient{
		client:  NewClient("auth-api", config),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Login exchanges credentials for a session token.
func (c *AuthClient) Login(ctx context.Context, cred domain.Credential) (string, error) {
	resp, err := c.postJSON(ctx, "/api/auth/login", cred)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out domain.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrEmptyToken
	}
	return out.Token, nil
}

// Register creates an account. Registration never yields a session.
func (c *AuthClient) Register(ctx context.Context, cred domain.Credential) error {
	resp, err := c.postJSON(ctx, "/api/auth/register", cred)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Ping reports whether the auth API answers at all. Any HTTP status counts.
func (c *AuthClient) Ping(ctx context.Context) error {
	return ping(ctx, c.client, c.baseURL)
}

func (c *AuthClient) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := c.client.NewRequest(ctx, http.MethodPost, c.baseURL+path, "", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(ctx, req)
}

func ping(ctx context.Context, c *Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}
