package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/baechuer/user-console/internal/domain"
)

const (
	// ImportPart is the multipart field the import endpoint reads.
	ImportPart = "file"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxExportBytes = 64 << 20
)

// UserClient calls the protected user endpoints. Every call carries the
// session token in the access-token header.
type UserClient struct {
	client  *Client
	baseURL string
}

func NewUserClient(baseURL string, config ClientConfig) *UserClient {
	return &UserClient{
		client:  NewClient("user-api", config),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ListUsers fetches the whole collection. The API answers with a bare array;
// a {"data": [...]} envelope is accepted as well.
func (c *UserClient) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, c.baseURL+"/users", token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		raw = env.Data
	}

	users := []domain.User{}
	if len(raw) == 0 || string(raw) == "null" {
		return users, nil
	}
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ImportUsers uploads a spreadsheet as the "file" part of a multipart body.
func (c *UserClient) ImportUsers(ctx context.Context, token string, file domain.Upload) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, ImportPart, filepath.Base(file.Name)))
	h.Set("Content-Type", uploadContentType(file.Name))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(file.Content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, c.baseURL+"/users/files/upload-users", token, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ExportUsers downloads the spreadsheet of all users.
func (c *UserClient) ExportUsers(ctx context.Context, token string) ([]byte, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, c.baseURL+"/files/export-users", token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxExportBytes {
		return nil, errors.New("export exceeds size limit")
	}
	return body, nil
}

// UpdateUser replaces the remote record with u.
func (c *UserClient) UpdateUser(ctx context.Context, token string, u domain.User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	req, err := c.client.NewRequest(ctx, http.MethodPut, c.userURL(u.ID), token, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.discard(ctx, req)
}

func (c *UserClient) DeleteUser(ctx context.Context, token, id string) error {
	req, err := c.client.NewRequest(ctx, http.MethodDelete, c.userURL(id), token, nil)
	if err != nil {
		return err
	}
	return c.discard(ctx, req)
}

// Ping reports whether the user API answers at all. Any HTTP status counts.
func (c *UserClient) Ping(ctx context.Context) error {
	return ping(ctx, c.client, c.baseURL)
}

func (c *UserClient) userURL(id string) string {
	return c.baseURL + "/users/" + url.PathEscape(id)
}

func (c *UserClient) discard(ctx context.Context, req *http.Request) error {
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func uploadContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return XLSXContentType
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}
