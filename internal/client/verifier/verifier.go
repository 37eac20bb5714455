// Package verifier checks student credentials against the ClassFeed server.
package verifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// Result is a successful verification.
type Result struct {
	Identity models.Identity
	Role     models.Role
	Token    string
}

// Client verifies credentials over HTTP.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// New returns a Client for baseURL using httpClient.
func New(httpClient *http.Client, baseURL string) *Client {
	return &Client{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Verify resolves id and secret to an identity.
//
// It returns models.ErrNotFound, models.ErrWrongSecret or
// models.ErrBackendUnavailable; transport failures count as the latter.
func (c *Client) Verify(ctx context.Context, id, secret string) (*Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.ErrNotFound
	}

	b, err := json.Marshal(map[string]string{"id": id, "secret": secret})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/login", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %v: %w", err, models.ErrBackendUnavailable)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %v: %w", err, models.ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, models.ErrNotFound
	case http.StatusUnauthorized:
		return nil, models.ErrWrongSecret
	default:
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server error: %s: %w", strings.TrimSpace(string(data)), models.ErrBackendUnavailable)
	}

	var body struct {
		Identity *models.Identity `json:"identity"`
		Role     models.Role      `json:"role"`
		Token    string           `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, models.ErrBackendUnavailable)
	}
	if body.Identity == nil || body.Identity.ID != id || body.Token == "" {
		return nil, fmt.Errorf("malformed login response: %w", models.ErrBackendUnavailable)
	}
	if body.Role == "" {
		body.Role = models.RoleStudent
	}
	return &Result{Identity: *body.Identity, Role: body.Role, Token: body.Token}, nil
}

// NewHTTPClient returns an HTTP client for the server. When caFile is set the
// server certificate must chain to that CA.
func NewHTTPClient(caFile string) (*http.Client, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	if caFile == "" {
		return client, nil
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	client.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12},
	}
	return client, nil
}
