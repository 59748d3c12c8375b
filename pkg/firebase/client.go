// Package firebase talks to a Firebase Realtime Database over its REST API.
//
// Requests are authenticated with a service account (OAuth2 bearer token),
// Application Default Credentials, a legacy database secret, or not at all
// for databases with open rules.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// Scopes required for Realtime Database access with OAuth2.
var Scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

var (
	// ErrNull is returned by Get when the path holds no value.
	ErrNull = errors.New("firebase: no value at path")

	// ErrNoURL is returned by New without a database URL.
	ErrNoURL = errors.New("firebase: database URL required")
)

// StatusError is a non-2xx response from the database.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("firebase: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	// URL is the database root, e.g. https://<db>.firebasedatabase.app
	URL string `yaml:"url"`

	// CredentialsFile is a service account JSON key.
	CredentialsFile string `yaml:"credentials_file"`

	// UseDefaultCredentials authenticates with Application Default Credentials.
	UseDefaultCredentials bool `yaml:"use_default_credentials"`

	// Secret is a legacy database secret sent as ?auth=.
	Secret string `yaml:"secret"`

	Timeout time.Duration `yaml:"timeout"`
}

// Client reads and writes JSON values by path.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a client. ctx is used only for credential discovery.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	mode := "none"
	switch {
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase: read credentials: %w", err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("firebase: parse credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
		mode = "service_account"
	case cfg.UseDefaultCredentials:
		ts, err := google.DefaultTokenSource(ctx, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("firebase: default credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
		mode = "adc"
	default:
		opts = append(opts, option.WithoutAuthentication())
		if cfg.Secret != "" {
			mode = "secret"
		}
	}

	hc, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: http client: %w", err)
	}
	hc.Timeout = cfg.Timeout

	logger = logger.With("component", "firebase")
	logger.Info("realtime database configured", "url", cfg.URL, "auth", mode)

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		secret:  cfg.Secret,
		http:    hc,
		logger:  logger,
	}, nil
}

// Get decodes the value at path into out. A null value returns ErrNull.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return ErrNull
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("firebase: decode %s: %w", path, err)
	}
	return nil
}

// Put replaces the value at path.
func (c *Client) Put(ctx context.Context, path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("firebase: encode %s: %w", path, err)
	}
	_, err = c.do(ctx, http.MethodPut, path, data)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	u := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if c.secret != "" {
		u += "?auth=" + url.QueryEscape(c.secret)
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("firebase: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firebase: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("firebase: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var fbErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &fbErr) == nil && fbErr.Error != "" {
			msg = fbErr.Error
		}
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	}
	return data, nil
}
