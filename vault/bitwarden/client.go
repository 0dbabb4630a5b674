// Package bitwarden talks to the Vault Management API exposed by `bw serve`.
package bitwarden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/richinex/vaultbridge/model"
	"github.com/richinex/vaultbridge/vault"
	"github.com/rs/zerolog"
)

const (
	// DefaultURL is where `bw serve` listens unless told otherwise.
	DefaultURL = "http://localhost:8087"
	// DefaultRetries is the number of retries for transport failures.
	DefaultRetries = 3
)

var errNotFound = errors.New("not found")

// Client is a vault.Vault and vault.Session backed by `bw serve`.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    uint64
	logger     zerolog.Logger
}

var (
	_ vault.Vault   = (*Client)(nil)
	_ vault.Session = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how often transport failures are retried.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries: DefaultRetries,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements vault.Vault.
func (c *Client) Name() string {
	return "bitwarden"
}

// ParseID implements vault.Vault. Bitwarden item ids are GUIDs.
func (c *Client) ParseID(s string) (string, bool) {
	return vault.ParseUUID(s)
}

// GetItem implements vault.Vault.
func (c *Client) GetItem(ctx context.Context, id string, includeTOTP bool) (*model.Record, error) {
	var it item
	err := c.call(ctx, http.MethodGet, "/object/item/"+id, nil, &it)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := it.record()
	if includeTOTP && it.Login != nil && it.Login.TOTP != "" {
		code, err := c.totp(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Str("id", id).Msg("failed to fetch TOTP code")
		} else {
			rec.Fields = append(rec.Fields, model.NewField("TOTP", code))
		}
	}
	return rec, nil
}

func (c *Client) totp(ctx context.Context, id string) (string, error) {
	var code struct {
		Data string `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/object/totp/"+id, nil, &code); err != nil {
		return "", err
	}
	return code.Data, nil
}

// Status implements vault.Session.
func (c *Client) Status(ctx context.Context) (vault.Status, error) {
	var resp struct {
		Template vault.Status `json:"template"`
	}
	if err := c.call(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return vault.Status{}, err
	}
	return resp.Template, nil
}

// Login unlocks the vault with the master password.
func (c *Client) Login(ctx context.Context, password string) error {
	body := map[string]string{"password": password}
	return c.call(ctx, http.MethodPost, "/unlock", body, nil)
}

// Logout locks the vault.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/lock", nil, nil)
}

// Sync pulls the latest vault data from the server.
func (c *Client) Sync(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/sync", nil, nil)
}

// UpdateURIs replaces the login URIs of an item, keeping everything else.
// A URI already on the item keeps its entry, including its match setting.
func (c *Client) UpdateURIs(ctx context.Context, id string, uris []string) error {
	var raw map[string]json.RawMessage
	if err := c.call(ctx, http.MethodGet, "/object/item/"+id, nil, &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("item not found: %s", id)
		}
		return err
	}

	var login map[string]json.RawMessage
	if data, ok := raw["login"]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, &login); err != nil {
			return fmt.Errorf("failed to decode login: %w", err)
		}
	}
	if login == nil {
		login = map[string]json.RawMessage{}
	}

	var existing []map[string]json.RawMessage
	if data, ok := login["uris"]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to decode uris: %w", err)
		}
	}

	list := make([]any, len(uris))
	for i, u := range uris {
		list[i] = itemURI{URI: u}
		for j, entry := range existing {
			var uri string
			if entry == nil || json.Unmarshal(entry["uri"], &uri) != nil || uri != u {
				continue
			}
			list[i] = entry
			existing[j] = nil
			break
		}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode uris: %w", err)
	}
	login["uris"] = encoded
	if raw["login"], err = json.Marshal(login); err != nil {
		return fmt.Errorf("failed to encode login: %w", err)
	}

	return c.call(ctx, http.MethodPut, "/object/item/"+id, raw, nil)
}

// envelope is the response wrapper of every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs one API request, retrying transport failures and 5xx
// responses. result receives the envelope's data member.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		payload = data
	}

	var env envelope
	attempt := 0
	op := func() error {
		attempt++
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		env, err = c.do(req)
		if err != nil {
			c.logger.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("bitwarden request failed")
		}
		return err
	}

	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		return err
	}
	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (envelope, error) {
	var env envelope

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return env, backoff.Permanent(errNotFound)
	case resp.StatusCode >= 500:
		return env, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, &env); err != nil {
		return env, backoff.Permanent(fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err))
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return env, backoff.Permanent(fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg))
	}
	return env, nil
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)
}
