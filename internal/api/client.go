// Package api talks to the MushIoT backend: the REST surface devices
// report through, plus the per-device SSE event stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/KongGithubDev/MushIoT/internal/model"
)

const (
	headerAPIKey       = "x-api-key"
	headerEnrollSecret = "x-enroll-secret"

	requestTimeout = 15 * time.Second
	bodyExcerptMax = 200
)

// Client issues the device-facing backend calls. Unary requests share
// one HTTP client with a request timeout; the event stream gets its
// own transport with dial and response-header deadlines but no overall
// timeout, which would cut the stream mid-life.
type Client struct {
	base   string
	http   *http.Client
	stream *http.Client
}

// BaseURL builds the backend root from host and port, eliding the port
// when it matches the scheme default.
func BaseURL(host string, port int, useHTTPS bool) string {
	proto, defaultPort := "http", 80
	if useHTTPS {
		proto, defaultPort = "https", 443
	}
	if port != 0 && port != defaultPort {
		return fmt.Sprintf("%s://%s:%d", proto, host, port)
	}
	return fmt.Sprintf("%s://%s", proto, host)
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		http: &http.Client{Timeout: requestTimeout},
		stream: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: requestTimeout}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Base returns the backend root URL the client was built with.
func (c *Client) Base() string { return c.base }

// RotateKey provisions a fresh API key for the device. The enrollment
// secret header is attached only when configured.
func (c *Client) RotateKey(ctx context.Context, deviceID, enrollSecret string) (string, error) {
	url := fmt.Sprintf("%s/api/devices/%s/rotate-key", c.base, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	if enrollSecret != "" {
		req.Header.Set(headerEnrollSecret, enrollSecret)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	var out struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode rotate-key response: %w", err)
	}
	if out.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	return out.APIKey, nil
}

// GetSettings fetches the authoritative device settings. The backend
// sends only the fields it has set, so the result comes back as a
// patch for the caller to overlay on defaults.
func (c *Client) GetSettings(ctx context.Context, deviceID, apiKey string) (model.SettingsPatch, error) {
	url := fmt.Sprintf("%s/api/devices/%s/settings", c.base, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.SettingsPatch{}, err
	}
	req.Header.Set(headerAPIKey, apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return model.SettingsPatch{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return model.SettingsPatch{}, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.SettingsPatch{}, err
	}
	patch, err := model.DecodeSettingsPatch(body)
	if err != nil {
		return model.SettingsPatch{}, fmt.Errorf("decode settings: %w", err)
	}
	return patch, nil
}

// PostAck confirms the device's pump state to the backend.
func (c *Client) PostAck(ctx context.Context, deviceID, apiKey string, ack model.Ack) error {
	url := fmt.Sprintf("%s/api/devices/%s/ack", c.base, deviceID)
	return c.postJSON(ctx, url, apiKey, ack)
}

// PostReading reports one moisture sample.
func (c *Client) PostReading(ctx context.Context, apiKey string, reading model.Reading) error {
	return c.postJSON(ctx, c.base+"/api/readings", apiKey, reading)
}

// GetManifest polls the OTA manifest. Unauthenticated, mirroring the
// firmware's update check.
func (c *Client) GetManifest(ctx context.Context) (model.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/ota/manifest", nil)
	if err != nil {
		return model.Manifest{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.Manifest{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return model.Manifest{}, err
	}
	var m model.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return model.Manifest{}, err
	}
	return m, nil
}

// OpenStream opens the device's SSE stream. The caller owns the body
// and must close it; cancelling ctx tears the stream down as well.
func (c *Client) OpenStream(ctx context.Context, deviceID, apiKey string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/api/devices/%s/stream", c.base, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set(headerAPIKey, apiKey)
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := readStatusError(resp)
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) postJSON(ctx context.Context, url, apiKey string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// checkStatus turns a non-2xx response into a StatusError carrying a
// short body excerpt.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return readStatusError(resp)
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptMax))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
