// Package tinify is a small client for the TinyPNG shrink API.
package tinify

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

	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/logger"
)

const (
	DefaultEndpoint = "https://api.tinify.com/shrink"
	apiUser         = "api"
	maxErrorBody    = 2048
)

var ErrMissingAPIKey = errors.New("tinypng api key is required")

// APIError is returned when the service answers with a non-success status.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("tinify: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tinify: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

// Shrinker compresses raw image bytes remotely.
type Shrinker interface {
	Shrink(ctx context.Context, data []byte) ([]byte, error)
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logg       *logger.Logger
}

var _ Shrinker = (*Client)(nil)

func New(cfg config.OptimizerConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		logg:       logg,
	}, nil
}

type shrinkResponse struct {
	Input struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
	} `json:"input"`
	Output struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"output"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Shrink uploads data and downloads the optimized result.
func (c *Client) Shrink(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("tinify: empty payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(apiUser, c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tinify shrink: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var body shrinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tinify: decode shrink response: %w", err)
	}
	outputURL := body.Output.URL
	if outputURL == "" {
		outputURL = resp.Header.Get("Location")
	}
	if outputURL == "" {
		return nil, errors.New("tinify: response carried no output url")
	}

	return c.download(ctx, outputURL)
}

func (c *Client) download(ctx context.Context, outputURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(apiUser, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tinify download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tinify: read output: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("tinify: empty output")
	}
	if c.logg != nil {
		c.logg.Debug(c.logg.WithField(ctx, "compressed_bytes", len(data)), "tinify output downloaded")
	}
	return data, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body shrinkResponse
	if err := json.Unmarshal(raw, &body); err == nil && (body.Error != "" || body.Message != "") {
		apiErr.Kind = body.Error
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
