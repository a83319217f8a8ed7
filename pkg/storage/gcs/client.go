// Package gcs is a small client for the Cloud Storage JSON API. It also works
// against emulators such as fake-gcs-server when an endpoint is configured.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/storage"
)

const (
	defaultEndpoint = "https://storage.googleapis.com"
	defaultTimeout  = 30 * time.Second
	pingTimeout     = 5 * time.Second
	listPageSize    = 1000
	maxErrorBody    = 2048
)

// Client implements storage.ObjectStore over HTTP.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	projectID   string
	probeBucket string
	tokenSource *tokenSource
	logg        *logger.Logger
}

var (
	_ storage.ObjectStore   = (*Client)(nil)
	_ storage.BucketEnsurer = (*Client)(nil)
)

// NewClient picks credentials in order: inline JSON, a credentials file, no
// auth for a custom endpoint, then the metadata server. It pings the covers
// bucket before returning.
func NewClient(ctx context.Context, cfg config.StorageConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.CoversBucket == "" || cfg.PagesBucket == "" {
		return nil, errors.New("covers and pages bucket names are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	ts, err := pickTokenSource(httpClient, gcp, endpoint)
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient:  httpClient,
		endpoint:    endpoint,
		projectID:   gcp.ProjectID,
		probeBucket: cfg.CoversBucket,
		tokenSource: ts,
		logg:        logg,
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "endpoint", endpoint), "gcs client initialized")
	}
	return client, nil
}

func pickTokenSource(httpClient *http.Client, gcp config.GCPConfig, endpoint string) (*tokenSource, error) {
	switch {
	case gcp.CredentialsJSON != "":
		return newServiceAccountTokenSource(httpClient, gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return newServiceAccountTokenSource(httpClient, string(raw))
	case endpoint != defaultEndpoint:
		return newAnonymousTokenSource(), nil
	default:
		return newMetadataTokenSource(httpClient), nil
	}
}

// Close drops idle keep-alive connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ping lists at most one object from the covers bucket. A missing bucket
// passes; EnsureBucket creates it at startup.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if c.probeBucket == "" {
		return errors.New("gcs bucket not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	q := url.Values{"maxResults": {"1"}}
	resp, err := c.do(ctx, http.MethodGet, c.bucketURL(c.probeBucket, "o", q), nil, "")
	if err != nil {
		return err
	}
	defer c.closeBody(ctx, resp)
	return expect(resp, "gcs object check", http.StatusOK, http.StatusNotFound)
}

// Put uploads data with a simple media upload, overwriting any existing object.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("object key is required")
	}
	q := url.Values{"uploadType": {"media"}, "name": {key}}
	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", c.endpoint, url.PathEscape(bucket), q.Encode())

	resp, err := c.do(ctx, http.MethodPost, u, bytes.NewReader(data), contentType)
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	defer c.closeBody(ctx, resp)
	return expect(resp, "upload object", http.StatusOK)
}

func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(bucket, key, url.Values{"alt": {"media"}}), nil, "")
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	defer c.closeBody(ctx, resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrObjectNotFound)
	}
	if err := expect(resp, "download object", http.StatusOK); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

type listPage struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// List returns every object name in bucket, following page tokens.
func (c *Client) List(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	q := url.Values{
		"maxResults": {strconv.Itoa(listPageSize)},
		"fields":     {"items(name),nextPageToken"},
	}
	for {
		var page listPage
		if err := c.getJSON(ctx, c.bucketURL(bucket, "o", q), "list objects", &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			keys = append(keys, item.Name)
		}
		if page.NextPageToken == "" {
			return keys, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}

// Delete removes the object. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.objectURL(bucket, key, nil), nil, "")
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	defer c.closeBody(ctx, resp)
	return expect(resp, "delete object", http.StatusOK, http.StatusNoContent, http.StatusNotFound)
}

// EnsureBucket creates bucket in the configured project when it does not exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	resp, err := c.do(ctx, http.MethodGet, c.bucketURL(bucket, "", nil), nil, "")
	if err != nil {
		return fmt.Errorf("get bucket %s: %w", bucket, err)
	}
	status := resp.StatusCode
	statusErr := expect(resp, "get bucket", http.StatusOK, http.StatusNotFound)
	c.closeBody(ctx, resp)
	if statusErr != nil {
		return statusErr
	}
	if status == http.StatusOK {
		return nil
	}

	if c.projectID == "" {
		return fmt.Errorf("bucket %s missing and no project configured to create it", bucket)
	}
	body, err := json.Marshal(map[string]string{"name": bucket})
	if err != nil {
		return err
	}
	createURL := fmt.Sprintf("%s/storage/v1/b?project=%s", c.endpoint, url.QueryEscape(c.projectID))
	resp, err = c.do(ctx, http.MethodPost, createURL, bytes.NewReader(body), "application/json")
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	defer c.closeBody(ctx, resp)
	if err := expect(resp, "create bucket", http.StatusOK, http.StatusConflict); err != nil {
		return err
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "bucket", bucket), "gcs bucket created")
	}
	return nil
}

func (c *Client) bucketURL(bucket, suffix string, q url.Values) string {
	u := c.endpoint + "/storage/v1/b/" + url.PathEscape(bucket)
	if suffix != "" {
		u += "/" + suffix
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) objectURL(bucket, key string, q url.Values) string {
	return c.bucketURL(bucket, "o/"+url.PathEscape(key), q)
}

func (c *Client) getJSON(ctx context.Context, u, op string, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer c.closeBody(ctx, resp)
	if err := expect(resp, op, http.StatusOK); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

func (c *Client) closeBody(ctx context.Context, resp *http.Response) {
	if err := resp.Body.Close(); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "gcs: closing response body failed")
	}
}

// expect returns nil when resp has one of the accepted status codes.
func expect(resp *http.Response, op string, accepted ...int) error {
	if slices.Contains(accepted, resp.StatusCode) {
		return nil
	}
	return statusError(op, resp)
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("%s: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("%s: %s", op, resp.Status)
}
