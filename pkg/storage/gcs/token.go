package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	metadataToken = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	scope         = "https://www.googleapis.com/auth/devstorage.read_write"
	refreshMargin = time.Minute
)

// tokenSource caches an OAuth access token until it is within refreshMargin
// of expiry.
type tokenSource struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	fetch  func(context.Context) (string, time.Time, error)
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expiry) > refreshMargin {
		return t.token, nil
	}
	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("gcs token: %w", err)
	}
	t.token, t.expiry = token, expiry
	return token, nil
}

// Emulators such as fake-gcs-server accept unauthenticated calls.
func newAnonymousTokenSource() *tokenSource {
	return &tokenSource{fetch: func(context.Context) (string, time.Time, error) {
		return "", time.Time{}, nil
	}}
}

func newMetadataTokenSource(client *http.Client) *tokenSource {
	return &tokenSource{fetch: func(ctx context.Context) (string, time.Time, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataToken, nil)
		if err != nil {
			return "", time.Time{}, err
		}
		req.Header.Set("Metadata-Flavor", "Google")
		return exchange(client, req)
	}}
}

type serviceAccount struct {
	email    string
	tokenURI string
	key      *rsa.PrivateKey
}

func parseServiceAccount(raw string) (*serviceAccount, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("service account credentials need client_email and private_key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("service account private key: %w", err)
	}
	sa := &serviceAccount{email: creds.ClientEmail, tokenURI: creds.TokenURI, key: key}
	if sa.tokenURI == "" {
		sa.tokenURI = tokenEndpoint
	}
	return sa, nil
}

// assertion is the signed JWT bearer grant exchanged for an access token.
func (sa *serviceAccount) assertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   sa.email,
		"scope": scope,
		"aud":   sa.tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(sa.key)
}

func newServiceAccountTokenSource(client *http.Client, raw string) (*tokenSource, error) {
	sa, err := parseServiceAccount(raw)
	if err != nil {
		return nil, err
	}
	return &tokenSource{fetch: func(ctx context.Context) (string, time.Time, error) {
		signed, err := sa.assertion(time.Now())
		if err != nil {
			return "", time.Time{}, err
		}
		form := url.Values{}
		form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
		form.Set("assertion", signed)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.tokenURI, strings.NewReader(form.Encode()))
		if err != nil {
			return "", time.Time{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return exchange(client, req)
	}}, nil
}

func exchange(client *http.Client, req *http.Request) (string, time.Time, error) {
	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, statusError("token request", resp)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}
	return body.AccessToken, time.Now().Add(time.Duration(body.ExpiresIn) * time.Second), nil
}
