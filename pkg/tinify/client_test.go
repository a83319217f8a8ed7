package tinify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siva27neelam/story-telling/pkg/config"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.OptimizerConfig{}, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestShrinkUploadsAndDownloads(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/shrink":
			body, _ := io.ReadAll(r.Body)
			if string(body) != "original-bytes" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"input":{"size":14},"output":{"size":5,"url":%q}}`, server.URL+"/output/abc")
		case r.Method == http.MethodGet && r.URL.Path == "/output/abc":
			_, _ = w.Write([]byte("small"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := New(config.OptimizerConfig{APIKey: "secret", Endpoint: server.URL + "/shrink"}, nil)
	require.NoError(t, err)

	out, err := client.Shrink(context.Background(), []byte("original-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "small", string(out))
}

func TestShrinkSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"Credentials are invalid"}`))
	}))
	defer server.Close()

	client, err := New(config.OptimizerConfig{APIKey: "bad", Endpoint: server.URL}, nil)
	require.NoError(t, err)

	_, err = client.Shrink(context.Background(), []byte("data"))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Unauthorized", apiErr.Kind)
	assert.Equal(t, "Credentials are invalid", apiErr.Message)
}

func TestShrinkFallsBackToLocationHeader(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Location", server.URL+"/output/xyz")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte("out"))
	}))
	defer server.Close()

	client, err := New(config.OptimizerConfig{APIKey: "k", Endpoint: server.URL}, nil)
	require.NoError(t, err)

	out, err := client.Shrink(context.Background(), []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "out", string(out))
}

func TestShrinkRejectsEmptyPayload(t *testing.T) {
	client, err := New(config.OptimizerConfig{APIKey: "k"}, nil)
	require.NoError(t, err)
	_, err = client.Shrink(context.Background(), nil)
	assert.Error(t, err)
}
