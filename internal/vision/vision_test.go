package vision

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(endpoint string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 2 * time.Second},
		Endpoint: endpoint,
		APIKey:   "test-key",
	}
}

func TestDescribe(t *testing.T) {
	var gotBody []byte
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"description":{"captions":[{"text":"a person smiling","confidence":0.93}]}}`))
	}))
	defer srv.Close()

	caption, err := newClient(srv.URL).Describe(context.Background(), []byte("img-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "a person smiling", caption)
	assert.Equal(t, []byte("img-bytes"), gotBody)
	assert.Equal(t, "test-key", gotKey)
}

func TestDescribeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Describe(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrRejected)
}

func TestDescribeEmptyCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description":{"captions":[]}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Describe(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrRejected)
}

func TestDescribeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Describe(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrRejected)
}

func TestDescribeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newClient(srv.URL).Describe(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused",
		"the transport cause must survive the wrapping")
}

func TestDescribeNoEndpoint(t *testing.T) {
	_, err := newClient("").Describe(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrUnavailable)
}
