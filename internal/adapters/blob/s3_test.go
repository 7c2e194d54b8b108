package blob_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysettle/internal/adapters/blob"
)

func TestArchiver_PutUsesPathStyleKey(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		gotURL string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		gotURL = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := blob.New(context.Background(), blob.Config{
		Bucket:         "settled",
		Region:         "us-east-1",
		Endpoint:       srv.URL,
		AccessKey:      "test",
		SecretKey:      "test",
		Prefix:         "snapshots",
		ForcePathStyle: true,
	})
	require.NoError(t, err)

	require.NoError(t, a.Put(context.Background(), "market/7.json", []byte(`{"id":7}`)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/settled/snapshots/market/7.json", gotURL)
	assert.Contains(t, string(body), `{"id":7}`)
}

func TestArchiver_PutReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a, err := blob.New(context.Background(), blob.Config{
		Bucket: "settled", Endpoint: srv.URL, AccessKey: "k", SecretKey: "s", ForcePathStyle: true,
	})
	require.NoError(t, err)

	assert.Error(t, a.Put(context.Background(), "x.json", []byte("{}")))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := blob.New(context.Background(), blob.Config{})
	assert.Error(t, err)
}
