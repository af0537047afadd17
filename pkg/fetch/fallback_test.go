package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstSuccessUsesFirstWorkingURL(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer dead.Close()

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Token"}`))
	}))
	defer alive.Close()

	client := NewClient(2 * time.Second)
	body, err := client.FirstSuccess(context.Background(), []string{dead.URL, alive.URL})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Token"}`, string(body))
}

func TestFirstSuccessAllFail(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer dead.Close()

	client := NewClient(time.Second)
	_, err := client.FirstSuccess(context.Background(), []string{dead.URL})
	assert.Error(t, err)
}

func TestFirstSuccessNoURLs(t *testing.T) {
	client := NewClient(time.Second)
	_, err := client.FirstSuccess(context.Background(), nil)
	assert.Error(t, err)
}

func TestFirstSuccessRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(time.Second)
	_, err := client.FirstSuccess(ctx, []string{"http://127.0.0.1:1/metadata.json"})
	assert.ErrorIs(t, err, context.Canceled)
}
