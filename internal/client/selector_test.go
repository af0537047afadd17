package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlotServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		var req struct {
			ID     interface{} `json:"id"`
			Method string      `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  uint64(123456789),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newFailingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSelectEndpointPicksFastest(t *testing.T) {
	slow := newSlotServer(t, 200*time.Millisecond)
	defer slow.Close()
	fast := newSlotServer(t, 0)
	defer fast.Close()

	endpoints := []string{slow.URL, fast.URL}
	client, results, err := SelectEndpoint(context.Background(), endpoints, "", 5*time.Second, testLogger())
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, fast.URL, client.Endpoint())
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestSelectEndpointSkipsDeadEndpoints(t *testing.T) {
	dead := newFailingServer(t)
	defer dead.Close()
	alive := newSlotServer(t, 0)
	defer alive.Close()

	client, results, err := SelectEndpoint(context.Background(), []string{dead.URL, alive.URL}, "", 5*time.Second, testLogger())
	require.NoError(t, err)

	assert.Equal(t, alive.URL, client.Endpoint())
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestSelectEndpointFallsBackToPrimary(t *testing.T) {
	dead1 := newFailingServer(t)
	defer dead1.Close()
	dead2 := newFailingServer(t)
	defer dead2.Close()

	client, results, err := SelectEndpoint(context.Background(), []string{dead1.URL, dead2.URL}, "", 2*time.Second, testLogger())
	require.NoError(t, err)

	assert.Equal(t, dead1.URL, client.Endpoint())
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}

func TestSelectEndpointNoEndpoints(t *testing.T) {
	_, _, err := SelectEndpoint(context.Background(), nil, "", time.Second, testLogger())
	assert.Error(t, err)
}

func TestValidateAddress(t *testing.T) {
	valid := "So11111111111111111111111111111111111111112"
	pk, err := ValidateAddress(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, pk.String())

	cases := []string{
		"",
		"abc",
		"So1111111111111111111111111111111111111111",     // too short
		"0OIl1111111111111111111111111111111111111112",   // invalid base58 chars
		"So111111111111111111111111111111111111111122222", // too long
	}
	for _, addr := range cases {
		_, err := ValidateAddress(addr)
		assert.ErrorIs(t, err, ErrInvalidAddress, "address %q", addr)
	}
}
