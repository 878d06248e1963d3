package webhookclient

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

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		Secret:     "shh",
		Timeout:    time.Second,
		RetryCount: 2,
		RetryDelay: time.Millisecond,
		RateLimit:  6000,
		RateBurst:  100,
	}
}

func TestDeliver_PostsSignedJSON(t *testing.T) {
	var gotEvent, gotSignature, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotSignature = r.Header.Get("X-Webhook-Signature")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	err := client.Deliver(context.Background(), "OrderPlaced", map[string]any{"order_id": "1"})
	require.NoError(t, err)

	assert.Equal(t, "OrderPlaced", gotEvent)
	assert.JSONEq(t, `{"order_id":"1"}`, gotBody)
	assert.Equal(t, client.sign([]byte(gotBody)), gotSignature)
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	err := client.Deliver(context.Background(), "OrderPlaced", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDeliver_GivesUpAfterRetryBudget(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL))
	err := client.Deliver(context.Background(), "OrderPlaced", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestDeliver_DisabledClientIsNoOp(t *testing.T) {
	client := New(testConfig(""))
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Deliver(context.Background(), "OrderPlaced", map[string]any{}))
}

func TestCircuitBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.CircuitBreakerEnabled = true
	cfg.CBMinRequests = 2
	cfg.CBFailureThreshold = 2
	cfg.CBRecoveryTime = time.Minute
	cfg.CBSamplingDuration = time.Minute
	cfg.RetryCount = 0

	client := New(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = client.Deliver(ctx, "OrderPlaced", map[string]any{})
	}

	err := client.Deliver(ctx, "OrderPlaced", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}
