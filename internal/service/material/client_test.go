package material

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/retry"
)

func fastRetrier() *retry.Retrier {
	return retry.New(retry.Config{MaxAttempts: 3}, nil,
		retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

func TestClient_LookupName_Endpoints(t *testing.T) {
	paths := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "Name": "Anodized"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", WithRetrier(fastRetrier()))
	for _, kind := range domain.MaterialKinds() {
		name, err := client.LookupName(context.Background(), kind, 7)
		require.NoError(t, err)
		assert.Equal(t, "Anodized", name)
	}

	assert.Equal(t, "/api/v1/materials/7", <-paths)
	assert.Equal(t, "/api/v1/colors/7", <-paths)
	assert.Equal(t, "/api/v1/surface-finishings/7", <-paths)
}

func TestClient_LookupName_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id": 1, "name": "Brass"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetrier(fastRetrier()))
	name, err := client.LookupName(context.Background(), domain.MaterialKindMaterial, 1)
	require.NoError(t, err)
	assert.Equal(t, "Brass", name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_LookupName_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetrier(fastRetrier()))
	_, err := client.LookupName(context.Background(), domain.MaterialKindColor, 404)
	require.True(t, errors.Is(err, domain.ErrMaterialNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_LookupName_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetrier(fastRetrier()))
	_, err := client.LookupName(context.Background(), domain.MaterialKindMaterial, 1)
	require.True(t, errors.Is(err, domain.ErrExternalServiceUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_UnsupportedKind(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.LookupName(context.Background(), domain.MaterialKind("finish"), 1)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
}

func TestClient_BreakerOpensOnRepeatedOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := retry.NewCircuitBreaker(3, time.Minute, nil)
	client := NewClient(srv.URL, WithRetrier(fastRetrier()), WithCircuitBreaker(breaker))

	_, err := client.LookupName(context.Background(), domain.MaterialKindMaterial, 1)
	require.Error(t, err)
	assert.Equal(t, retry.CircuitOpen, breaker.State())
	assert.ErrorIs(t, client.Ping(context.Background()), retry.ErrCircuitOpen)

	_, err = client.LookupName(context.Background(), domain.MaterialKindMaterial, 1)
	assert.ErrorIs(t, err, retry.ErrCircuitOpen)
}
