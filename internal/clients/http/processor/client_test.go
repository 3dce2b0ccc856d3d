package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewClient("  ", nil)
		assert.Error(t, err)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		client, err := NewClient("http://processor.local/", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://processor.local", client.baseURL)
	})
}

func TestAuthorize(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/authorizations", r.URL.Path)
			assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(2500), req["amountCents"])

			json.NewEncoder(w).Encode(map[string]any{"approved": true})
		}))
		defer server.Close()

		client, err := NewClient(server.URL, server.Client())
		require.NoError(t, err)

		approved, reason, err := client.Authorize(context.Background(), "order-1", 2500)
		require.NoError(t, err)
		assert.True(t, approved)
		assert.Empty(t, reason)
	})

	t.Run("declined carries the reason", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"approved": false, "reason": "InsufficientFunds"})
		}))
		defer server.Close()

		client, err := NewClient(server.URL, server.Client())
		require.NoError(t, err)

		approved, reason, err := client.Authorize(context.Background(), "order-1", 2500)
		require.NoError(t, err)
		assert.False(t, approved)
		assert.Equal(t, "InsufficientFunds", reason)
	})

	t.Run("server error surfaces the message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"message": "processor down"})
		}))
		defer server.Close()

		client, err := NewClient(server.URL, server.Client())
		require.NoError(t, err)

		_, _, err = client.Authorize(context.Background(), "order-1", 2500)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "processor down")
	})
}

func TestVoid(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)

	require.NoError(t, client.Void(context.Background(), "order-1"))
	assert.Equal(t, "/voids", path)
}
