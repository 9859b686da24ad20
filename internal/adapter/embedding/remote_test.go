package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func embeddingServer(t *testing.T, calls *atomic.Int32, handler func(req api.EmbeddingRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req api.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote_Embed(t *testing.T) {
	t.Run("Should send one request per text and keep input order", func(t *testing.T) {
		var calls atomic.Int32
		srv := embeddingServer(t, &calls, func(req api.EmbeddingRequest) (int, any) {
			assert.Equal(t, "nomic-embed-text", req.Model)
			return http.StatusOK, map[string]any{"embedding": []float64{float64(len(req.Prompt)), 1}}
		})
		e, err := NewRemote(srv.URL, "nomic-embed-text", time.Second, 0)
		require.NoError(t, err)

		vecs, err := e.Embed(context.Background(), []string{"a", "abc", "ab"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		require.Len(t, vecs, 3)
		assert.Equal(t, []float32{1, 1}, vecs[0])
		assert.Equal(t, []float32{3, 1}, vecs[1])
		assert.Equal(t, []float32{2, 1}, vecs[2])
		assert.Equal(t, 2, e.Dimension())
		assert.Equal(t, "nomic-embed-text", e.ModelName())
	})

	t.Run("Should return nothing for no texts without calling the backend", func(t *testing.T) {
		var calls atomic.Int32
		srv := embeddingServer(t, &calls, func(api.EmbeddingRequest) (int, any) {
			return http.StatusOK, map[string]any{"embedding": []float64{1}}
		})
		e, err := NewRemote(srv.URL, "m", time.Second, 0)
		require.NoError(t, err)

		vecs, err := e.Embed(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vecs)
		assert.Zero(t, calls.Load())
	})

	t.Run("Should fail with unexpected response when embedding is missing", func(t *testing.T) {
		srv := embeddingServer(t, nil, func(api.EmbeddingRequest) (int, any) {
			return http.StatusOK, map[string]any{"other": true}
		})
		e, err := NewRemote(srv.URL, "m", time.Second, 0)
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindUnexpectedResponse))
	})

	t.Run("Should reject a vector of the wrong dimension", func(t *testing.T) {
		srv := embeddingServer(t, nil, func(api.EmbeddingRequest) (int, any) {
			return http.StatusOK, map[string]any{"embedding": []float64{1, 2, 3}}
		})
		e, err := NewRemote(srv.URL, "m", time.Second, 4)
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindUnexpectedResponse))
		assert.Contains(t, err.Error(), "dimension mismatch")
	})

	t.Run("Should map server errors to unavailable and client errors to unexpected response", func(t *testing.T) {
		srv := embeddingServer(t, nil, func(req api.EmbeddingRequest) (int, any) {
			if req.Prompt == "boom" {
				return http.StatusInternalServerError, map[string]any{"error": "boom"}
			}
			return http.StatusNotFound, map[string]any{"error": "model not found"}
		})
		e, err := NewRemote(srv.URL, "m", time.Second, 0)
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), []string{"boom"})
		assert.True(t, domain.IsKind(err, domain.KindUnavailable))

		_, err = e.Embed(context.Background(), []string{"x"})
		assert.True(t, domain.IsKind(err, domain.KindUnexpectedResponse))
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("Should report unavailable when the backend is down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		e, err := NewRemote(url, "m", time.Second, 0)
		require.NoError(t, err)
		_, err = e.Embed(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindUnavailable))
	})
}

func TestNewRemote(t *testing.T) {
	t.Run("Should require a base URL and model", func(t *testing.T) {
		_, err := NewRemote("", "m", 0, 0)
		assert.True(t, domain.IsKind(err, domain.KindConfig))
		_, err = NewRemote("http://localhost:11434", " ", 0, 0)
		assert.True(t, domain.IsKind(err, domain.KindConfig))
	})
}
