package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ollama/ollama/api"

	"docqa/internal/adapter/transport"
	"docqa/internal/domain"
)

const (
	defaultRemoteTimeout  = 60 * time.Second
	defaultConnectTimeout = 10 * time.Second
	embeddingsPath        = "/api/embeddings"
)

// Remote calls an Ollama-compatible embedding endpoint, one request per text.
type Remote struct {
	client    *resty.Client
	model     string
	dimension atomic.Int64
}

func NewRemote(baseURL, model string, timeout time.Duration, dimension int) (*Remote, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, domain.ConfigError("embed", "embedding base URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, domain.ConfigError("embed", "embedding model is required")
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	client := resty.New().
		SetTransport(transport.NewTransport(defaultConnectTimeout)).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	e := &Remote{client: client, model: model}
	e.dimension.Store(int64(dimension))
	return e, nil
}

func (e *Remote) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

func (e *Remote) embedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(&api.EmbeddingRequest{Model: e.model, Prompt: text}).
		Post(embeddingsPath)
	if err != nil {
		return nil, transport.Classify("embed", err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		msg := fmt.Sprintf("API returned status %d: %s", resp.StatusCode(), preview)
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, domain.E(domain.KindUnavailable, "embed", msg, nil)
		}
		return nil, domain.UnexpectedResponseError("embed", msg)
	}

	var embResp api.EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, domain.E(domain.KindUnexpectedResponse, "embed", "failed to parse response", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, domain.UnexpectedResponseError("embed", "response has no embedding")
	}

	vec := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		vec[i] = float32(v)
	}
	if err := e.checkDimension(len(vec)); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *Remote) checkDimension(n int) error {
	if e.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := e.dimension.Load(); int64(n) != want {
		return domain.UnexpectedResponseError("embed", fmt.Sprintf("vector dimension mismatch: expected %d, got %d", want, n))
	}
	return nil
}

func (e *Remote) Dimension() int {
	return int(e.dimension.Load())
}

func (e *Remote) ModelName() string {
	return e.model
}
