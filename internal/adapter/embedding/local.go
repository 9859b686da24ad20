package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/cybertron"
	"golang.org/x/sync/semaphore"

	"docqa/internal/adapter/transport"
	"docqa/internal/domain"
)

const defaultLocalBatchSize = 32

// Local runs an in-process embedding model. Inference runs on a bounded worker pool so a
// caller can give up on a slow batch without waiting for the model.
type Local struct {
	client    embeddings.EmbedderClient
	model     string
	batchSize int
	workers   *semaphore.Weighted
	dimension atomic.Int64
}

// NewLocal wraps an already-loaded model. A nil client yields an embedder that fails every
// call with a configuration error.
func NewLocal(client embeddings.EmbedderClient, model string, batchSize, workers int) *Local {
	if batchSize <= 0 {
		batchSize = defaultLocalBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &Local{
		client:    client,
		model:     model,
		batchSize: batchSize,
		workers:   semaphore.NewWeighted(int64(workers)),
	}
}

// NewCybertronLocal loads a sentence-transformer style model through cybertron.
func NewCybertronLocal(model, modelsDir string, batchSize, workers int) (*Local, error) {
	opts := make([]cybertron.Option, 0, 2)
	if m := strings.TrimSpace(model); m != "" {
		opts = append(opts, cybertron.WithModel(m))
	}
	if modelsDir != "" {
		opts = append(opts, cybertron.WithModelsDir(modelsDir))
	}
	client, err := cybertron.NewCybertron(opts...)
	if err != nil {
		return nil, domain.E(domain.KindConfig, "embed.local", "failed to load local embedding model "+model, err)
	}
	return NewLocal(client, model, batchSize, workers), nil
}

func (e *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.client == nil {
		return nil, domain.ConfigError("embed.local", "local embedding model is not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := e.infer(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, domain.UnexpectedResponseError("embed.local",
				fmt.Sprintf("model returned %d vectors for %d texts", len(vectors), len(batch)))
		}
		for _, v := range vectors {
			if len(v) == 0 {
				return nil, domain.UnexpectedResponseError("embed.local", "model returned an empty vector")
			}
			e.dimension.CompareAndSwap(0, int64(len(v)))
			out = append(out, Normalize(v))
		}
	}
	return out, nil
}

type inferResult struct {
	vectors [][]float32
	err     error
}

func (e *Local) infer(ctx context.Context, batch []string) ([][]float32, error) {
	if err := e.workers.Acquire(ctx, 1); err != nil {
		return nil, transport.Classify("embed.local", err)
	}

	done := make(chan inferResult, 1)
	go func() {
		defer e.workers.Release(1)
		vectors, err := e.client.CreateEmbedding(ctx, batch)
		done <- inferResult{vectors: vectors, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, transport.Classify("embed.local", ctx.Err())
			}
			return nil, domain.E(domain.KindUnavailable, "embed.local", "local inference failed", res.err)
		}
		return res.vectors, nil
	case <-ctx.Done():
		return nil, transport.Classify("embed.local", ctx.Err())
	}
}

func (e *Local) Dimension() int {
	return int(e.dimension.Load())
}

func (e *Local) ModelName() string {
	return e.model
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
