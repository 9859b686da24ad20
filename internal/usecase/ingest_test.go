package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/fs"
	"docqa/internal/adapter/memstore"
	"docqa/internal/domain"
	"docqa/internal/port"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, docID)
}

func newTestIngest(t *testing.T, embedder port.Embedder) (*IngestUseCase, *memstore.MemoryIndex, *recordingInvalidator) {
	t.Helper()
	splitter, err := chunker.NewSplitter(20, 5, chunker.DefaultLookback)
	require.NoError(t, err)
	index := memstore.NewMemoryIndex()
	inv := &recordingInvalidator{}
	return NewIngestUseCase(splitter, embedder, index, inv, nil), index, inv
}

func TestIngestUseCase_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("Should store one vector per chunk and invalidate cached results", func(t *testing.T) {
		uc, index, inv := newTestIngest(t, &vocabEmbedder{})
		res, err := uc.Ingest(ctx, domain.Document{ID: "doc", Text: "The cat sat. The dog ran. Birds fly south."})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Chunks, 3)

		n, err := index.Count(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, res.Chunks, n)
		assert.Equal(t, []string{"doc"}, inv.ids)
	})

	t.Run("Should reject documents without id or text", func(t *testing.T) {
		uc, _, _ := newTestIngest(t, &vocabEmbedder{})
		_, err := uc.Ingest(ctx, domain.Document{Text: "x"})
		assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
		_, err = uc.Ingest(ctx, domain.Document{ID: "doc", Text: "   "})
		assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
	})

	t.Run("Should propagate embedding failures with their kind", func(t *testing.T) {
		uc, index, _ := newTestIngest(t, &vocabEmbedder{err: domain.UnavailableError("embed", errors.New("refused"))})
		_, err := uc.Ingest(ctx, domain.Document{ID: "doc", Text: "The cat sat."})
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindUnavailable))
		exists, _ := index.Exists(ctx, "doc")
		assert.False(t, exists)
	})

	t.Run("Should drop stale chunks on replace", func(t *testing.T) {
		uc, index, _ := newTestIngest(t, &vocabEmbedder{})
		_, err := uc.Ingest(ctx, domain.Document{ID: "doc", Text: "The cat sat. The dog ran. Birds fly south."})
		require.NoError(t, err)
		_, err = uc.Replace(ctx, domain.Document{ID: "doc", Text: "The cat sat."})
		require.NoError(t, err)

		n, err := index.Count(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestIngestUseCase_EnsureIngested(t *testing.T) {
	ctx := context.Background()

	t.Run("Should load and ingest only once for concurrent callers", func(t *testing.T) {
		uc, _, _ := newTestIngest(t, &vocabEmbedder{})
		var loads atomic.Int32
		load := func(context.Context) (string, error) {
			loads.Add(1)
			return "The cat sat. The dog ran.", nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.EnsureIngested(ctx, "doc", load)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), loads.Load())

		ran, err := uc.EnsureIngested(ctx, "doc", load)
		require.NoError(t, err)
		assert.False(t, ran)
	})

	t.Run("Should finish the shared ingestion when the first caller cancels", func(t *testing.T) {
		uc, index, _ := newTestIngest(t, &vocabEmbedder{})
		started := make(chan struct{})
		release := make(chan struct{})
		var loads atomic.Int32
		load := func(context.Context) (string, error) {
			if loads.Add(1) == 1 {
				close(started)
			}
			<-release
			return "The cat sat. The dog ran.", nil
		}

		firstCtx, cancel := context.WithCancel(ctx)
		firstErr := make(chan error, 1)
		go func() {
			_, err := uc.EnsureIngested(firstCtx, "doc", load)
			firstErr <- err
		}()
		<-started

		secondErr := make(chan error, 1)
		go func() {
			_, err := uc.EnsureIngested(ctx, "doc", load)
			secondErr <- err
		}()

		cancel()
		assert.ErrorIs(t, <-firstErr, context.Canceled)

		close(release)
		require.NoError(t, <-secondErr)
		assert.Equal(t, int32(1), loads.Load())

		exists, err := index.Exists(ctx, "doc")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Should surface load failures", func(t *testing.T) {
		uc, _, _ := newTestIngest(t, &vocabEmbedder{})
		_, err := uc.EnsureIngested(ctx, "doc", func(context.Context) (string, error) {
			return "", domain.ExtractionError("extract", "unreadable", nil)
		})
		assert.True(t, domain.IsKind(err, domain.KindExtraction))
	})
}

func TestIngestUseCase_IngestFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(good, []byte("The cat sat. The dog ran."), 0o644))
	require.NoError(t, os.WriteFile(blank, []byte(" \n"), 0o644))
	files := []port.FileInfo{{Path: good}, {Path: blank}}

	t.Run("Should skip extraction failures and keep going", func(t *testing.T) {
		uc, index, _ := newTestIngest(t, &vocabEmbedder{})
		var done atomic.Int32
		res, err := uc.IngestFiles(ctx, files, fs.TextReader{}, 2, false, func(string, error) { done.Add(1) })
		require.NoError(t, err)
		assert.Equal(t, 1, res.Documents)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, blank, res.Skipped[0].Path)
		assert.Equal(t, int32(2), done.Load())

		exists, err := index.Exists(ctx, good)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Should stop on provider failures", func(t *testing.T) {
		uc, _, _ := newTestIngest(t, &vocabEmbedder{err: domain.TimeoutError("embed", context.DeadlineExceeded)})
		_, err := uc.IngestFiles(ctx, files, fs.TextReader{}, 1, false, nil)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindTimeout))
	})
}
