package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// Invalidator drops cached retrieval results for a document.
type Invalidator interface {
	Invalidate(docID string)
}

// IngestUseCase turns document text into stored chunk vectors.
type IngestUseCase struct {
	splitter    port.Splitter
	embedder    port.Embedder
	index       port.DocumentIndex
	invalidator Invalidator
	log         logger.Logger
	group       singleflight.Group
}

// NewIngestUseCase creates a new ingest use case. invalidator may be nil.
func NewIngestUseCase(
	splitter port.Splitter,
	embedder port.Embedder,
	index port.DocumentIndex,
	invalidator Invalidator,
	log logger.Logger,
) *IngestUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestUseCase{
		splitter:    splitter,
		embedder:    embedder,
		index:       index,
		invalidator: invalidator,
		log:         log.With("component", "ingest"),
	}
}

// IngestResult contains the results of ingesting one document.
type IngestResult struct {
	DocID    string        `json:"doc_id"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
}

// Ingest chunks, embeds and upserts doc. Re-ingesting the same document overwrites its chunks.
func (u *IngestUseCase) Ingest(ctx context.Context, doc domain.Document) (*IngestResult, error) {
	const op = "ingest"
	start := time.Now()
	if doc.ID == "" {
		return nil, domain.InvalidInputError(op, "document id is required")
	}

	chunks, err := u.splitter.Split(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return nil, domain.InvalidInputError(op, "document "+doc.ID+" contains no text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", doc.ID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.UnexpectedResponseError(op,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	metadata := make([]map[string]string, len(chunks))
	for i := range chunks {
		metadata[i] = map[string]string{"doc_id": doc.ID}
	}
	if err := u.index.Upsert(ctx, doc.ID, chunks, vectors, metadata); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", doc.ID, err)
	}
	u.invalidate(doc.ID)

	result := &IngestResult{DocID: doc.ID, Chunks: len(chunks), Duration: time.Since(start)}
	u.log.Info("Document ingested", "doc_id", doc.ID, "chunks", result.Chunks, "duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// Replace deletes the document's collection before ingesting, dropping chunks the new text no longer produces.
func (u *IngestUseCase) Replace(ctx context.Context, doc domain.Document) (*IngestResult, error) {
	if err := u.Delete(ctx, doc.ID); err != nil {
		return nil, err
	}
	return u.Ingest(ctx, doc)
}

func (u *IngestUseCase) Delete(ctx context.Context, docID string) error {
	if err := u.index.Delete(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", docID, err)
	}
	u.invalidate(docID)
	u.log.Debug("Collection deleted", "doc_id", docID)
	return nil
}

// EnsureIngested ingests the document returned by load unless its collection already exists.
// Concurrent calls for one docID share a single ingestion. It reports whether ingestion ran.
func (u *IngestUseCase) EnsureIngested(ctx context.Context, docID string, load func(context.Context) (string, error)) (bool, error) {
	exists, err := u.index.Exists(ctx, docID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// The shared ingestion outlives any single caller; each caller stops waiting on its own cancel.
	shared := context.WithoutCancel(ctx)
	ch := u.group.DoChan(docID, func() (any, error) {
		exists, err := u.index.Exists(shared, docID)
		if err != nil || exists {
			return false, err
		}
		text, err := load(shared)
		if err != nil {
			return false, err
		}
		if _, err := u.Ingest(shared, domain.Document{ID: docID, Text: text}); err != nil {
			return false, err
		}
		return true, nil
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

// SkippedFile records a file whose text could not be extracted.
type SkippedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchResult contains the results of ingesting many files.
type BatchResult struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

// IngestFiles ingests each file as its own document, keyed by DocID or else by path. Extraction failures are
// recorded and skipped; any other failure stops the batch. onDone, if set, is called once per file.
func (u *IngestUseCase) IngestFiles(
	ctx context.Context,
	files []port.FileInfo,
	reader port.FileReader,
	concurrency int,
	replace bool,
	onDone func(path string, err error),
) (*BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	var (
		mu     sync.Mutex
		result = &BatchResult{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, file := range files {
		g.Go(func() error {
			err := u.ingestFile(gctx, file, reader, replace, result, &mu)
			if onDone != nil {
				onDone(file.Path, err)
			}
			if domain.IsKind(err, domain.KindExtraction) {
				u.log.Warn("Skipping file", "path", file.Path, "error", err)
				mu.Lock()
				result.Skipped = append(result.Skipped, SkippedFile{Path: file.Path, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func (u *IngestUseCase) ingestFile(ctx context.Context, file port.FileInfo, reader port.FileReader, replace bool, result *BatchResult, mu *sync.Mutex) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text, err := reader.ReadFile(file.Path)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return err
		}
		return domain.ExtractionError("extract", "cannot read "+file.Path, err)
	}

	docID := file.DocID
	if docID == "" {
		docID = file.Path
	}
	doc := domain.Document{ID: docID, Text: text}
	var res *IngestResult
	if replace {
		res, err = u.Replace(ctx, doc)
	} else {
		res, err = u.Ingest(ctx, doc)
	}
	if err != nil {
		return err
	}

	mu.Lock()
	result.Documents++
	result.Chunks += res.Chunks
	mu.Unlock()
	return nil
}

func (u *IngestUseCase) invalidate(docID string) {
	if u.invalidator != nil {
		u.invalidator.Invalidate(docID)
	}
}
