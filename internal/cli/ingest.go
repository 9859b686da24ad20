package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	ingestDocID   string
	ingestReplace bool
	ingestRebuild bool
	ingestQuiet   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Split, embed and store documents",
	Long: `Ingest text files into the per-document vector index. Each file becomes one
document keyed by its file name, or by its path relative to an ingested directory.
--id overrides the key for a single file.
Directories are walked using the include/exclude globs from the config.

Examples:
  docqa ingest .                          # Ingest current directory
  docqa ingest paper.txt --id arxiv:1234  # Ingest one file under a chosen id
  docqa ingest . --rebuild                # Drop the index and ingest again`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestDocID, "id", "", "document id for a single file (default is its file name)")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "delete each document's collection before ingesting")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "clear the whole index first")
	ingestCmd.Flags().BoolVar(&ingestQuiet, "quiet", false, "hide the progress bar")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	paths := args
	if len(paths) == 0 {
		paths = []string{GetRootDir()}
	}

	svc, err := openServices(cfg, log, serviceNeeds{embedder: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.checkSchema(ingestRebuild); err != nil {
		return err
	}

	if ingestDocID != "" {
		if len(paths) != 1 {
			return domain.InvalidInputError("ingest", "--id needs exactly one file")
		}
		return ingestOne(cmd, svc, paths[0], ingestDocID)
	}

	var walker port.FileWalker = fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	var files []port.FileInfo
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return fmt.Errorf("path does not exist: %w", err)
		}
		found, err := walker.Walk(abs)
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", abs, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	fmt.Printf("Ingesting %d files...\n", len(files))
	start := time.Now()
	bar := newProgressBar(len(files), "Ingesting")
	var barMu sync.Mutex
	onDone := func(path string, err error) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	result, err := svc.ingest.IngestFiles(ctx, files, fs.TextReader{}, cfg.Ingest.Concurrency, ingestReplace, onDone)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if svc.bolt != nil {
		if err := svc.bolt.Migrate(cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	fmt.Printf("\nIngestion complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks:    %d\n", result.Chunks)
	if len(result.Skipped) > 0 {
		fmt.Printf("\nSkipped:\n")
		for _, s := range result.Skipped {
			fmt.Printf("  - %s\n", s.Error)
		}
	}
	return nil
}

func ingestOne(cmd *cobra.Command, svc *services, path, docID string) error {
	text, err := fs.TextReader{}.ReadFile(path)
	if err != nil {
		return err
	}
	doc := domain.Document{ID: docID, Text: text}
	if ingestReplace {
		_, err = svc.ingest.Replace(cmd.Context(), doc)
	} else {
		_, err = svc.ingest.Ingest(cmd.Context(), doc)
	}
	if err != nil {
		return err
	}
	if svc.bolt != nil {
		if err := svc.bolt.Migrate(svc.cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}
	n, err := svc.index.Count(cmd.Context(), docID)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %s (%d chunks)\n", docID, n)
	return nil
}

func newProgressBar(total int, label string) *progressbar.ProgressBar {
	if ingestQuiet {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
