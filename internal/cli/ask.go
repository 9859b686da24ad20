package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/usecase"
)

var (
	askDocID    string
	askQuestion string
	askSource   string
	askHistory  string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question about one document",
	Long: `Retrieve the chunks of a document closest to the question and ask the chat model
to answer from them. With --source, the file is ingested first if the document has no
collection yet. Files ingested with 'docqa ingest' are keyed by their name, or by
their path relative to the ingested directory.

Examples:
  docqa ask --doc paper.txt -q "What is the main result?"
  docqa ask --doc arxiv:1234 --source paper.txt -q "Who are the authors?" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askDocID, "doc", "", "document id (required)")
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().StringVar(&askSource, "source", "", "file to ingest when the document is not indexed yet")
	askCmd.Flags().StringVar(&askHistory, "history", "", "JSON file with previous messages [{role, content}]")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("doc")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	history, err := loadHistory(askHistory)
	if err != nil {
		return err
	}

	svc, err := openServices(cfg, log, serviceNeeds{embedder: true, chat: true})
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.checkSchema(false); err != nil {
		return err
	}

	if cfg.Chat.WarmUp {
		svc.startWarmUp(ctx)
	}

	if askSource != "" {
		ingested, err := svc.ingest.EnsureIngested(ctx, askDocID, func(ctx context.Context) (string, error) {
			return fs.TextReader{}.ReadFile(askSource)
		})
		if err != nil {
			return err
		}
		if ingested {
			log.Info("Document ingested before answering", "doc_id", askDocID)
		}
	}

	ans, err := svc.answer.Answer(ctx, askDocID, askQuestion, history)
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(ans, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(ans.Answer)
	fmt.Printf("\nConfidence: %s (%d sources)", ans.Confidence, ans.NumSources)
	if ans.Partial {
		fmt.Print(", response cut short by a timeout")
	}
	fmt.Println()
	for i, src := range ans.Sources {
		fmt.Printf("  [%d] %s\n", i+1, sourcePreview(src))
	}
	return nil
}

// sourcePreview flattens a source onto one line and cuts it at 200 characters.
func sourcePreview(src string) string {
	text := strings.ReplaceAll(src, "\n", " ")
	if short := usecase.Truncate(text, 200); short != text {
		return short + "..."
	}
	return text
}

func loadHistory(path string) ([]domain.ChatMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var history []domain.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, domain.InvalidInputError("ask", "history must be a JSON array of {role, content}: "+err.Error())
	}
	for i, m := range history {
		if !m.Role.Valid() {
			return nil, domain.InvalidInputError("ask", fmt.Sprintf("history message %d has invalid role %q", i, m.Role))
		}
	}
	return history, nil
}
