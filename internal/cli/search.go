package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchDocID string
	searchText  string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Show the chunks retrieved for a question",
	Long: `Embed the query and list the closest chunks of a document with their cosine distance.

Examples:
  docqa search --doc paper.txt -q "training data"
  docqa search --doc paper.txt -q "training data" -k 5 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchDocID, "doc", "", "document id (required)")
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("doc")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	svc, err := openServices(cfg, log, serviceNeeds{embedder: true})
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.checkSchema(false); err != nil {
		return err
	}

	topK := cfg.Answer.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := svc.retrieve.Retrieve(cmd.Context(), searchDocID, searchText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Printf("--- [%d] chunk %d (distance: %.3f) ---\n", i+1, r.ChunkID, r.Distance)
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(strings.TrimSpace(text))
		fmt.Println()
	}
	return nil
}
