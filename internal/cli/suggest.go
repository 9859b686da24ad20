package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <file>",
	Short: "Suggest questions worth asking about a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := fs.TextReader{}.ReadFile(args[0])
		if err != nil {
			return err
		}

		svc, err := openServices(GetConfig(), log, serviceNeeds{chat: true})
		if err != nil {
			return err
		}
		defer svc.Close()

		questions, err := svc.suggest.Suggest(cmd.Context(), text)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			fmt.Println("No suggestions.")
			return nil
		}
		for _, q := range questions {
			fmt.Printf("- %s\n", q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}
