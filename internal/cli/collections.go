package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var collectionsJSON bool

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"docs"},
	Short:   "Manage stored document collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(GetConfig(), log, serviceNeeds{})
		if err != nil {
			return err
		}
		defer svc.Close()

		infos, err := svc.index.List(cmd.Context())
		if err != nil {
			return err
		}
		if collectionsJSON {
			output, _ := json.MarshalIndent(infos, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		if len(infos) == 0 {
			fmt.Println("No collections.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOCUMENT\tCHUNKS\tDIM\tCREATED\tCOLLECTION")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", info.DocID, info.Count, info.Dimension,
				info.CreatedAt.Local().Format("2006-01-02 15:04"), info.Name)
		}
		return w.Flush()
	},
}

var collectionsExistsCmd = &cobra.Command{
	Use:   "exists <doc-id>",
	Short: "Report whether a document has a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(GetConfig(), log, serviceNeeds{})
		if err != nil {
			return err
		}
		defer svc.Close()

		exists, err := svc.index.Exists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !exists {
			fmt.Println("no")
			return nil
		}
		n, err := svc.index.Count(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("yes (%d chunks)\n", n)
		return nil
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>...",
	Short: "Delete document collections",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(GetConfig(), log, serviceNeeds{})
		if err != nil {
			return err
		}
		defer svc.Close()

		for _, docID := range args {
			if err := svc.index.Delete(cmd.Context(), docID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", docID, err)
			}
			fmt.Printf("Deleted %s\n", docID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
	collectionsCmd.AddCommand(collectionsListCmd, collectionsExistsCmd, collectionsDeleteCmd)
	collectionsListCmd.Flags().BoolVar(&collectionsJSON, "json", false, "output as JSON")
}
