package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the model backend and show the active configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		svc, err := openServices(cfg, log, serviceNeeds{chat: true})
		if err != nil {
			return err
		}
		defer svc.Close()

		backend := "unreachable"
		if svc.chat.Available(cmd.Context()) {
			backend = "ok"
		}

		embedModel := cfg.Embedding.Model
		if config.NormalizeProvider(cfg.Embedding.Provider) == config.ProviderLocal {
			embedModel = cfg.Embedding.LocalModel
		}

		infos, err := svc.index.List(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Backend:     %s (%s)\n", cfg.Chat.BaseURL, backend)
		fmt.Printf("Chat model:  %s\n", svc.chat.ModelName())
		fmt.Printf("Embeddings:  %s (%s)\n", embedModel, cfg.Embedding.Provider)
		fmt.Printf("Chunking:    size %d, overlap %d\n", cfg.Chunking.Size, cfg.Chunking.Overlap)
		if cfg.Index.Ephemeral {
			fmt.Println("Index:       in memory")
		} else {
			fmt.Printf("Index:       %s\n", cfg.IndexDBPath(GetRootDir()))
		}
		fmt.Printf("Collections: %d\n", len(infos))
		return nil
	},
}

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Load the chat model into memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(GetConfig(), log, serviceNeeds{chat: true})
		if err != nil {
			return err
		}
		defer svc.Close()

		svc.chat.WarmUp(cmd.Context())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, warmupCmd)
}
