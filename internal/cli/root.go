package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "degrade",
	Short: "Time-decaying counters",
	Long: "degrade stores counters that lose a fixed amount per elapsed interval, " +
		"computed lazily on every read. Use it for rate limits, reputation scores and cooldowns.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.degrade/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("DEGRADE_URL"), "talk to a running server instead of the local store")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(incrCmd)
	rootCmd.AddCommand(decrCmd)
	rootCmd.AddCommand(peekCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(loadCmd)
}
