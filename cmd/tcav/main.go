package main

import (
	"fmt"
	"os"
	"tcav-panel/cmd"
	"tcav-panel/internal/config"

	"github.com/spf13/cobra"
)

var (
	envFile     string
	databaseURL string
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tcav",
	Short: "Concept activation scores for dataset subsets",
	Long: `Run TCAV over the subsets of a dataset and manage those subsets.

Settings are read from the environment (DATABASE_URL, INTERPRETER_URL,
MODEL, DATASET), optionally loaded from the file given with --env.`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		cmd.LoadEnv(envFile)

		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if databaseURL != "" {
			loaded.DatabaseURL = databaseURL
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to load env from")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", "", "database url, overrides DATABASE_URL")

	rootCmd.AddCommand(runCmd, subsetsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
