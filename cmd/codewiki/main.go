// codewiki generates a structured, navigable wiki for a source repository:
// an overview, a topical article catalogue, a knowledge mind-map, and a
// change log, all grounded in the actual source tree.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"codewiki/internal/config"
	"codewiki/internal/logging"
	"codewiki/internal/metrics"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codewiki",
	Short: "codewiki - LLM-driven code wiki generation",
	Long: `codewiki ingests a source repository (Git URL, archive, or local path)
and produces a structured wiki: a project overview, a hierarchical catalogue
of topical articles grounded in concrete source files, a knowledge mind-map,
and a change log. Generated wikis are indexed for semantic search.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		if configPath == "" {
			configPath = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		home, _ := os.UserHomeDir()
		if err := logging.Initialize(home); err != nil {
			fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		}

		if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
			go func() {
				if err := metrics.Serve(cfg.Metrics.Listen); err != nil {
					logging.Boot("metrics endpoint failed: %v", err)
				}
			}()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.codewiki/config.yaml)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
