package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	showVer bool
)

var rootCmd = &cobra.Command{
	Use:   "researcher",
	Short: "Agentic internet researcher",
	Long: `Answers questions from live web content. Simple mode runs one
search and one completion; agentic mode lets the model search
repeatedly before writing a cited answer.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			fmt.Printf("researcher %s (built %s)\n", Version, BuildDate)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml or ./configs/config.yaml)")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")

	rootCmd.AddCommand(serveCmd, askCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and initializes the global logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
