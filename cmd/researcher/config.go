package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		data, err := yaml.Marshal(redact(*cfg))
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

// redact masks secrets. cfg is a copy, the providers map is rebuilt.
func redact(cfg config.Config) config.Config {
	cfg.LLM.APIKey = mask(cfg.LLM.APIKey)
	cfg.Embedding.APIKey = mask(cfg.Embedding.APIKey)

	providers := make(map[string]config.ProviderConfig, len(cfg.Search.Providers))
	for name, p := range cfg.Search.Providers {
		p.APIKey = mask(p.APIKey)
		providers[name] = p
	}
	cfg.Search.Providers = providers
	return cfg
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
