package main

import (
	"testing"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
)

func TestRedact(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{APIKey: "sk-llm", Model: "gpt-4o-mini"},
		Search: config.SearchConfig{
			Providers: map[string]config.ProviderConfig{
				"firecrawl":  {Type: "firecrawl", APIKey: "fc-key"},
				"duckduckgo": {Type: "duckduckgo"},
			},
		},
	}

	got := redact(cfg)

	if got.LLM.APIKey != "********" || got.LLM.Model != "gpt-4o-mini" {
		t.Errorf("Unexpected llm section: %+v", got.LLM)
	}
	if got.Search.Providers["firecrawl"].APIKey != "********" {
		t.Error("Expected provider key to be masked")
	}
	if got.Search.Providers["duckduckgo"].APIKey != "" {
		t.Error("Expected empty key to stay empty")
	}
	if cfg.Search.Providers["firecrawl"].APIKey != "fc-key" {
		t.Error("Expected original config to be untouched")
	}
}
