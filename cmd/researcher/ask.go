package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/internal/stream"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

var (
	askAgentic bool
	askJSON    bool
	askCreds   models.Credentials
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Research a query locally and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return errors.New("query is required")
		}

		creds := askCreds
		if creds.APIKey == "" {
			creds.APIKey = cfg.LLM.APIKey
		}
		if creds.BaseURL == "" {
			creds.BaseURL = cfg.LLM.BaseURL
		}
		if creds.Model == "" {
			creds.Model = cfg.LLM.Model
		}
		if !creds.Complete() {
			return errors.New("api key, base url and model are required (flags, config or RESEARCHER_LLM_* env)")
		}

		a := newApp(cfg)
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		run := a.simple.Run
		if askAgentic {
			run = a.agentic.Run
		}

		if askJSON {
			return stream.NewNDJSONWriter(os.Stdout, nil).Copy(run(ctx, query, creds))
		}
		return printEvents(run(ctx, query, creds))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askAgentic, "agentic", false, "let the model search repeatedly before answering")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the raw event stream as NDJSON")
	askCmd.Flags().StringVar(&askCreds.APIKey, "api-key", "", "completion API key (overrides config)")
	askCmd.Flags().StringVar(&askCreds.BaseURL, "base-url", "", "completion API base URL (overrides config)")
	askCmd.Flags().StringVar(&askCreds.Model, "model", "", "completion model (overrides config)")
}

// printEvents shows progress on a stderr spinner and writes answers to stdout
func printEvents(events iter.Seq[models.Event]) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan]Research Initiated...[reset]"),
		progressbar.OptionClearOnFinish(),
	)

	var usage models.Usage
	var runErr error
	for ev := range events {
		switch ev.Type {
		case models.EventLog:
			bar.Describe("[cyan]" + describe(ev.Content) + "[reset]")
			bar.Add(1)
		case models.EventTokenUsage:
			if u, ok := ev.Content.(models.Usage); ok {
				usage.Add(u)
			}
		case models.EventOutput:
			bar.Clear()
			fmt.Println(ev.Content)
		case models.EventError:
			runErr = ev.Err
		}
	}
	bar.Finish()

	if usage.TotalTokens > 0 {
		fmt.Fprintf(os.Stderr, "tokens: %d prompt, %d completion, %d total\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	}
	return runErr
}

func describe(content interface{}) string {
	if sl, ok := content.(models.SearchLog); ok {
		return sl.Explanation
	}
	return fmt.Sprint(content)
}
