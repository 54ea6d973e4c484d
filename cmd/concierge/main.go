// Package main runs the concierge booking assistant as a terminal chat.
// The stdin/stdout loop stands in for the chat-platform adapter so the
// whole pipeline (intent classification, session management, browser
// dispatch, reply formatting) is runnable end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/agent"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/browser"
	appconfig "github.com/Dhilan-Panjabi/concierge-agent/pkg/config"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/conversation"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/llm/openai"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/resilience"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/session"
)

const version = "0.1.0"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to an optional yaml config file")
		userID      = flag.String("user", "local", "User identifier for this chat")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("concierge v%s\n", version)
		return
	}

	settings, err := appconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.NewLogger("concierge")
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	store, err := openStore(settings)
	if err != nil {
		log.Fatalf("History store error: %v", err)
	}
	defer store.Close()

	provider, err := openai.NewProvider(settings.OpenAIAPIKey,
		openai.WithModel(settings.Model),
		openai.WithBaseURL(settings.OpenAIBaseURL),
	)
	if err != nil {
		log.Fatalf("Provider error: %v", err)
	}

	launcher := browser.NewPlaywrightLauncher(browser.Config{
		WSEndpoint: settings.BrowserWSEndpoint,
		Headless:   settings.BrowserHeadless,
	}, logger)
	defer launcher.Shutdown()

	controller := resilience.NewController(resilience.Config{
		FailureThreshold: settings.BreakerThreshold,
		Cooldown:         settings.BreakerCooldown,
		RetryBaseDelay:   settings.RetryBaseDelay,
		RetryMaxDelay:    settings.RetryMaxDelay,
	}, logger)

	manager := session.NewManager(session.Config{
		InactivityTimeout: settings.InactivityTimeout,
		KeepAliveInterval: settings.KeepAliveInterval,
		SweepInterval:     settings.SweepInterval,
		TaskTimeout:       settings.TaskTimeout,
		MaxRetries:        settings.MaxRetries,
		MaxHistoryTurns:   settings.MaxHistoryTurns,
	}, launcher, agent.NewCompletionRunner(provider), controller, store,
		conversation.NewPromptBuilder(settings.HistoryTokenBudget), logger)

	manager.Start(ctx)
	defer func() {
		manager.Stop()
		manager.CleanupAll()
	}()

	service := conversation.NewService(manager, provider, store, settings.MaxHistoryTurns, logger)

	fmt.Printf("concierge v%s (log: %s)\n", version, logger.LogPath())
	fmt.Println("Hey! I'm your personal concierge. What can I help you with today? (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		for _, chunk := range service.HandleMessage(ctx, *userID, text) {
			fmt.Printf("\n%s\n\n", chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Errorf("reading input: %v", err)
	}
	fmt.Println("Goodbye!")
}

// openStore selects SQLite when a database path is configured and the
// in-memory store otherwise.
func openStore(settings *appconfig.Settings) (history.Store, error) {
	if settings.HistoryDBPath == "" {
		return history.NewMemoryStore(), nil
	}
	return history.NewSQLiteStore(settings.HistoryDBPath)
}
