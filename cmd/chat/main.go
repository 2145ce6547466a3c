// Package main is the entry point for the chat CLI and its loopback bridge.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/modelchat/internal/config"
	"github.com/capitalize-ai/modelchat/internal/llm"
	natsclient "github.com/capitalize-ai/modelchat/internal/nats"
	"github.com/capitalize-ai/modelchat/internal/service"
	"github.com/capitalize-ai/modelchat/internal/storage"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

var (
	modelFlag string
	verbose   bool

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Multi-provider LLM chat with per-model conversation history",
	Long: `chat keeps one conversation per model and sends it to OpenAI, Anthropic,
Google Gemini or a local Ollama server.

Conversations are persisted under a single key in the configured store
(sqlite by default). Provider keys are read from the environment or a .env
file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		var err error
		log, err = logger.New(level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger.SetGlobal(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model id selecting the conversation (default from DEFAULT_MODEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, sendCmd, modelsCmd, historyCmd, clearCmd, regenerateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired chat core shared by every command.
type app struct {
	storage storage.Storage
	store   *service.ConversationStore
	chat    *service.ChatService
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		log.Warn("failed to close storage", zap.Error(err))
	}
}

func newApp(ctx context.Context) (*app, error) {
	backend, err := openStorage(ctx)
	if err != nil {
		return nil, err
	}

	current := cfg.DefaultModel
	if modelFlag != "" {
		current = modelFlag
	}

	store, err := service.OpenConversationStore(ctx, backend, cfg.StoreKey, current, log)
	if err != nil {
		backend.Close()
		return nil, err
	}

	router := llm.NewDefaultRouter(llm.Config{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		AnthropicVersion: cfg.AnthropicVersion,
		GoogleAPIKey:     cfg.GoogleAPIKey,
		GoogleBaseURL:    cfg.GoogleBaseURL,
		OllamaBaseURL:    cfg.OllamaBaseURL,
	}, log)

	return &app{
		storage: backend,
		store:   store,
		chat:    service.NewChatService(store, router, log),
	}, nil
}

func openStorage(ctx context.Context) (storage.Storage, error) {
	log.Debug("opening conversation storage", zap.String("backend", cfg.StoreBackend))

	switch cfg.StoreBackend {
	case config.BackendMemory:
		return storage.NewMemoryStorage(), nil
	case config.BackendSQLite:
		return storage.NewSQLiteStorage(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		return storage.NewRedisStorage(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.BackendNATS:
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		kv, err := natsclient.NewKeyValueStorage(ctx, client, cfg.NATSBucket)
		if err != nil {
			client.Close()
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
