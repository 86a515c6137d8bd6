package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/database"
	"github.com/dataagent-io/dataagent/pkg/llm"
)

// loadConfig reads .env from the config directory (best effort) and
// initializes the full configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file loaded, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	return config.Initialize(cmd.Context(), configDir)
}

// openDatabase connects using DATABASE_* environment settings.
func openDatabase(ctx context.Context) (*database.Client, error) {
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	client, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return client, nil
}

// newBackend builds the LLM backend for the configured default provider.
func newBackend(cfg *config.Config) (string, llm.Backend, error) {
	name, providerCfg, err := cfg.DefaultLLMProvider()
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve LLM provider: %w", err)
	}

	switch providerCfg.Type {
	case config.ProviderOpenAI, config.ProviderOpenAICompatible:
		backend, err := llm.NewOpenAIBackend(providerCfg)
		if err != nil {
			return "", nil, fmt.Errorf("failed to initialize LLM provider %q: %w", name, err)
		}
		return name, backend, nil
	default:
		return "", nil, fmt.Errorf("unsupported LLM provider type %q", providerCfg.Type)
	}
}
