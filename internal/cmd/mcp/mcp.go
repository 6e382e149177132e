// Package mcp parses MCP command flags and runs the stdio protocol adapter.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	apimcp "github.com/loreforge/loreforge/internal/api/mcp"
	"github.com/loreforge/loreforge/internal/cmd/server"
	"github.com/loreforge/loreforge/internal/platform/config"
	"github.com/loreforge/loreforge/internal/platform/otel"
	"github.com/loreforge/loreforge/internal/session"
)

const serviceName = "mcp"

// Config holds MCP command configuration.
type Config struct {
	StorageDriver    string        `env:"LOREFORGE_STORAGE_DRIVER"    envDefault:"sqlite"`
	DBPath           string        `env:"LOREFORGE_DB_PATH"           envDefault:"loreforge.db"`
	OpenAIKey        string        `env:"LOREFORGE_OPENAI_API_KEY"`
	OpenAIModel      string        `env:"LOREFORGE_OPENAI_MODEL"      envDefault:"gpt-4o-mini"`
	OpenAIURL        string        `env:"LOREFORGE_OPENAI_URL"`
	NarrationTimeout time.Duration `env:"LOREFORGE_NARRATION_TIMEOUT" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	config.LoadDotenv("")
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.StorageDriver, "storage", cfg.StorageDriver, "storage driver: sqlite or bbolt")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "database file path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves MCP tools over stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	store, err := server.OpenStore(cfg.StorageDriver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	narrator, err := server.NewNarrator(server.Config{
		OpenAIKey:   cfg.OpenAIKey,
		OpenAIModel: cfg.OpenAIModel,
		OpenAIURL:   cfg.OpenAIURL,
	})
	if err != nil {
		return err
	}

	manager := session.NewManager(store, narrator,
		session.WithNarrationTimeout(cfg.NarrationTimeout))
	serveErr := apimcp.New(manager).Serve(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Close(shutdownCtx); err != nil {
		log.Printf("close sessions: %v", err)
	}
	return serveErr
}
