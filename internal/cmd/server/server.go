// Package server parses server command flags and runs the campaign engine's
// HTTP streaming surface alongside the gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/loreforge/loreforge/internal/api/stream"
	"github.com/loreforge/loreforge/internal/narration"
	"github.com/loreforge/loreforge/internal/platform/config"
	"github.com/loreforge/loreforge/internal/platform/grpcserver"
	"github.com/loreforge/loreforge/internal/platform/otel"
	"github.com/loreforge/loreforge/internal/session"
	"github.com/loreforge/loreforge/internal/storage"
	bboltstore "github.com/loreforge/loreforge/internal/storage/bbolt"
	"github.com/loreforge/loreforge/internal/storage/sqlite"
)

const serviceName = "server"

// Config holds server command configuration.
type Config struct {
	Addr             string        `env:"LOREFORGE_ADDR"              envDefault:"localhost:8080"`
	GRPCAddr         string        `env:"LOREFORGE_GRPC_ADDR"         envDefault:"localhost:9090"`
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
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.StorageDriver, "storage", cfg.StorageDriver, "storage driver: sqlite or bbolt")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "database file path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Store is the storage surface the engine needs plus lifecycle.
type Store interface {
	storage.Store
	Close() error
}

// OpenStore opens the campaign store selected by driver.
func OpenStore(driver, path string) (Store, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(path)
	case "bbolt":
		return bboltstore.Open(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// NewNarrator builds the OpenAI narration client from command configuration.
func NewNarrator(cfg Config) (narration.Client, error) {
	if cfg.OpenAIKey == "" {
		return nil, errors.New("LOREFORGE_OPENAI_API_KEY is required")
	}
	return narration.NewOpenAIClient(narration.OpenAIConfig{
		ResponsesURL: cfg.OpenAIURL,
		APIKey:       cfg.OpenAIKey,
		Model:        cfg.OpenAIModel,
	})
}

// Run starts the engine and serves until ctx ends.
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

	store, err := OpenStore(cfg.StorageDriver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	narrator, err := NewNarrator(cfg)
	if err != nil {
		return err
	}

	manager := session.NewManager(store, narrator,
		session.WithNarrationTimeout(cfg.NarrationTimeout))
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           stream.New(manager, store).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcServer, _ := grpcserver.New(serviceName)

	serveErr := make(chan error, 2)
	go func() {
		serveErr <- grpcserver.Serve(ctx, grpcServer, cfg.GRPCAddr)
	}()
	go func() {
		log.Printf("http listening addr=%s driver=%s", cfg.Addr, cfg.StorageDriver)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	// Exit live sessions before the store closes so every campaign lands on
	// a coherent persisted snapshot.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown http server: %w", err)
	}
	if err := manager.Close(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("close sessions: %w", err)
	}
	return runErr
}
