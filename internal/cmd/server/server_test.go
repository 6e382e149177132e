package server

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.GRPCAddr != "localhost:9090" {
		t.Fatalf("expected default grpc addr, got %q", cfg.GRPCAddr)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Fatalf("expected default driver sqlite, got %q", cfg.StorageDriver)
	}
	if cfg.NarrationTimeout != 30*time.Second {
		t.Fatalf("expected default narration timeout 30s, got %v", cfg.NarrationTimeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("LOREFORGE_ADDR", "env-addr")
	t.Setenv("LOREFORGE_DB_PATH", "env.db")
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	args := []string{"-addr", "flag-addr", "-storage", "bbolt"}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "flag-addr" {
		t.Fatalf("expected flag addr to win, got %q", cfg.Addr)
	}
	if cfg.DBPath != "env.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.StorageDriver != "bbolt" {
		t.Fatalf("expected flag driver bbolt, got %q", cfg.StorageDriver)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, err := OpenStore("redis", "x.db"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenStoreByDriver(t *testing.T) {
	for _, driver := range []string{"sqlite", "bbolt"} {
		store, err := OpenStore(driver, t.TempDir()+"/campaigns.db")
		if err != nil {
			t.Fatalf("open %s store: %v", driver, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %s store: %v", driver, err)
		}
	}
}

func TestNewNarratorRequiresKey(t *testing.T) {
	if _, err := NewNarrator(Config{OpenAIModel: "gpt-4o-mini"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
