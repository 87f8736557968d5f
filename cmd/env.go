package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meilan-group/mallops-cli/internal/assistant"
	"github.com/meilan-group/mallops-cli/internal/compose"
	"github.com/meilan-group/mallops-cli/internal/store"
	"github.com/meilan-group/mallops-cli/pkg/anthropic"
)

// openStore builds the configured roster backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.New("env: unknown store driver " + cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newAssistant wires the full turn pipeline over the given store. Without an
// API key the composer stays deterministic.
func newAssistant(st store.Store) (*assistant.Assistant, error) {
	var client anthropic.Client
	if cfg.Anthropic.Key != "" {
		client = anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RPS)
	}
	composer := compose.New(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

	return assistant.New(st, composer, assistant.Options{
		HistorySeed: cfg.Assistant.HistorySeed,
		CacheTTL:    time.Duration(cfg.Assistant.CacheTTLMinutes) * time.Minute,
	})
}
