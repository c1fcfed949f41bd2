// Package app assembles the engine: configuration, tracing, database,
// Genkit provider, retrieval and the dialogue manager, with teardown in
// reverse order of construction.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sirusiru/radish-engine/internal/config"
	"github.com/sirusiru/radish-engine/internal/dialogue"
	"github.com/sirusiru/radish-engine/internal/log"
)

// App holds the wired application.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Manager  *dialogue.Manager

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse construction order. Safe to call
// after a partial Setup failure.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
