// Package factory wires configuration into a ready orchestrator.
package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/config"
	"github.com/ChamsBouzaiene/assist/internal/confirm"
	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/pipeline"
	"github.com/ChamsBouzaiene/assist/internal/providers"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

// Runtime owns the store and backends behind an orchestrator. The
// orchestrator can be rebuilt with new thresholds; pending suggestions and
// per-project turn ordering survive the rebuild.
type Runtime struct {
	Store *store.SQLite

	deps    pipeline.Deps
	pending *confirm.Store
	locks   *pipeline.ProjectLocks
	logger  *zap.Logger
	hooks   []engine.Hook

	mu   sync.RWMutex
	orch *pipeline.Orchestrator
}

// Build opens the store at the manager's database path and connects the
// configured backends. A backend that cannot be created is logged and left
// out; the pipeline then runs on its deterministic fallbacks.
func Build(ctx context.Context, mgr *config.Manager, cfg *config.Config, logger *zap.Logger, hooks ...engine.Hook) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dbPath := mgr.DatabasePath(cfg)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	st, err := store.Open(ctx, dbPath, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{Sessions: st, Records: st}

	if llm, model, err := providers.NewLLMClient(cfg.LLM); err != nil {
		logger.Warn("generation backend unavailable, using rule-based fallbacks", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
	} else {
		deps.LLM, deps.Model = llm, model
		logger.Info("generation backend ready", zap.String("provider", cfg.LLM.Provider), zap.String("model", model))
	}

	if emb, err := embedding.NewEmbedder(ctx, cfg.Embedding); err != nil {
		logger.Warn("embedding backend unavailable, using hashing embedder", zap.String("provider", cfg.Embedding.Provider), zap.Error(err))
		deps.Embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimension)
	} else {
		deps.Embedder = emb
	}

	r := &Runtime{
		Store:   st,
		deps:    deps,
		pending: confirm.NewStore(),
		locks:   pipeline.NewProjectLocks(),
		logger:  logger,
		hooks:   hooks,
	}
	if err := r.Reconfigure(cfg); err != nil {
		st.Close()
		return nil, err
	}
	return r, nil
}

// Orchestrator returns the current orchestrator.
func (r *Runtime) Orchestrator() *pipeline.Orchestrator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orch
}

// Reconfigure swaps in an orchestrator built from cfg's pipeline settings.
// Backends and the store are kept.
func (r *Runtime) Reconfigure(cfg *config.Config) error {
	orch, err := pipeline.New(r.deps,
		pipeline.WithConfig(cfg.Pipeline),
		pipeline.WithLogger(r.logger),
		pipeline.WithHooks(r.hooks...),
		pipeline.WithPendingStore(r.pending),
		pipeline.WithProjectLocks(r.locks))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.orch = orch
	r.mu.Unlock()
	return nil
}

func (r *Runtime) Close() error {
	return r.Store.Close()
}
