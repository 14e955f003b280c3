package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

// ErrEmptyText is returned for blank input; nothing is sent to the backend.
var ErrEmptyText = errors.New("embedding: empty text")

// Gateway bounds every call to the underlying Embedder with a timeout and a
// small retry budget. Callers treat any error as "no vector".
type Gateway struct {
	embedder Embedder
	timeout  time.Duration
	policy   engine.RetryPolicy
	hooks    engine.Hooks
	logger   *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

func WithRetryPolicy(p engine.RetryPolicy) GatewayOption {
	return func(g *Gateway) { g.policy = p }
}

func WithHooks(h engine.Hooks) GatewayOption {
	return func(g *Gateway) { g.hooks = h }
}

func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps e. Defaults: 10s timeout, engine.DefaultRetryConfig().EmbedPolicy.
func NewGateway(e Embedder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		embedder: e,
		timeout:  10 * time.Second,
		policy:   engine.DefaultRetryConfig().EmbedPolicy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Embed returns the vector for text or an error once the timeout or retry
// budget is spent.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vec, err := engine.RetryWithPolicy(ctx, g.policy,
		func(ctx context.Context) ([]float32, error) {
			return g.embedder.Embed(ctx, text)
		},
		engine.ClassifyLLMError,
		func(attempt int, delay time.Duration, err error) {
			g.hooks.OnRetryAttempt(ctx, attempt, g.policy.MaxRetries, delay, err)
		},
	)
	if err != nil {
		g.logger.Debug("embedding failed", zap.Error(err), zap.Int("chars", len(text)))
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed: backend returned an empty vector")
	}
	return vec, nil
}

// EmbedBestEffort returns nil instead of an error.
func (g *Gateway) EmbedBestEffort(ctx context.Context, text string) []float32 {
	vec, err := g.Embed(ctx, text)
	if err != nil {
		return nil
	}
	return vec
}

// Dimension reports the dimension of the wrapped embedder.
func (g *Gateway) Dimension() int {
	return g.embedder.Dimension()
}
