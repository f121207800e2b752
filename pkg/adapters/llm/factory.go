package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
	"github.com/disasterproject/fanout/pkg/adapters/llm/anthropic"
)

// Config holds backend construction configuration
type Config struct {
	Provider string
	// RequestTimeout bounds each individual backend call. Zero disables
	// the per-call deadline.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewBackendFactory returns a factory that builds one backend per account
// credential for the configured provider.
func NewBackendFactory(cfg *Config) (ports.BackendFactory, error) {
	switch cfg.Provider {
	case "anthropic":
		return func(credential string) (ports.Backend, error) {
			client, err := anthropic.NewClient(credential, cfg.Logger)
			if err != nil {
				return nil, err
			}
			return withRequestTimeout(client, cfg.RequestTimeout), nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// timeoutBackend applies a per-call deadline to an inner backend.
type timeoutBackend struct {
	inner   ports.Backend
	timeout time.Duration
}

// withRequestTimeout wraps a backend so every Complete call carries its own
// deadline. A zero timeout returns the backend unchanged.
func withRequestTimeout(inner ports.Backend, timeout time.Duration) ports.Backend {
	if timeout <= 0 {
		return inner
	}
	return &timeoutBackend{inner: inner, timeout: timeout}
}

func (b *timeoutBackend) Complete(ctx context.Context, model string, messages []domain.Message) (*domain.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.Complete(callCtx, model, messages)
}
