package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterproject/fanout/internal/domain"
)

// deadlineBackend records the deadline of the context it is called with.
type deadlineBackend struct {
	deadline    time.Time
	hadDeadline bool
}

func (b *deadlineBackend) Complete(ctx context.Context, model string, messages []domain.Message) (*domain.Completion, error) {
	b.deadline, b.hadDeadline = ctx.Deadline()
	return &domain.Completion{Content: "ok"}, nil
}

func TestWithRequestTimeoutSetsDeadline(t *testing.T) {
	t.Parallel()

	inner := &deadlineBackend{}
	backend := withRequestTimeout(inner, 90*time.Second)

	before := time.Now()
	_, err := backend.Complete(context.Background(), "model", nil)
	require.NoError(t, err)

	require.True(t, inner.hadDeadline)
	assert.WithinRange(t, inner.deadline, before, before.Add(91*time.Second))
}

func TestWithRequestTimeoutKeepsTighterCallerDeadline(t *testing.T) {
	t.Parallel()

	inner := &deadlineBackend{}
	backend := withRequestTimeout(inner, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := backend.Complete(ctx, "model", nil)
	require.NoError(t, err)

	require.True(t, inner.hadDeadline)
	assert.Less(t, time.Until(inner.deadline), time.Second)
}

func TestWithRequestTimeoutZeroIsPassthrough(t *testing.T) {
	t.Parallel()

	inner := &deadlineBackend{}
	backend := withRequestTimeout(inner, 0)
	assert.Same(t, inner, backend)

	_, err := backend.Complete(context.Background(), "model", nil)
	require.NoError(t, err)
	assert.False(t, inner.hadDeadline)
}

func TestNewBackendFactoryUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := NewBackendFactory(&Config{Provider: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported LLM provider")
}
