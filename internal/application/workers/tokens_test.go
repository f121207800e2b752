package workers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharEstimator(t *testing.T) {
	t.Parallel()

	e := NewCharEstimator()

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "below one token rounds up", text: "hi", want: 1},
		{name: "exact multiple", text: "12345678", want: 2},
		{name: "remainder rounds up", text: "123456789", want: 3},
		{name: "long text", text: strings.Repeat("a", 4000), want: 1000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Estimate(tt.text))
		})
	}
}

func TestCharEstimatorCustomRatio(t *testing.T) {
	t.Parallel()

	e := NewCharEstimatorWithRatio(2)
	assert.Equal(t, 5, e.Estimate("0123456789"))

	// Invalid ratios fall back to the default
	fallback := NewCharEstimatorWithRatio(0)
	assert.Equal(t, 1, fallback.Estimate("abcd"))
}
