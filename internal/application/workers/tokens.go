package workers

const defaultCharsPerToken = 4

// CharEstimator approximates token counts from character counts. It is the
// default ports.TokenEstimator; swap in a real tokenizer for exact
// accounting.
type CharEstimator struct {
	charsPerToken int
}

// NewCharEstimator creates an estimator with the default 4-chars-per-token
// ratio.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{charsPerToken: defaultCharsPerToken}
}

// NewCharEstimatorWithRatio creates an estimator with a custom ratio.
func NewCharEstimatorWithRatio(charsPerToken int) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = defaultCharsPerToken
	}
	return &CharEstimator{charsPerToken: charsPerToken}
}

// Estimate returns ceil(len(text) / charsPerToken).
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + e.charsPerToken - 1) / e.charsPerToken
}
