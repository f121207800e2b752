package domain

// Catalog maps subtask complexity to a model tier and models to their
// per-1K-token price. A catalog is immutable once handed to the engine.
type Catalog struct {
	// TierModels maps complexity to the model used for that tier.
	TierModels map[Complexity]string
	// Prices maps a model to its USD price per 1K tokens.
	Prices map[string]float64
}

// Default Anthropic tier mapping: fast/cheap for simple work, mid tier for
// medium, top tier for complex (also used for aggregation).
var defaultTierModels = map[Complexity]string{
	ComplexitySimple:  "claude-3-5-haiku-20241022",
	ComplexityMedium:  "claude-sonnet-4-20250514",
	ComplexityComplex: "claude-opus-4-5-20251101",
}

// Blended USD per 1K tokens per model.
var defaultPrices = map[string]float64{
	"claude-3-5-haiku-20241022": 0.004,
	"claude-sonnet-4-20250514":  0.015,
	"claude-opus-4-5-20251101":  0.075,
}

// DefaultCatalog returns a catalog with the default tier mapping and prices.
func DefaultCatalog() Catalog {
	tiers := make(map[Complexity]string, len(defaultTierModels))
	for cx, model := range defaultTierModels {
		tiers[cx] = model
	}
	prices := make(map[string]float64, len(defaultPrices))
	for model, price := range defaultPrices {
		prices[model] = price
	}
	return Catalog{TierModels: tiers, Prices: prices}
}

// ModelFor returns the model for a complexity tier.
func (c Catalog) ModelFor(cx Complexity) string {
	return c.TierModels[cx]
}

// PricePer1K returns the USD price per 1K tokens for a model, or 0 for
// unknown models.
func (c Catalog) PricePer1K(model string) float64 {
	return c.Prices[model]
}

// DecomposerModel is the mid-tier model used for the single decomposition
// call.
func (c Catalog) DecomposerModel() string {
	return c.ModelFor(ComplexityMedium)
}

// AggregatorModel is the top-tier model used for the single aggregation
// call.
func (c Catalog) AggregatorModel() string {
	return c.ModelFor(ComplexityComplex)
}
