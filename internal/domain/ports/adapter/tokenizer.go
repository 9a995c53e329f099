package adapter

// TokenEstimator counts model tokens for budgeting the context window.
type TokenEstimator interface {
	// Estimate returns the token count of text under the model's encoding.
	// Unknown models fail with *domain.UnsupportedModelError.
	Estimate(model, text string) (int, error)

	// EstimateAll counts each text with a single encoder acquisition.
	EstimateAll(model string, texts []string) ([]int, error)
}
