// Package tokenizer estimates prompt sizes with OpenAI's BPE encodings.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.TokenEstimator = (*TiktokenEstimator)(nil)

// TiktokenEstimator implements adapter.TokenEstimator with tiktoken-go.
// Encoders are acquired per call; the parsed BPE ranks are cached by the
// library, so acquisition after the first load is cheap.
type TiktokenEstimator struct {
	fallback string
}

var offlineOnce sync.Once

// NewTiktokenEstimator builds an estimator. fallbackEncoding (e.g.
// "cl100k_base") is used for unknown models; empty rejects them.
// BPE ranks are read from the files embedded by tiktoken-go-loader, so
// estimation never reaches the network.
func NewTiktokenEstimator(fallbackEncoding string) *TiktokenEstimator {
	offlineOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
	return &TiktokenEstimator{fallback: strings.TrimSpace(fallbackEncoding)}
}

func (e *TiktokenEstimator) Estimate(model, text string) (int, error) {
	counts, err := e.EstimateAll(model, []string{text})
	if err != nil {
		return 0, err
	}
	return counts[0], nil
}

func (e *TiktokenEstimator) EstimateAll(model string, texts []string) ([]int, error) {
	enc, err := e.acquire(model)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(texts))
	for i, t := range texts {
		out[i] = len(enc.EncodeOrdinary(t))
	}
	return out, nil
}

func (e *TiktokenEstimator) acquire(model string) (*tiktoken.Tiktoken, error) {
	name, ok := EncodingName(model)
	if !ok {
		if e.fallback == "" {
			return nil, &domain.UnsupportedModelError{Model: model}
		}
		name = e.fallback
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", name, err)
	}
	return enc, nil
}

// EncodingName resolves the encoding tiktoken uses for model.
func EncodingName(model string) (string, bool) {
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name, true
	}
	// Map iteration order is random; longest prefix wins to stay deterministic.
	best := ""
	for prefix := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", false
	}
	return tiktoken.MODEL_PREFIX_TO_ENCODING[best], true
}
