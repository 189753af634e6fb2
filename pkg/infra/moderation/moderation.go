package moderation

import (
	"context"
	"errors"
)

// ErrMalformedResponse marks a reply that reached us but could not be
// interpreted, as opposed to a transport or availability failure. Callers
// use it to tell a broken contract apart from a down upstream.
var ErrMalformedResponse = errors.New("malformed moderation response")

// Scores maps moderation categories to confidence scores in [0,1].
type Scores map[string]float64

// Max returns the highest score and its category. Empty scores return ("", 0).
func (s Scores) Max() (string, float64) {
	var (
		topCategory string
		topScore    float64
	)
	for category, score := range s {
		if score > topScore || topCategory == "" {
			topCategory = category
			topScore = score
		}
	}
	return topCategory, topScore
}

// Client is the moderation capability backing the toxicity detector. It may
// be a remote classifier or a local model; the detector only depends on this
// contract.
type Client interface {
	Classify(ctx context.Context, text string) (Scores, error)
}
