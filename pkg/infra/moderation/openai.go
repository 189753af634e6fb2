package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fairsight-ai/guardian/pkg/infra/httpx"
	"github.com/sirupsen/logrus"
)

const (
	OpenAIModerationURL = "https://api.openai.com/v1/moderations"
	defaultModel        = "omni-moderation-latest"

	breakerCooldown    = 30 * time.Second
	breakerMaxFailures = 5
)

// guardian categories, keyed by the OpenAI category (or category prefix) that
// feeds them. OpenAI reports refinements like "hate/threatening" and
// "self-harm/intent"; each refinement folds into its base category.
var categoryMapping = map[string]string{
	"hate":       "hate",
	"harassment": "harassment",
	"violence":   "violence",
	"self-harm":  "self-harm",
	"sexual":     "sexual",
}

type openAIRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Results []openAIResult `json:"results"`
}

type openAIResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

type openAIClient struct {
	client  httpx.Client
	breaker httpx.CircuitBreaker
	logger  *logrus.Logger
	apiKey  string
	url     string
}

// NewOpenAIClient builds a moderation client backed by the OpenAI moderation
// endpoint, guarded by a circuit breaker so a degraded upstream fails fast.
func NewOpenAIClient(logger *logrus.Logger, client httpx.Client, apiKey string) Client {
	if client == nil {
		client = &http.Client{}
	}
	return &openAIClient{
		client:  client,
		breaker: httpx.NewCircuitBreaker("openai_moderation", breakerCooldown, breakerMaxFailures),
		logger:  logger,
		apiKey:  apiKey,
		url:     OpenAIModerationURL,
	}
}

func (c *openAIClient) Classify(ctx context.Context, text string) (Scores, error) {
	payload, err := json.Marshal(openAIRequest{Input: text, Model: defaultModel})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal moderation request: %w", err)
	}

	var body []byte
	err = c.breaker.Execute(func() error {
		var callErr error
		body, callErr = c.call(ctx, payload)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("%w: no results returned", ErrMalformedResponse)
	}

	return mapScores(parsed.Results[0].CategoryScores), nil
}

func (c *openAIClient) call(ctx context.Context, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("moderation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Error("moderation API returned error")
		return nil, fmt.Errorf("moderation API returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// mapScores folds OpenAI's category refinements into guardian categories,
// keeping the highest score per category.
func mapScores(raw map[string]float64) Scores {
	scores := make(Scores, len(categoryMapping))
	for name, score := range raw {
		base := name
		if idx := strings.IndexByte(name, '/'); idx >= 0 {
			base = name[:idx]
		}
		mapped, ok := categoryMapping[base]
		if !ok {
			continue
		}
		if score > scores[mapped] {
			scores[mapped] = score
		}
	}
	return scores
}
