// Package genai wraps the Genkit generate call behind a small text-completion
// client shared by the classification, candidate and judgement adapters.
package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/sirusiru/radish-engine/internal/log"
)

// ErrNilGenkit indicates the client was constructed without an initialized
// Genkit instance.
var ErrNilGenkit = errors.New("genkit instance is nil")

// Client issues single-shot completions against a fixed model. All prompt
// content is supplied per call; the client only owns transport concerns
// (model selection, temperature, timeout, rate limiting).
type Client struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      log.Logger
}

// NewClient creates a completion client. limiter may be nil to disable
// client-side rate limiting.
func NewClient(g *genkit.Genkit, modelName string, temperature float64, timeout time.Duration, limiter *rate.Limiter, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		g:           g,
		modelName:   modelName,
		temperature: temperature,
		timeout:     timeout,
		limiter:     limiter,
		logger:      logger,
	}
}

// Complete sends one system+user prompt pair and returns the model text.
// The call is bounded by the client timeout regardless of the caller's
// context deadline.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if c.g == nil {
		return "", ErrNilGenkit
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: maxTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", c.modelName, err)
	}

	c.logger.Debug("completion finished",
		"model", c.modelName,
		"duration", time.Since(start),
	)
	return resp.Text(), nil
}
