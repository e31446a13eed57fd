package embedclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/resilience/circuitbreaker"
)

// Config controls the embedding provider call: base URL, model, the fixed
// output dimension, and the retry/rate-limit policy in front of it.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimension         int
	MaxInputBytes     int
	MaxAttempts       int
	BaseDelay         time.Duration
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

func DefaultConfig() Config {
	return Config{
		Dimension:         entity.EmbeddingDimension,
		MaxInputBytes:     2048,
		MaxAttempts:       3,
		BaseDelay:         2 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		Timeout:           30 * time.Second,
	}
}

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	openai         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	config         Config
}

func New(config Config) *Client {
	oaiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oaiConfig.BaseURL = config.BaseURL
	}

	return &Client{
		openai:         openai.NewClientWithConfig(oaiConfig),
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig()),
		limiter:        rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		config:         config,
	}
}

// Embed preprocesses text and returns its embedding vector. Empty input
// (after whitespace collapsing) fails fast with ErrNoInput. Rate-limit
// responses back off proportionally to the attempt number; other transient
// errors wait a constant base delay. Exhausting attempts returns
// ErrEmbeddingUnavailable; a dimension mismatch returns ErrEmbeddingShape.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	input := preprocess(text, c.config.MaxInputBytes)
	if input == "" {
		return nil, ErrNoInput
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedclient: rate limiter wait: %w", err)
		}

		vector, rateLimited, err := c.call(ctx, input)
		if err == nil {
			if len(vector) != c.config.Dimension {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingShape, len(vector), c.config.Dimension)
			}
			return vector, nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("embedding circuit breaker open, request rejected",
				slog.String("service", "embedding"),
				slog.String("state", c.circuitBreaker.State().String()))
		}

		if attempt == c.config.MaxAttempts {
			break
		}

		delay := c.config.BaseDelay
		if rateLimited {
			delay = c.config.BaseDelay * time.Duration(attempt)
		}

		slog.Warn("embedding call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

// call performs one embedding request through the circuit breaker and
// reports whether the failure looks like a provider rate-limit response.
func (c *Client) call(ctx context.Context, input string) (vector []float32, rateLimited bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	result, cbErr := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doEmbed(reqCtx, input)
	})
	if cbErr != nil {
		return nil, isRateLimitError(cbErr), cbErr
	}

	return result.([]float32), false, nil
}

func (c *Client) doEmbed(ctx context.Context, input string) ([]float32, error) {
	resp, err := c.openai.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(c.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider call failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("embedding provider returned no data")
	}

	return resp.Data[0].Embedding, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	return false
}
