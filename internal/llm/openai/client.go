package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"trustcheck-backend/internal/llm"
)

const (
	// DefaultModel is used when no chat model is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimension matches the embedding model default.
	DefaultEmbeddingDimension = 1536

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 60 * time.Second

	// MaxRetries caps rate-limit retries.
	MaxRetries = 3

	// BaseBackoff is the exponential backoff base.
	BaseBackoff = 2 * time.Second

	// MaxBackoff caps the backoff wait.
	MaxBackoff = 32 * time.Second

	// maxEmbedBatch is the API's per-request input cap.
	maxEmbedBatch = 100
)

var (
	// ErrAPIKeyNotSet is returned when constructed without an API key.
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

	// ErrMaxRetriesExceeded is returned after exhausting rate-limit retries.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client implements llm.Client and llm.Embedder against the OpenAI API.
type Client struct {
	client         openai.Client
	model          string
	embeddingModel string
	dimension      int
	timeout        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithEmbeddingModel overrides the embedding model name.
func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithEmbeddingDimension overrides the embedding vector dimension.
func WithEmbeddingDimension(dimension int) Option {
	return func(c *Client) {
		if dimension > 0 {
			c.dimension = dimension
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient constructs a Client for the given API key and chat model.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}

	c := &Client{
		client:         openai.NewClient(option.WithAPIKey(apiKey)),
		model:          model,
		embeddingModel: DefaultEmbeddingModel,
		dimension:      DefaultEmbeddingDimension,
		timeout:        DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelName returns the configured chat model.
func (c *Client) ModelName() string {
	return c.model
}

// Complete sends a system/user prompt pair and returns the completion text.
// Rate-limit responses are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if err := waitBackoff(ctx, attempt); err != nil {
				return "", err
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("openai chat completion: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("openai chat completion: no choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// Embed generates embedding vectors for the given texts, batching under the
// API's input cap. Output order matches input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
	}
	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if err := waitBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := c.client.Embeddings.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}

		vectors := make([][]float32, 0, len(resp.Data))
		for _, data := range resp.Data {
			vector := make([]float32, len(data.Embedding))
			for i, v := range data.Embedding {
				vector[i] = float32(v)
			}
			vectors = append(vectors, vector)
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func waitBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

var (
	_ llm.Client   = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
