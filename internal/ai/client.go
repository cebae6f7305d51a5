// Package ai wraps the OpenAI API behind the two provider contracts the
// pipeline consumes: embeddings and structured reasoning.
//
// Both kinds of call share one semaphore so the whole pipeline applies
// backpressure to the provider instead of fanning out unboundedly; rate
// limit responses (429) are retried with exponential backoff.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	defaultTimeout = 60 * time.Second

	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 32 * time.Second
)

var (
	// ErrAPIKeyNotSet is returned when no OpenAI API key is configured.
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

	// ErrInvalidResponse is returned when the model output does not
	// parse into the expected structure.
	ErrInvalidResponse = errors.New("invalid model response")

	// ErrMaxRetriesExceeded is returned after exhausting rate-limit retries.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client is the OpenAI-backed provider implementation.
type Client struct {
	client         openai.Client
	llmModel       string
	embeddingModel string
	dimension      int
	timeout        time.Duration
	sem            chan struct{}
}

// NewClient builds a Client. concurrency bounds the number of in-flight
// API calls across the whole process.
func NewClient(apiKey, llmModel, embeddingModel string, dimension, concurrency int) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return &Client{
		client:         openai.NewClient(option.WithAPIKey(apiKey)),
		llmModel:       llmModel,
		embeddingModel: embeddingModel,
		dimension:      dimension,
		timeout:        defaultTimeout,
		sem:            make(chan struct{}, concurrency),
	}, nil
}

// acquire takes a semaphore slot, honouring context cancellation.
func (c *Client) acquire(ctx context.Context) (release func(), err error) {
	select {
	case c.sem <- struct{}{}:
		return func() { <-c.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Embed generates the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embeddings call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// CompleteJSON runs a chat completion constrained to a JSON object
// response, unmarshalling the content into out. Rate-limit errors are
// retried with exponential backoff; any other failure is returned as-is.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, out any) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.llmModel),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0.2),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return fmt.Errorf("completion call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return fmt.Errorf("%w: no completion choices returned", ErrInvalidResponse)
		}

		content := completion.Choices[0].Message.Content
		if err := json.Unmarshal([]byte(content), out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
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
