// Package llm talks to an OpenAI-compatible endpoint (Ollama in the
// default deployment) for chat completions and embeddings.
package llm

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"sorter_server/core/port/out"
	"sorter_server/pkg/logger"
)

type Client struct {
	client       *openai.Client
	chatModel    string
	resolveModel func(context.Context) string
	embedModel   string
	maxTokens    int
	temperature  float32
	timeout      time.Duration
	cb           *gobreaker.CircuitBreaker
	log          *logger.Logger
}

type ClientConfig struct {
	BaseURL   string
	APIKey    string
	ChatModel string
	// ModelResolver, when set, picks the chat model per request so a
	// runtime override takes effect without a restart. Empty results
	// fall back to ChatModel.
	ModelResolver func(context.Context) string
	EmbedModel    string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}

	cbSettings := gobreaker.Settings{
		Name:     "llm-api",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	}

	return &Client{
		client:       openai.NewClientWithConfig(oaCfg),
		chatModel:    cfg.ChatModel,
		resolveModel: cfg.ModelResolver,
		embedModel:   cfg.EmbedModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  float32(cfg.Temperature),
		timeout:      cfg.Timeout,
		cb:           gobreaker.NewCircuitBreaker(cbSettings),
		log:          logger.WithField("component", "llm_client"),
	}
}

var _ out.ChatStreamer = (*Client)(nil)
var _ out.Embedder = (*Client)(nil)

// StreamChat sends one user prompt and forwards every delta to fn.
func (c *Client) StreamChat(ctx context.Context, prompt string, fn func(out.ChatChunk) error) error {
	_, err := c.cb.Execute(func() (any, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		stream, err := c.client.CreateChatCompletionStream(ctx, c.chatRequest(ctx, prompt))
		if err != nil {
			return nil, err
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if err := fn(out.ChatChunk{Text: delta}); err != nil {
				return nil, err
			}
		}
	})
	return err
}

// Embed returns the embedding vector for one prompt.
func (c *Client) Embed(ctx context.Context, prompt string) ([]float64, error) {
	result, err := c.cb.Execute(func() (any, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		resp, err := c.client.CreateEmbeddings(ctx, c.embeddingRequest(prompt))
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return []float64(nil), nil
		}
		embedding := make([]float64, len(resp.Data[0].Embedding))
		for i, v := range resp.Data[0].Embedding {
			embedding[i] = float64(v)
		}
		return embedding, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

func (c *Client) chatRequest(ctx context.Context, prompt string) openai.ChatCompletionRequest {
	model := c.chatModel
	if c.resolveModel != nil {
		if resolved := c.resolveModel(ctx); resolved != "" {
			model = resolved
		}
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	}
}

func (c *Client) embeddingRequest(prompt string) openai.EmbeddingRequest {
	return openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{prompt},
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
