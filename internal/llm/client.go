package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/pkg/circuitbreaker"
	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
	"github.com/docchat/backend/pkg/retry"
)

const systemPrompt = `You are an assistant that answers questions about documents uploaded by a public administration team (spreadsheets, reports, minutes).

Rules:
1. Answer ONLY from the provided context blocks. If the context does not contain the answer, say so plainly.
2. When you use a block, cite its source file and period.
3. Tabular blocks are rows separated by " ; " with a header line; read values by column.
4. Answer in the same language as the question. Be concise.`

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(cfg config.LLMConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		ShouldRetry:    isTransient,
		Logger:         logger.GetLogger(),
		Operation:      "llm_stream_open",
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	logger.Info("LLM client initialized", zap.String("model", cfg.Model), zap.String("base_url", clientConfig.BaseURL))

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// StreamAnswer asks the model to answer question from contextBlock and hands
// every content fragment to onDelta as it arrives. An error from onDelta
// stops the stream and is returned.
func (c *Client) StreamAnswer(ctx context.Context, question, contextBlock string, onDelta func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)},
		},
		Temperature:   c.temperature,
		MaxTokens:     c.maxTokens,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	var stream *openai.ChatCompletionStream
	err := c.cb.Execute(func() error {
		var err error
		stream, err = retry.DoWithResult(ctx, c.retryConfig, func() (*openai.ChatCompletionStream, error) {
			return c.client.CreateChatCompletionStream(ctx, req)
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	fragments := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("completion stream interrupted: %w", err)
		}

		if resp.Usage != nil {
			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			fragments++
			if err := onDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
	}

	logger.Debug("Completion stream finished", zap.Int("fragments", fragments))
	return nil
}

// isTransient retries rate limiting, server errors and transport failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
