// Package extraction turns a compacted product page into a raw attribute
// object through an OpenAI-compatible chat endpoint.
package extraction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"catalogprj/internal/crawler"
	"catalogprj/internal/model"
	"catalogprj/internal/observability"
)

// ChatAPI is the part of *openai.Client the extractor needs.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient points go-openai at any OpenAI-compatible base URL.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

type Options struct {
	Model          string
	Temperature    float32
	RequestTimeout time.Duration
	MaxRetries     int
	Backoff        Backoff
}

type Client struct {
	api   ChatAPI
	pacer *Pacer
	opts  Options
	log   zerolog.Logger

	sleep  func(context.Context, time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration
}

func NewClient(api ChatAPI, pacer *Pacer, opts Options, log zerolog.Logger) *Client {
	return &Client{api: api, pacer: pacer, opts: opts, log: log, sleep: sleepContext, jitter: uniformJitter}
}

// Extract asks the model for the attribute object of one product. 429s are
// retried with exponential backoff; a 413 returns ErrPayloadTooLarge at once
// and every other failure is final for the record.
func (c *Client) Extract(ctx context.Context, rec model.InputRecord, payload crawler.Payload) (model.Extraction, error) {
	prompt, err := BuildPrompt(rec, payload)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	r := NewRetry(c.opts.MaxRetries, c.opts.Backoff)
	r.jitter = c.jitter
	for {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		reply, err := c.call(ctx, req)
		if err == nil {
			r.Succeed()
			observability.ModelCallsTotal.WithLabelValues("ok").Inc()
			return ParseReply(reply)
		}

		code := httpStatus(err)
		switch code {
		case http.StatusTooManyRequests:
			observability.ModelCallsTotal.WithLabelValues("rate_limited").Inc()
			if r.Fail() == Exhausted {
				c.log.Error().Str("sku", rec.SKU).Msgf("[RATE_LIMITED] attempt=%d/%d giving up", r.Attempt, r.Max)
				return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, r.Attempt)
			}
			c.log.Warn().Str("sku", rec.SKU).Msgf("[RATE_LIMITED] attempt=%d/%d sleeping=%.2fs", r.Attempt, r.Max, r.Delay.Seconds())
			observability.RateLimitBackoff.Observe(r.Delay.Seconds())
			if err := c.sleep(ctx, r.Delay); err != nil {
				return nil, err
			}
			r.Next()
		case http.StatusRequestEntityTooLarge:
			observability.ModelCallsTotal.WithLabelValues("too_large").Inc()
			return nil, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
		case 0:
			observability.ModelCallsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("model call: %w", err)
		default:
			observability.ModelCallsTotal.WithLabelValues("error").Inc()
			return nil, &StatusError{Code: code, Err: err}
		}
	}
}

func (c *Client) call(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrMalformedOutput)
	}
	return resp.Choices[0].Message.Content, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
