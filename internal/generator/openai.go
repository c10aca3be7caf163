package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/ashish9731/email-responder/internal/metrics"
)

var errEmptyCompletion = errors.New("empty completion")

// OpenAIConfig configures the chat-completions backend
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RetryInterval is the first backoff wait; zero means 500ms
	RetryInterval time.Duration
}

// OpenAI drafts texts with the OpenAI chat-completions API
type OpenAI struct {
	client *resty.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAI creates the OpenAI generator
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &OpenAI{client: c, cfg: cfg, logger: logger}
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) DraftChecklist(ctx context.Context, facts Facts) string {
	return o.draft(ctx, checklistPrompt(facts), FallbackChecklist(facts.CaseNumber), facts.CaseNumber)
}

func (o *OpenAI) DraftReply(ctx context.Context, facts Facts) string {
	return o.draft(ctx, replyPrompt(facts), FallbackReply(facts.CaseNumber), facts.CaseNumber)
}

func (o *OpenAI) DraftFollowUp(ctx context.Context, facts Facts) string {
	return o.draft(ctx, followUpPrompt(facts), FallbackFollowUp(facts.CaseNumber), facts.CaseNumber)
}

func (o *OpenAI) draft(ctx context.Context, p prompt, fallback, caseNumber string) string {
	text, err := o.complete(ctx, p)
	if err != nil {
		o.logger.Warn("generation failed, using fallback text",
			"kind", p.kind,
			"case_number", caseNumber,
			"error", err)
		metrics.GenerationFallbacks.WithLabelValues(p.kind).Inc()
		return fallback
	}
	return text
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete runs one chat completion. 429 and 5xx answers and transport errors
// are retried with exponential backoff inside the configured timeout.
func (o *OpenAI) complete(ctx context.Context, p prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	req := chatRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.system},
			{Role: "user", Content: p.user},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	var text string
	op := func() error {
		var result chatResponse
		resp, err := o.client.R().
			SetContext(ctx).
			SetBody(&req).
			SetResult(&result).
			Post("/chat/completions")
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("openai request: %w", err)
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests || code >= 500:
			return fmt.Errorf("openai status %d", code)
		case resp.IsError():
			return backoff.Permanent(fmt.Errorf("openai status %d: %s", code, resp.String()))
		}

		if len(result.Choices) == 0 {
			return backoff.Permanent(errEmptyCompletion)
		}
		text = strings.TrimSpace(result.Choices[0].Message.Content)
		if text == "" {
			return backoff.Permanent(errEmptyCompletion)
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.cfg.RetryInterval
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := o.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		o.logger.Debug("retrying completion", "kind", p.kind, "wait", wait, "error", err)
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
