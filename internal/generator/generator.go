package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashish9731/email-responder/internal/types"
)

// Facts is what the generator knows about a case when drafting
type Facts struct {
	Subject    string
	Keywords   []string
	Body       string
	CaseNumber string
	Sender     string
}

// Generator drafts case texts. Drafts are never empty and never fail:
// any backend problem yields the deterministic fallback text.
type Generator interface {
	DraftChecklist(ctx context.Context, facts Facts) string
	DraftReply(ctx context.Context, facts Facts) string
	DraftFollowUp(ctx context.Context, facts Facts) string
	Name() string
}

// New creates the generator configured under generator.provider. An openai
// provider without an API key degrades to the fallback generator.
func New(cfg *types.Config, logger *slog.Logger) (Generator, error) {
	g := cfg.Generator
	switch g.Provider {
	case "fallback":
		return Fallback{}, nil
	case "", "openai":
		if g.APIKey == "" {
			logger.Warn("generator api_key not set, using fallback texts")
			return Fallback{}, nil
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:     g.APIKey,
			BaseURL:    g.BaseURL,
			Model:      g.Model,
			Timeout:    time.Duration(g.Timeout) * time.Second,
			MaxRetries: g.MaxRetries,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", g.Provider)
	}
}
