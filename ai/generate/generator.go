// Package generate is the boundary to the generative capability that
// produces fresh candidate actions on the exploration branch.
package generate

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/gridsense/ai/grid"
)

// Generator produces a candidate action for an intent against a state.
// Implementations return an error when no candidate is available; callers
// degrade to suggestion-only behavior, they never abort.
type Generator interface {
	Generate(ctx context.Context, intent string, state grid.State) (string, error)
}

// Config configures the OpenAI-compatible generator.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// RequestsPerSecond bounds generation calls. Zero means 1 rps.
	RequestsPerSecond float64
}

// OpenAIGenerator calls an OpenAI-compatible chat endpoint to synthesize
// one command in the grid command vocabulary.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIGenerator creates a generator for any OpenAI-compatible provider.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

const systemPrompt = `You operate a spreadsheet through exactly one command per reply.
Command forms:
  set <REF> <value>
  formula <REF> <expr>
  format <RANGE> <kind>
  link <REF> <value> <url>
Reply with the single command only, no explanation.`

// Generate asks the model for one command and validates it against the
// typed command grammar before returning it.
func (g *OpenAIGenerator) Generate(ctx context.Context, intent string, state grid.State) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "generation rate limit")
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Current grid:\n" + state.Serialize() + "\n\nIntent: " + intent},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", errors.Wrap(err, "generation request failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty generation response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if _, err := grid.Parse(text); err != nil {
		return "", errors.Wrapf(err, "generated command rejected: %q", text)
	}
	return text, nil
}

// StaticGenerator returns a fixed sequence of candidates. It backs tests and
// offline runs without a configured provider.
type StaticGenerator struct {
	candidates []string
	next       int
}

// NewStaticGenerator creates a generator cycling through candidates.
func NewStaticGenerator(candidates ...string) *StaticGenerator {
	return &StaticGenerator{candidates: candidates}
}

// Generate returns the next candidate, cycling.
func (g *StaticGenerator) Generate(ctx context.Context, intent string, state grid.State) (string, error) {
	if len(g.candidates) == 0 {
		return "", errors.New("no candidates configured")
	}
	c := g.candidates[g.next%len(g.candidates)]
	g.next++
	return c, nil
}
