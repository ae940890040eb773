package generate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"sqlpilot/internal/config"
	"sqlpilot/internal/db"
	"sqlpilot/internal/schema"
)

// Gemini generates SQL through the Gemini API.
type Gemini struct {
	client  *genai.Client
	cfg     config.GeneratorConfig
	dialect db.Dialect
}

// NewGemini builds a Gemini generator from the generator config section. The
// API key comes from the config or its configured environment variable.
func NewGemini(ctx context.Context, cfg config.GeneratorConfig, dialect db.Dialect) (*Gemini, error) {
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return nil, errors.Errorf("generator API key missing: set %s or generator.api_key", cfg.APIKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return &Gemini{client: client, cfg: cfg, dialect: dialect}, nil
}

// Generate produces one candidate query. Each call is independent: the whole
// correction signal travels in directive, never in client-side chat state.
func (g *Gemini) Generate(ctx context.Context, question string, snap *schema.Snapshot, directive string) (string, error) {
	prompt := BuildPrompt(question, snap, directive, g.dialect)
	gctx, cancel := context.WithTimeout(ctx, time.Duration(g.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(gctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.cfg.Temperature)),
		MaxOutputTokens: int32(g.cfg.MaxOutputTokens),
	})
	if err != nil {
		return "", errors.Wrap(err, "generate sql")
	}
	sql := ExtractSQL(resp.Text())
	if sql == "" {
		return "", errors.New("generator returned empty response")
	}
	return sql, nil
}
