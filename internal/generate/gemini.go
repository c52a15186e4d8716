package generate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"replygate/internal/config"
)

// Gemini drafts replies through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewGemini(ctx context.Context, cfg config.Generator, log *zap.Logger) (*Gemini, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("generator API key is required (set GEMINI_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, log: log}, nil
}

// Draft asks the model for one reply. The completion is trimmed and
// unwrapped but otherwise untouched; the gates decide whether it posts.
func (g *Gemini) Draft(ctx context.Context, req Request) (string, error) {
	system, user := BuildPrompt(req)
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.8),
			MaxOutputTokens:   200,
		})
	if err != nil {
		return "", fmt.Errorf("generate draft: %w", err)
	}
	text := StripWrapping(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty draft")
	}
	g.log.Debug("draft generated",
		zap.String("model", g.model),
		zap.Int("chars", len([]rune(text))),
		zap.Int("guidance_lines", len(req.Guidance)))
	return text, nil
}

// Close releases the underlying API client. genai.Client exposes no
// Close of its own, so there is nothing to release.
func (g *Gemini) Close() error {
	return nil
}
