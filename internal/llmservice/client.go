package llmservice

import (
	"context"
	"strings"

	"document-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

// LangchainGateway adapts any langchaingo model to Gateway
type LangchainGateway struct {
	llm llms.Model
}

func NewLangchainGateway(llm llms.Model) *LangchainGateway {
	return &LangchainGateway{llm: llm}
}

func (g *LangchainGateway) Generate(ctx context.Context, prompt string) (string, error) {
	log.Debug().Int("prompt_len", len(prompt)).Msg("Generating content")
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", &APIError{Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return models.NoResponseMessage, nil
	}
	return out, nil
}
