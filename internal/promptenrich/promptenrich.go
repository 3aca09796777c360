// Package promptenrich optionally expands a terse image-synthesis prompt
// into a fuller description via a single OpenAI chat completion call,
// ahead of the image-generation fan-out. Failure is never fatal: callers
// fall back to the original prompt.
package promptenrich

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sullysaurus/venues/internal/errkind"
)

// Enricher expands prompts using a default API key, overridable per call.
type Enricher struct {
	defaultAPIKey string
}

func New(defaultAPIKey string) *Enricher {
	return &Enricher{defaultAPIKey: defaultAPIKey}
}

// Enrich resolves the API key (call-supplied > default), asks the model
// to expand prompt, and returns the expanded text. On any failure it
// returns the original prompt unchanged alongside the error, so callers
// can log and continue.
func (e *Enricher) Enrich(ctx context.Context, prompt, apiKeyOverride string) (string, error) {
	apiKey := apiKeyOverride
	if apiKey == "" {
		apiKey = e.defaultAPIKey
	}
	if apiKey == "" {
		return prompt, errkind.New(errkind.NonRetryable, "prompt_enrich", "no OpenAI API key configured", nil)
	}

	client := openai.NewClient(apiKey)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       openai.GPT4o,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Expand this seat-view image prompt with vivid, concrete visual detail in two sentences, keeping the original intent: " + prompt,
			},
		},
	})
	if err != nil {
		return prompt, errkind.New(errkind.Transient, "prompt_enrich", "openai completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return prompt, errkind.New(errkind.NonRetryable, "prompt_enrich", "openai returned no choices", nil)
	}

	expanded := strings.TrimSpace(resp.Choices[0].Message.Content)
	if expanded == "" {
		return prompt, errkind.New(errkind.NonRetryable, "prompt_enrich", "openai returned empty content", nil)
	}

	log.Debug().Str("original", prompt).Str("expanded", expanded).Msg("enriched image prompt")
	return expanded, nil
}
