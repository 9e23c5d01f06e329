package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/podiumhq/podium/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// GenerativeScorer asks a chat-completion model for a structured score
// payload. Output is constrained to a JSON object and validated against
// the result schema; anything malformed is a miss.
type GenerativeScorer struct {
	client *openai.Client
	model  string
}

func NewGenerativeScorer(apiKey, model, baseURL string) *GenerativeScorer {
	s := &GenerativeScorer{model: model}
	if apiKey == "" {
		return s
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	s.client = openai.NewClientWithConfig(cfg)
	return s
}

func (s *GenerativeScorer) Name() string { return "generative" }

const generativeSystemPrompt = `You are a debate judge. Score each participant's full argument set on four axes, each an integer from 0 to 100: coherence, evidence, logic, persuasiveness. Respond with a single JSON object of the form {"scores": {"<participant_id>": {"coherence": n, "evidence": n, "logic": n, "persuasiveness": n}}, "winner": "<participant_id>"} and nothing else.`

func (s *GenerativeScorer) AttemptScore(ctx context.Context, t *Transcript) (*models.Result, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: generative scorer not configured", ErrMiss)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generativeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(t)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion choices", ErrMiss)
	}

	var payload remoteResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("%w: unstructured completion: %v", ErrMiss, err)
	}
	return resultFromPayload(t, payload.Scores, payload.Winner, models.SourceGenerative)
}

func buildPrompt(t *Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Debate topic: %s\n\n", t.Topic)
	for _, pt := range t.Participants {
		fmt.Fprintf(&b, "Participant %s (%d arguments):\n", pt.ParticipantID, pt.ArgumentCount())
		for i, arg := range pt.Arguments {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, arg)
		}
		b.WriteString("\n")
	}
	return b.String()
}
