package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You are a friendly support assistant answering on behalf of a help desk.
Answer briefly and concretely. If the user's request needs a human (refunds,
account changes, complaints), tell them they can reach a live agent by
sending the word 'agent'.`

type GPTResponder struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTResponder(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTResponder {
	return &GPTResponder{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (r *GPTResponder) Respond(ctx context.Context, userName, text string) (string, error) {
	resp, err := r.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf("%s says: %s", userName, text),
				},
			},
			MaxTokens:   r.maxTokens,
			Temperature: float32(r.temperature),
		},
	)
	if err != nil {
		r.logger.Error("Failed to get GPT response", zap.Error(err))
		return "", fmt.Errorf("failed to get GPT response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty GPT response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
