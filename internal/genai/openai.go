package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/qacraft/testplanbot/internal/models"
)

// OpenAIClient invokes an OpenAI chat model. Session credentials are ignored;
// the client authenticates with its own API key.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIClient initializes the OpenAI backend with the given API key.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Invoke sends the prompt to the model and returns its raw text reply.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string, _ models.SessionCredentials) (string, error) {
	slog.Debug("OpenAIClient.Invoke: invoking model", "model", c.model, "promptLength", len(prompt))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		slog.Error("OpenAIClient.Invoke: model invocation failed", "error", err, "model", c.model)
		return "", fmt.Errorf("failed to invoke model %s: %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}
