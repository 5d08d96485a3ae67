package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/qacraft/testplanbot/internal/models"
)

// Default Bedrock invocation parameters.
const (
	DefaultBedrockModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultBedrockRegion  = "us-west-2"

	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 4096
	contentTypeJSON  = "application/json"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// BedrockClient invokes an Anthropic model on the Bedrock runtime. A fresh
// runtime client is built per invocation because the credentials are scoped
// to a single plan generation run.
type BedrockClient struct {
	ModelID string
	Region  string
}

// NewBedrockClient creates a Bedrock client for the given model id and region.
// Empty values fall back to the defaults.
func NewBedrockClient(modelID, region string) *BedrockClient {
	if modelID == "" {
		modelID = DefaultBedrockModelID
	}
	if region == "" {
		region = DefaultBedrockRegion
	}
	return &BedrockClient{ModelID: modelID, Region: region}
}

// Invoke sends the prompt to the model and returns its raw text reply.
func (c *BedrockClient) Invoke(ctx context.Context, prompt string, creds models.SessionCredentials) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build Bedrock configuration: %w", err)
	}
	runtime := bedrockruntime.NewFromConfig(cfg)

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	slog.Debug("BedrockClient.Invoke: invoking model", "modelID", c.ModelID, "promptLength", len(prompt))
	out, err := runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.ModelID),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		slog.Error("BedrockClient.Invoke: model invocation failed", "error", err, "modelID", c.ModelID)
		return "", fmt.Errorf("failed to invoke model %s: %w", c.ModelID, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("model %s returned empty content", c.ModelID)
	}
	return resp.Content[0].Text, nil
}
