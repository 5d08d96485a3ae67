// Package genai provides hosted language model invocation for test case
// generation. Bedrock is the primary backend; an OpenAI backend can be
// selected via configuration.
package genai

import (
	"context"

	"github.com/qacraft/testplanbot/internal/models"
)

// ClientInterface defines model invocation for test case generation.
// Implementations receive the short-lived credentials issued for the current
// plan generation run; backends with their own authentication ignore them.
type ClientInterface interface {
	Invoke(ctx context.Context, prompt string, creds models.SessionCredentials) (string, error)
}
