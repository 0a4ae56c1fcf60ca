package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider streams replies from the Google Gemini API.
type GeminiProvider struct {
	apiKey string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// geminiRole maps a conversation role onto the SDK's named Role type;
// Gemini calls the assistant side "model".
func geminiRole(role string) genai.Role {
	if role == RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// Stream generates a reply over the Gemini streaming API.
func (p *GeminiProvider) Stream(ctx context.Context, req Request, onDelta func(text string)) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		contents = append(contents, genai.NewContentFromText(msg.Text, geminiRole(msg.Role)))
	}

	for resp, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, nil) {
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}
		if text := resp.Text(); text != "" {
			onDelta(text)
		}
	}

	return nil
}
