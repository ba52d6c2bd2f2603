package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLLMClient implements LLMClient using Google's Gemini API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create gemini client: %w", err)
	}

	return &GeminiLLMClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends a completion request to Gemini and returns the response.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := req.Model
	if strings.TrimSpace(modelID) == "" {
		modelID = c.modelID
	}
	model := c.client.GenerativeModel(modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("agent: gemini requires at least one message")
	}

	cs := model.StartChat()

	// All but the final message become chat history.
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == ChatRoleSystem {
			continue
		}

		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}

		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	lastMsg := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(lastMsg.Content))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("agent: gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("agent: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("agent: gemini returned empty content")
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(responseText.String()),
		StopReason: string(candidate.FinishReason),
	}

	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}

	return result, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
