package drafting

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"elopement-response/internal/platform/gemini"
)

// GeminiGenerator completes prompts through the Gemini REST API.
type GeminiGenerator struct {
	client *gemini.Client
	model  string
}

func NewGeminiGenerator(client *gemini.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

func (g *GeminiGenerator) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	req := gemini.Request{
		Contents: []gemini.Content{{Parts: []gemini.Part{{Text: prompt}}}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: systemInstruction}}}
	}

	resp, err := g.client.GenerateContent(ctx, g.model, req)
	if err != nil {
		return "", err
	}
	part, ok := resp.FirstPart()
	if !ok {
		return "", ErrEmptyCompletion
	}
	return part.Text, nil
}

// VertexGenerator completes prompts with a Vertex AI generative model.
type VertexGenerator struct {
	client *genai.Client
	model  string
}

func NewVertexGenerator(ctx context.Context, projectID, region, model string) (*VertexGenerator, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexGenerator: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexGenerator{client: client, model: model}, nil
}

func (g *VertexGenerator) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if systemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemInstruction)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

func (g *VertexGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
