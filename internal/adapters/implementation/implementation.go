// Package implementation implements the ImplementationAdapter (spec.md
// section 6): a genai.Client-backed CompleteWithSchema call shared by
// DiscoveryAgent (discovery.PlanGenerator) and ReflectionAgent
// (reflection.Reasoner) — both want the identical "give me back JSON
// matching this schema" shape, so one concrete adapter satisfies both
// interfaces structurally. Grounded on the teacher's
// internal/embedding/genai.go client-construction idiom (genai.NewClient
// with a ClientConfig, not the teacher's own hand-rolled HTTP Gemini
// client in internal/perception, which talks to a preview model API
// surface this SDK doesn't expose — see DESIGN.md).
package implementation

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/viztrtr/viztrtr-core/internal/logging"
)

const defaultModel = "gemini-2.5-flash"

// Adapter wraps a genai.Client configured for schema-constrained text
// completion.
type Adapter struct {
	client *genai.Client
	model  string
}

// New constructs an Adapter. apiKey must be non-empty; model defaults to
// defaultModel when empty.
func New(ctx context.Context, apiKey, model string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("implementation: API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("implementation: create genai client: %w", err)
	}
	return &Adapter{client: client, model: model}, nil
}

// CompleteWithSchema satisfies both discovery.PlanGenerator and
// reflection.Reasoner. jsonSchema is appended to the system prompt as an
// explicit contract; the call is additionally put in JSON response mode
// so the SDK rejects prose wrapping the object. The genai SDK's
// typed ResponseSchema field takes a *genai.Schema struct, not a raw
// JSON Schema document, so constraining via the prompt plus JSON mode is
// the adapter's enforcement layer; callers still validate the returned
// JSON against their own Go structs.
func (a *Adapter) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error) {
	log := logging.Get(logging.CategoryVision)
	start := time.Now()

	fullSystem := systemPrompt + "\n\nRespond with ONLY a JSON object matching this schema, no prose, no markdown fences:\n" + jsonSchema

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(fullSystem, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	latency := time.Since(start)
	if err != nil {
		log.Error("CompleteWithSchema: generate failed after %v: %v", latency, err)
		return "", fmt.Errorf("implementation: generate content: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("implementation: empty response")
	}

	text := result.Text()
	log.Debug("CompleteWithSchema: %d chars in %v", len(text), latency)
	return text, nil
}
