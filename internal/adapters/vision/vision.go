// Package vision implements the VisionAdapter (spec.md section 6): a
// genai.Client-backed multimodal call that turns a screenshot into a
// DesignSpec (Analyze, used by IterationController) and, separately,
// into the per-dimension scores HybridScorer needs (Score, satisfying
// scoring.VisionScorer). Grounded on the teacher's
// internal/embedding/genai.go client-construction idiom, extended to
// genai's inline-image content parts since the teacher itself only ever
// sends text.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

const defaultModel = "gemini-2.5-flash"

const analyzeSchema = `{
  "type": "object",
  "required": ["current_score", "issues", "recommendations"],
  "properties": {
    "current_score": {"type": "number"},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["dimension", "description", "severity"],
        "properties": {
          "dimension": {"type": "string"},
          "description": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high"]}
        }
      }
    },
    "recommendations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "dimension", "title", "description", "impact", "effort"],
        "properties": {
          "id": {"type": "string"},
          "dimension": {"type": "string"},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "target": {"type": "string"},
          "impact": {"type": "integer"},
          "effort": {"type": "integer"}
        }
      }
    }
  }
}`

const scoreSchema = `{
  "type": "object",
  "required": ["dimension_scores", "dimension_weights", "insights"],
  "properties": {
    "dimension_scores": {"type": "object", "additionalProperties": {"type": "number"}},
    "dimension_weights": {"type": "object", "additionalProperties": {"type": "number"}},
    "insights": {"type": "array", "items": {"type": "string"}}
  }
}`

// Adapter wraps a genai.Client for screenshot-grounded analysis.
type Adapter struct {
	client        *genai.Client
	model         string
	allowedTokens []string
}

// New constructs a VisionAdapter. allowedTokens names the design-system
// tokens recommendations should be constrained to (spec.md section
// 4.12's design-system constraint).
func New(ctx context.Context, apiKey, model string, allowedTokens []string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision: API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("vision: create genai client: %w", err)
	}
	return &Adapter{client: client, model: model, allowedTokens: allowedTokens}, nil
}

// Analyze satisfies the IterationController's VisionAdapter contract:
// analyze(screenshot, memoryContext, projectContext, avoidedComponents) -> DesignSpec.
// avoidedComponents is passed per call (not baked in at construction)
// since MemoryStore's avoid-list grows across iterations.
func (a *Adapter) Analyze(ctx context.Context, screenshot types.Screenshot, memoryContext string, projectContext map[string]string, avoidedComponents []string) (types.DesignSpec, error) {
	prompt := a.buildAnalyzePrompt(memoryContext, projectContext, avoidedComponents)
	text, err := a.generate(ctx, prompt, screenshot, analyzeSchema)
	if err != nil {
		return types.DesignSpec{}, err
	}

	var spec types.DesignSpec
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		return types.DesignSpec{}, fmt.Errorf("vision: malformed analyze response: %w", err)
	}
	spec.ProjectContext = projectContext
	spec.Recommendations = dropAvoided(spec.Recommendations, avoidedComponents)
	return spec, nil
}

// Score satisfies scoring.VisionScorer.
func (a *Adapter) Score(ctx context.Context, screenshot types.Screenshot) (map[types.Dimension]float64, map[types.Dimension]float64, []string, error) {
	prompt := "Score this UI screenshot across the eight VIZTRTR scoring dimensions " +
		"(visual_hierarchy, typography, color_contrast, spacing_layout, component_design, " +
		"animation_motion, accessibility, best_practices), 0-10 each, with a per-dimension weight " +
		"reflecting how much it matters for this screen, and a short list of qualitative insights."

	text, err := a.generate(ctx, prompt, screenshot, scoreSchema)
	if err != nil {
		return nil, nil, nil, err
	}

	var resp struct {
		DimensionScores  map[string]float64 `json:"dimension_scores"`
		DimensionWeights map[string]float64 `json:"dimension_weights"`
		Insights         []string           `json:"insights"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, nil, nil, fmt.Errorf("vision: malformed score response: %w", err)
	}

	scores := make(map[types.Dimension]float64, len(resp.DimensionScores))
	for k, v := range resp.DimensionScores {
		scores[types.Dimension(k)] = v
	}
	weights := make(map[types.Dimension]float64, len(resp.DimensionWeights))
	for k, v := range resp.DimensionWeights {
		weights[types.Dimension(k)] = v
	}
	return scores, weights, resp.Insights, nil
}

func (a *Adapter) buildAnalyzePrompt(memoryContext string, projectContext map[string]string, avoidedComponents []string) string {
	var b strings.Builder
	b.WriteString("Analyze this UI screenshot and propose design improvements.\n\n")
	if memoryContext != "" {
		b.WriteString("Prior iteration memory:\n")
		b.WriteString(memoryContext)
		b.WriteString("\n\n")
	}
	if len(projectContext) > 0 {
		b.WriteString("Project context:\n")
		for k, v := range projectContext {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
		b.WriteString("\n")
	}
	if len(a.allowedTokens) > 0 {
		fmt.Fprintf(&b, "Constrain any suggested design-token values to this allow-list: %s\n", strings.Join(a.allowedTokens, ", "))
	}
	if len(avoidedComponents) > 0 {
		fmt.Fprintf(&b, "Do NOT propose changes targeting these components (previously attempted and rejected): %s\n", strings.Join(avoidedComponents, ", "))
	}
	return b.String()
}

// dropAvoided is a second line of defense against a model that ignores
// the prompt's avoid-list instruction (spec.md: the adapter MUST NOT
// produce recommendations targeting an avoided component).
func dropAvoided(recs []types.Recommendation, avoidedComponents []string) []types.Recommendation {
	if len(avoidedComponents) == 0 {
		return recs
	}
	avoided := make(map[string]bool, len(avoidedComponents))
	for _, c := range avoidedComponents {
		avoided[c] = true
	}
	out := make([]types.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Target != "" && avoided[r.Target] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (a *Adapter) generate(ctx context.Context, prompt string, screenshot types.Screenshot, jsonSchema string) (string, error) {
	log := logging.Get(logging.CategoryVision)
	start := time.Now()

	system := prompt + "\n\nRespond with ONLY a JSON object matching this schema, no prose, no markdown fences:\n" + jsonSchema

	parts := []*genai.Part{
		genai.NewPartFromBytes(screenshot.Data, "image/png"),
		genai.NewPartFromText("Screenshot attached above."),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	latency := time.Since(start)
	if err != nil {
		log.Error("generate failed after %v: %v", latency, err)
		return "", fmt.Errorf("vision: generate content: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("vision: empty response")
	}
	log.Debug("generate: %v", latency)
	return result.Text(), nil
}
