package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/errs"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// PlanGenerator is the minimal contract DiscoveryAgent needs from an
// implementation adapter: a schema-constrained completion call, mirroring
// the teacher's GeminiClient.CompleteWithSchema signature directly so the
// concrete google.golang.org/genai-backed adapter can satisfy this
// interface without DiscoveryAgent importing it.
type PlanGenerator interface {
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error)
}

// Agent implements DiscoveryAgent (spec.md component C4): phase-1 of the
// edit pipeline, turning a Recommendation into a ChangePlan without
// touching the filesystem for anything but reads.
type Agent struct {
	projectRoot string
	model       PlanGenerator
	discovery   config.FileDiscoveryConfig
}

// New returns a DiscoveryAgent rooted at projectRoot.
func New(projectRoot string, model PlanGenerator, discoveryCfg config.FileDiscoveryConfig) *Agent {
	return &Agent{projectRoot: projectRoot, model: model, discovery: discoveryCfg}
}

const toolDescriptions = `Available MicroEditToolkit operations (params shown as required keys):
- updateClassName: params {old, new} — replaces the entire value of a class attribute on one line.
- appendToClassName: params {classes} — appends tokens to an existing class attribute value on one line.
- updateStyleValue: params {property, value} — rewrites a single CSS/inline-style property on one line.
- updateTextContent: params {old, new} — replaces a text span on one line.`

const planSchema = `{
  "type": "object",
  "properties": {
    "changes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "filePath": {"type": "string"},
          "line": {"type": "integer"},
          "tool": {"type": "string", "enum": ["updateClassName", "appendToClassName", "updateStyleValue", "updateTextContent"]},
          "expectedLineContent": {"type": "string"},
          "params": {"type": "object"}
        },
        "required": ["filePath", "line", "tool", "expectedLineContent", "params"]
      }
    }
  },
  "required": ["changes"]
}`

type planResponse struct {
	Changes []struct {
		FilePath            string         `json:"filePath"`
		Line                int            `json:"line"`
		Tool                string         `json:"tool"`
		ExpectedLineContent string         `json:"expectedLineContent"`
		Params              map[string]any `json:"params"`
	} `json:"changes"`
}

var validTools = map[string]types.ToolName{
	string(types.ToolUpdateClassName):   types.ToolUpdateClassName,
	string(types.ToolAppendToClassName):  types.ToolAppendToClassName,
	string(types.ToolUpdateStyleValue):   types.ToolUpdateStyleValue,
	string(types.ToolUpdateTextContent):  types.ToolUpdateTextContent,
}

// Discover reads candidates bounded by the configured size cap, consults
// the PlanGenerator, and returns a ChangePlan whose PlannedChanges are all
// verified to target files within candidates and to name exposed tools.
func (a *Agent) Discover(ctx context.Context, rec types.Recommendation, candidates []CandidateFile) (types.ChangePlan, error) {
	if len(candidates) == 0 {
		return types.ChangePlan{}, errs.New(errs.NoCandidateFiles, "no candidate files supplied for recommendation "+rec.ID)
	}

	candidateSet := map[string]bool{}
	var listing strings.Builder
	excerpts := map[string]string{}
	for _, c := range candidates {
		candidateSet[c.Path] = true
		fmt.Fprintf(&listing, "%s (%s, %d bytes)\n", c.Path, c.Dir, c.Size)

		abs := a.projectRoot + "/" + c.Path
		content, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		if a.discovery.MaxFileSize > 0 && len(content) > a.discovery.MaxFileSize {
			continue
		}
		excerpts[c.Path] = numberedExcerpt(string(content))
	}

	var excerptBlock strings.Builder
	for path, excerpt := range excerpts {
		fmt.Fprintf(&excerptBlock, "=== %s ===\n%s\n", path, excerpt)
	}

	systemPrompt := "You are the discovery phase of a UI-improvement pipeline. You locate exact single-line edit sites; you never propose multi-line rewrites.\n" + toolDescriptions
	userPrompt := fmt.Sprintf(
		"Recommendation: %s\nDimension: %s\nDescription: %s\nCode hint: %s\n\nCandidate files:\n%s\nFile excerpts (1-based line numbers):\n%s",
		rec.Title, rec.Dimension, rec.Description, rec.CodeHint, listing.String(), excerptBlock.String(),
	)

	raw, err := a.model.CompleteWithSchema(ctx, systemPrompt, userPrompt, planSchema)
	if err != nil {
		return types.ChangePlan{}, errs.Wrap(errs.ModelError, "discovery plan request failed", err)
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return types.ChangePlan{}, errs.Wrap(errs.PlanMalformed, "discovery response was not valid JSON", err)
	}

	plan := types.ChangePlan{RecommendationID: rec.ID}
	for _, c := range parsed.Changes {
		if !candidateSet[c.FilePath] {
			return types.ChangePlan{}, errs.New(errs.PlanMalformed, "planned change targets a file outside the candidate set: "+c.FilePath)
		}
		tool, ok := validTools[c.Tool]
		if !ok {
			return types.ChangePlan{}, errs.New(errs.PlanMalformed, "planned change names an unexposed tool: "+c.Tool)
		}
		if c.Line <= 0 {
			return types.ChangePlan{}, errs.New(errs.PlanMalformed, fmt.Sprintf("planned change for %s has a non-positive line number", c.FilePath))
		}
		plan.Changes = append(plan.Changes, types.PlannedChange{
			FilePath:            c.FilePath,
			Line:                c.Line,
			Tool:                tool,
			ExpectedLineContent: c.ExpectedLineContent,
			Params:              c.Params,
		})
	}

	if len(plan.Changes) == 0 {
		return types.ChangePlan{}, errs.New(errs.PlanMalformed, "discovery returned an empty change plan")
	}

	logging.Get(logging.CategoryDiscovery).Info("discovered plan for %s: %d change(s)", rec.ID, len(plan.Changes))
	return plan, nil
}

func numberedExcerpt(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%4d| %s\n", i+1, line)
	}
	return b.String()
}
