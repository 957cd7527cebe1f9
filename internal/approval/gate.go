// Package approval implements ApprovalGate (spec.md component C7):
// risk/cost assessment and policy-driven human-in-the-loop gating before
// an approved Recommendation set reaches the Orchestrator. Grounded on
// the teacher's internal/campaign human-checkpoint step (assess, then
// consult an external decision source, then branch on its answer),
// generalized from a single yes/no checkpoint to a policy-dispatched one.
package approval

import (
	"context"
	"errors"
	"time"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Source is ApprovalSource (spec.md section 6): the external decision
// point, interactive or programmatic.
type Source interface {
	Request(ctx context.Context, recs []types.Recommendation, risk float64, costCents int) (approved []types.Recommendation, skipIteration bool, err error)
}

// highImpactThreshold is the Impact value (on the 1-10 scale) at or above
// which a Recommendation is treated as "high-impact" for risk purposes.
const highImpactThreshold = 8

// centsPerRecommendation estimates per-recommendation LLM API cost for the
// discovery + execution round trip. spec.md leaves the exact cost model
// unspecified (Open Question, resolved in DESIGN.md); this is a coarse
// flat estimate, not a priced API call.
const centsPerRecommendation = 3

// Gate assesses risk/cost and dispatches to Source per config.ApprovalPolicy.
type Gate struct {
	source Source
	cfg    config.ApprovalConfig
}

// New returns an ApprovalGate.
func New(source Source, cfg config.ApprovalConfig) *Gate {
	return &Gate{source: source, cfg: cfg}
}

// Decision is the outcome of one Decide call.
type Decision struct {
	Approved      []types.Recommendation
	SkipIteration bool
	Risk          float64
	CostCents     int
}

// Decide assesses recs and, if the configured policy requires it,
// consults Source with a bounded timeout. A timeout is treated as a full
// rejection (approved: nil, skipIteration: true), matching spec.md's
// approval-rejection short-circuit.
func (g *Gate) Decide(ctx context.Context, iteration int, recs []types.Recommendation) Decision {
	risk, cost, highImpact := assess(recs)
	log := logging.Get(logging.CategoryApproval)

	if !g.requiresApproval(iteration, risk, highImpact) {
		log.Info("policy %q auto-approves %d recommendation(s), risk=%.2f cost=%dc", g.cfg.Policy, len(recs), risk, cost)
		return Decision{Approved: recs, Risk: risk, CostCents: cost}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(g.cfg))
	defer cancel()

	approved, skip, err := g.source.Request(reqCtx, recs, risk, cost)
	if err != nil || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		log.Warn("approval request rejected (timeout or error: %v)", err)
		return Decision{SkipIteration: true, Risk: risk, CostCents: cost}
	}

	log.Info("approval decision: %d of %d approved, skip=%v", len(approved), len(recs), skip)
	return Decision{Approved: approved, SkipIteration: skip, Risk: risk, CostCents: cost}
}

func (g *Gate) requiresApproval(iteration int, risk float64, highImpact bool) bool {
	switch g.cfg.Policy {
	case config.ApprovalAlways:
		return true
	case config.ApprovalNever:
		return false
	case config.ApprovalFirstIteration:
		return iteration <= 1
	case config.ApprovalHighRisk:
		return highImpact || risk >= g.cfg.RiskThreshold
	default:
		return true
	}
}

func assess(recs []types.Recommendation) (risk float64, costCents int, highImpact bool) {
	if len(recs) == 0 {
		return 0, 0, false
	}
	var total float64
	for _, r := range recs {
		total += float64(r.Impact * r.Effort)
		if r.Impact >= highImpactThreshold {
			highImpact = true
		}
	}
	risk = total / float64(len(recs))
	costCents = len(recs) * centsPerRecommendation
	return risk, costCents, highImpact
}

func timeoutOrDefault(cfg config.ApprovalConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}
