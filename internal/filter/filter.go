// Package filter implements RecommendationFilter (spec.md component C6):
// a deterministic partition of proposed Recommendations into approved and
// rejected sets before any LLM planning or file mutation occurs. Grounded
// on the teacher's internal/campaign plan-gating step (checking a
// proposed action against accumulated history before admitting it to the
// run queue), generalized from campaign-step gating to Recommendation
// gating against MemoryStore.
package filter

import (
	"fmt"
	"sort"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Memory is the subset of memory.Store RecommendationFilter depends on.
type Memory interface {
	WasAttempted(rec types.Recommendation, failingOutcomes ...types.Outcome) (types.AttemptRecord, bool)
	GetAvoidedComponents() []string
}

// Rejection pairs a rejected Recommendation with why it was rejected.
type Rejection struct {
	Recommendation types.Recommendation
	Reason         string
}

// Result is the partition RecommendationFilter produces.
type Result struct {
	Approved []types.Recommendation
	Rejected []Rejection
}

// Filter partitions recommendations deterministically.
type Filter struct {
	memory        Memory
	roiThreshold  float64
}

// New returns a RecommendationFilter backed by mem, rejecting below
// roiThreshold impact/effort.
func New(mem Memory, roiThreshold float64) *Filter {
	return &Filter{memory: mem, roiThreshold: roiThreshold}
}

// NewFromConfig is a convenience constructor reading the ROI threshold out
// of config.MemoryConfig.
func NewFromConfig(mem Memory, cfg config.MemoryConfig) *Filter {
	return New(mem, cfg.ROIThreshold)
}

var failingOutcomes = []types.Outcome{types.OutcomeBrokeBuild, types.OutcomeFailed}

// Apply partitions recs, in their given order, into approved/rejected.
// Each recommendation is checked against exactly three gates, in this
// order, the first matching gate deciding the outcome:
//  1. a past attempt on matching content that broke the build or failed
//  2. the recommendation's target names a component on the avoided list
//  3. the recommendation's ROI (impact/effort) falls below roiThreshold
func (f *Filter) Apply(recs []types.Recommendation) Result {
	avoided := map[string]bool{}
	for _, c := range f.memory.GetAvoidedComponents() {
		avoided[c] = true
	}

	var result Result
	for _, rec := range recs {
		if attempt, found := f.memory.WasAttempted(rec, failingOutcomes...); found {
			result.Rejected = append(result.Rejected, Rejection{
				Recommendation: rec,
				Reason:         fmt.Sprintf("matches a prior attempt that ended %q", attempt.Outcome),
			})
			continue
		}
		if rec.Target != "" && avoided[rec.Target] {
			result.Rejected = append(result.Rejected, Rejection{
				Recommendation: rec,
				Reason:         fmt.Sprintf("target %q is on the avoided-components list", rec.Target),
			})
			continue
		}
		if rec.ROI() < f.roiThreshold {
			result.Rejected = append(result.Rejected, Rejection{
				Recommendation: rec,
				Reason:         fmt.Sprintf("ROI %.2f is below threshold %.2f", rec.ROI(), f.roiThreshold),
			})
			continue
		}
		result.Approved = append(result.Approved, rec)
	}
	return result
}

// SortByROIDescending orders recs by ROI, ties broken by Impact then ID
// so ordering is fully deterministic.
func SortByROIDescending(recs []types.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ROI() != recs[j].ROI() {
			return recs[i].ROI() > recs[j].ROI()
		}
		if recs[i].Impact != recs[j].Impact {
			return recs[i].Impact > recs[j].Impact
		}
		return recs[i].ID < recs[j].ID
	})
}
