// Package orchestrator implements Orchestrator/Router (spec.md component
// C8): routes an approved Recommendation list to registered specialists
// and runs each specialist's Discovery -> Validate -> Execute pipeline,
// dispatching distinct recommendations concurrently up to a bounded cap.
// Grounded on the teacher's internal/core dispatch-by-predicate routing
// (matching a Fact against registered handlers by score, falling back to
// a default) combined with internal/tactile's bounded-concurrency runner
// (golang.org/x/sync/errgroup + semaphore over independent steps).
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/viztrtr/viztrtr-core/internal/discovery"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// DiscoveryAgent is the subset of discovery.Agent a Specialist needs.
type DiscoveryAgent interface {
	Discover(ctx context.Context, rec types.Recommendation, candidates []discovery.CandidateFile) (types.ChangePlan, error)
}

// ExecutionAgent is the subset of execution.Agent a Specialist needs.
type ExecutionAgent interface {
	Execute(plan types.ChangePlan) types.ExecutionReport
}

// Validator is the subset of validator.Validator a Specialist needs. It
// validates one planned change against the project file it targets.
type Validator interface {
	Validate(path, original, modified string, effort int, impactHigh bool) (types.ValidationResult, error)
}

// FileReader reads a project-relative file's current content, used to
// build the before/after pair CheckInterfaceCompatibility and friends
// compare.
type FileReader interface {
	ReadFile(relPath string) (string, error)
}

// Specialist is a registered implementor restricted to a declared domain.
type Specialist struct {
	Name      string
	Domain    string
	Predicate func(types.Recommendation) float64 // 0 = no match
	Discovery DiscoveryAgent
	Execution ExecutionAgent
}

// Router dispatches recommendations to specialists.
type Router struct {
	specialists       []Specialist
	defaultSpecialist string
	validator         Validator
	files             FileReader
	candidates        []discovery.CandidateFile
	concurrencyCap    int
}

// New returns a Router. defaultSpecialist names the Specialist used when
// no predicate matches; it must be one of specialists' Name values.
// concurrencyCap <= 0 defaults to len(specialists).
func New(specialists []Specialist, defaultSpecialist string, validator Validator, files FileReader, candidates []discovery.CandidateFile, concurrencyCap int) *Router {
	if concurrencyCap <= 0 {
		concurrencyCap = len(specialists)
		if concurrencyCap == 0 {
			concurrencyCap = 1
		}
	}
	return &Router{
		specialists:       specialists,
		defaultSpecialist: defaultSpecialist,
		validator:         validator,
		files:             files,
		candidates:        candidates,
		concurrencyCap:    concurrencyCap,
	}
}

// assign picks the specialist for rec: the highest-scoring predicate
// match, or the default specialist if none match above zero.
func (r *Router) assign(rec types.Recommendation) (Specialist, error) {
	best := -1.0
	var chosen Specialist
	found := false
	for _, s := range r.specialists {
		score := s.Predicate(rec)
		if score > 0 && score > best {
			best = score
			chosen = s
			found = true
		}
	}
	if found {
		return chosen, nil
	}
	for _, s := range r.specialists {
		if s.Name == r.defaultSpecialist {
			return s, nil
		}
	}
	return Specialist{}, fmt.Errorf("orchestrator: no specialist matched %q and no default specialist %q is registered", rec.ID, r.defaultSpecialist)
}

// Route runs the Discovery -> Validate -> Execute pipeline for each
// recommendation on its assigned specialist, with distinct
// recommendations running concurrently up to the configured cap. File
// ownership across the batch is serialized by a per-path mutex so two
// concurrent specialists never write the same file at once.
func (r *Router) Route(ctx context.Context, recs []types.Recommendation) types.ExecutionReport {
	combined := types.ExecutionReport{}
	var mu sync.Mutex
	fileLocks := newFileLockSet()

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(r.concurrencyCap))

	for _, rec := range recs {
		rec := rec
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			report := r.runOne(gctx, rec, fileLocks)
			mu.Lock()
			combined.Outcomes = append(combined.Outcomes, report.Outcomes...)
			combined.Changes = append(combined.Changes, report.Changes...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(combined.Outcomes, func(i, j int) bool {
		return combined.Outcomes[i].Change.FilePath < combined.Outcomes[j].Change.FilePath
	})
	return combined
}

func (r *Router) runOne(ctx context.Context, rec types.Recommendation, locks *fileLockSet) types.ExecutionReport {
	log := logging.Get(logging.CategoryRouter)

	specialist, err := r.assign(rec)
	if err != nil {
		log.Warn("%v", err)
		return types.ExecutionReport{RecommendationID: rec.ID, Outcomes: []types.ExecutionOutcome{{
			RecommendationID: rec.ID, Change: types.PlannedChange{}, Status: types.StatusFailed, Reason: err.Error(),
		}}}
	}
	log.Info("routed %s to specialist %q", rec.ID, specialist.Name)

	plan, err := specialist.Discovery.Discover(ctx, rec, r.candidates)
	if err != nil {
		return types.ExecutionReport{RecommendationID: rec.ID, Outcomes: []types.ExecutionOutcome{{
			RecommendationID: rec.ID, Status: types.StatusFailed, Reason: "discovery: " + err.Error(),
		}}}
	}

	var unlockers []func()
	paths := map[string]bool{}
	for _, c := range plan.Changes {
		paths[c.FilePath] = true
	}
	sortedPaths := make([]string, 0, len(paths))
	for p := range paths {
		sortedPaths = append(sortedPaths, p)
	}
	sort.Strings(sortedPaths)
	for _, p := range sortedPaths {
		unlockers = append(unlockers, locks.lock(p))
	}
	defer func() {
		for _, u := range unlockers {
			u()
		}
	}()

	validated, rejections := r.validateAll(rec, plan)
	if len(validated.Changes) == 0 {
		return types.ExecutionReport{RecommendationID: rec.ID, Outcomes: rejections}
	}

	report := specialist.Execution.Execute(validated)
	report.RecommendationID = rec.ID
	report.Outcomes = append(rejections, report.Outcomes...)
	return report
}

// validateAll runs the validator against every planned change, dropping
// any that fail validation and recording why.
func (r *Router) validateAll(rec types.Recommendation, plan types.ChangePlan) (types.ChangePlan, []types.ExecutionOutcome) {
	if r.validator == nil || r.files == nil {
		return plan, nil
	}
	var kept []types.PlannedChange
	var rejected []types.ExecutionOutcome
	impactHigh := rec.Impact >= 8

	for _, c := range plan.Changes {
		original, err := r.files.ReadFile(c.FilePath)
		if err != nil {
			rejected = append(rejected, types.ExecutionOutcome{RecommendationID: rec.ID, Change: c, Status: types.StatusFailed, Reason: "read: " + err.Error()})
			continue
		}
		modified := previewChange(original, c)
		result, err := r.validator.Validate(c.FilePath, original, modified, rec.Effort, impactHigh)
		if err != nil {
			rejected = append(rejected, types.ExecutionOutcome{RecommendationID: rec.ID, Change: c, Status: types.StatusFailed, Reason: "validate: " + err.Error()})
			continue
		}
		if !result.Valid {
			rejected = append(rejected, types.ExecutionOutcome{RecommendationID: rec.ID, Change: c, Status: types.StatusSkipped, Reason: "rejected by validator: " + result.Summary()})
			continue
		}
		kept = append(kept, c)
	}
	return types.ChangePlan{RecommendationID: plan.RecommendationID, Changes: kept}, rejected
}

type fileLockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFileLockSet() *fileLockSet {
	return &fileLockSet{locks: map[string]*sync.Mutex{}}
}

func (s *fileLockSet) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
