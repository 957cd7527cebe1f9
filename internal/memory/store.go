// Package memory implements MemoryStore (spec.md component C1): the
// persistent attempt/outcome log, meta-pattern detection, and context
// summaries fed back into the vision adapter. Persistence is a single JSON
// document, serialized via a per-process write lock, grounded on the
// teacher's internal/store "single JSON document, lock around writes"
// idiom (internal/store/local.go) though the teacher's own store is
// sqlite-backed — spec.md section 3 fixes this as JSON, so we follow the
// teacher's locking discipline without its storage engine (see DESIGN.md).
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Store owns the single MemorySnapshot for a project. All mutation goes
// through its methods; other components only ever see read-only views via
// ContextSummary / GetAvoidedComponents / WasAttempted.
type Store struct {
	mu       sync.Mutex
	path     string
	snapshot *types.MemorySnapshot
	cfg      config.MemoryConfig
	watcher  *fsnotify.Watcher
	extModified bool
}

// New returns a Store bound to <outputDir>/memory/iteration-memory.json.
// It does not load from disk; call Load for that.
func New(outputDir string, cfg config.MemoryConfig) *Store {
	return &Store{
		path: filepath.Join(outputDir, "memory", "iteration-memory.json"),
		snapshot: types.NewMemorySnapshot(),
		cfg:  cfg,
	}
}

// Load reads the persisted MemorySnapshot, or leaves an empty one in place
// if no document exists yet (first iteration). It also starts an fsnotify
// watch on the memory document so external edits during a run are logged
// (advisory only; never blocks or reloads mid-run), grounded on the
// teacher's use of fsnotify for config/kernel hot-reload in
// internal/core/mangle_watcher.go.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logging.Get(logging.CategoryMemory)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no existing memory document at %s, starting empty", s.path)
			s.snapshot = types.NewMemorySnapshot()
		} else {
			return fmt.Errorf("memory: read %s: %w", s.path, err)
		}
	} else {
		var snap types.MemorySnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("memory: parse %s: %w", s.path, err)
		}
		if snap.ComponentStats == nil {
			snap.ComponentStats = map[string]types.ComponentStats{}
		}
		if snap.Lessons == nil {
			snap.Lessons = []types.LessonEntry{}
		}
		s.snapshot = &snap
		log.Info("loaded memory document: %d attempts, %d score entries", len(snap.Attempts), len(snap.ScoreHistory))
	}

	s.watchExternalModification()
	return nil
}

func (s *Store) watchExternalModification() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		w.Close()
		return
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return
	}
	s.watcher = w
	go func() {
		log := logging.Get(logging.CategoryMemory)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == filepath.Clean(s.path) && ev.Op&(fsnotify.Write|fsnotify.Remove) != 0 {
					s.mu.Lock()
					s.extModified = true
					s.mu.Unlock()
					log.Warn("memory document %s was modified externally during this run", s.path)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Close flushes the current snapshot to disk as the shutdown backstop
// spec.md section 3 requires ("flushed to disk after each iteration and
// at shutdown"), then stops the fsnotify watch, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	saveErr := s.saveLocked()
	var watcherErr error
	if s.watcher != nil {
		watcherErr = s.watcher.Close()
	}
	s.mu.Unlock()
	if saveErr != nil {
		return saveErr
	}
	return watcherErr
}

// Save flushes the current snapshot to disk atomically (write-then-rename),
// matching MicroEditToolkit's own atomicity contract.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("memory: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("memory: rename: %w", err)
	}
	return nil
}

// RecordAttempt appends an AttemptRecord and updates ComponentStats for
// every touched file.
func (s *Store) RecordAttempt(rec types.Recommendation, iteration int, outcome types.Outcome, filePaths []string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taggedReason := reason
	if rec.Dimension != "" {
		taggedReason = fmt.Sprintf("dimension=%s %s", rec.Dimension, reason)
	}
	s.snapshot.Attempts = append(s.snapshot.Attempts, types.AttemptRecord{
		Iteration:        iteration,
		RecommendationID: rec.ID,
		Content:          rec.Title + " :: " + rec.Description,
		Outcome:          outcome,
		FilePaths:        filePaths,
		Reason:           taggedReason,
		Timestamp:        time.Now().UTC(),
	})

	for _, f := range filePaths {
		stats := s.snapshot.ComponentStats[f]
		stats.ModificationCount++
		switch outcome {
		case types.OutcomeSuccess:
			stats.SuccessCount++
		case types.OutcomeFailed, types.OutcomeBrokeBuild:
			stats.FailureCount++
		}
		stats.LastOutcome = outcome
		s.snapshot.ComponentStats[f] = stats
	}
	s.recomputeAvoidedLocked()
}

// RecordLessons appends ReflectionAgent findings attached to iteration.
func (s *Store) RecordLessons(iteration int, lessons []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lessons {
		s.snapshot.Lessons = append(s.snapshot.Lessons, types.LessonEntry{Iteration: iteration, Lesson: l})
	}
}

// RecordScore appends a ScoreHistoryEntry.
func (s *Store) RecordScore(entry types.ScoreHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.ScoreHistory = append(s.snapshot.ScoreHistory, entry)
}

func (s *Store) recomputeAvoidedLocked() {
	var avoided []string
	for file, stats := range s.snapshot.ComponentStats {
		if stats.ShouldAvoid() {
			avoided = append(avoided, file)
		}
	}
	sort.Strings(avoided)
	s.snapshot.AvoidedComponents = avoided
}

// GetAvoidedComponents returns the files MemoryStore has derived should be
// avoided (spec.md "meta-pattern").
func (s *Store) GetAvoidedComponents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.snapshot.AvoidedComponents))
	copy(out, s.snapshot.AvoidedComponents)
	return out
}

// WasAttempted reports whether a Recommendation (or a sufficiently similar
// one) has a prior failing AttemptRecord, using the configured MatchStrategy.
func (s *Store) WasAttempted(rec types.Recommendation, failingOutcomes ...types.Outcome) (types.AttemptRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	failing := map[types.Outcome]bool{}
	for _, o := range failingOutcomes {
		failing[o] = true
	}
	for _, a := range s.snapshot.Attempts {
		if len(failing) > 0 && !failing[a.Outcome] {
			continue
		}
		if s.matches(rec, a) {
			return a, true
		}
	}
	return types.AttemptRecord{}, false
}

func (s *Store) matches(rec types.Recommendation, a types.AttemptRecord) bool {
	switch s.cfg.MatchStrategy {
	case config.MatchByID:
		return rec.ID == a.RecommendationID
	default: // fuzzy-content
		if rec.ID == a.RecommendationID {
			return true
		}
		return normalizedSimilarity(rec.Title+" :: "+rec.Description, a.Content) >= 0.8
	}
}

// normalizedSimilarity is a token-overlap similarity in [0,1], used for
// fuzzy "wasAttempted" matching. spec.md section 9 flags the exact
// algorithm as source-ambiguous; this implementation is our explicit
// choice (Jaccard similarity over lower-cased whitespace tokens).
func normalizedSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// ContextSummary renders the bounded prose block spec.md section 4.12
// describes: score trend and last delta, recent attempts with outcomes,
// a "DO NOT RETRY" enumeration of failed attempts, frequently-modified
// components, and the avoid list with rationale. Fed to the vision
// adapter as memoryContext.
func (s *Store) ContextSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder

	if len(s.snapshot.ScoreHistory) > 0 {
		last := s.snapshot.ScoreHistory[len(s.snapshot.ScoreHistory)-1]
		trend := "FLAT"
		switch {
		case last.Delta > 0.1:
			trend = "IMPROVING"
		case last.Delta < -0.1:
			trend = "REGRESSING"
		}
		fmt.Fprintf(&b, "Score trend: %s (last delta %.2f, score %.2f -> %.2f)\n\n", trend, last.Delta, last.BeforeScore, last.AfterScore)
	} else {
		b.WriteString("Score trend: no history yet\n\n")
	}

	if len(s.snapshot.Attempts) > 0 {
		b.WriteString("Recent attempts:\n")
		start := 0
		if len(s.snapshot.Attempts) > 10 {
			start = len(s.snapshot.Attempts) - 10
		}
		for _, a := range s.snapshot.Attempts[start:] {
			fmt.Fprintf(&b, "- [iteration %d] %s -> %s\n", a.Iteration, a.Content, a.Outcome)
		}
		b.WriteString("\n")
	}

	var failed []types.AttemptRecord
	for _, a := range s.snapshot.Attempts {
		if a.Outcome == types.OutcomeFailed || a.Outcome == types.OutcomeBrokeBuild {
			failed = append(failed, a)
		}
	}
	if len(failed) > 0 {
		b.WriteString("FAILED ATTEMPTS - DO NOT RETRY:\n")
		for _, a := range failed {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Content, a.Outcome)
		}
		b.WriteString("\n")
	}

	type fileCount struct {
		file  string
		count int
	}
	var frequent []fileCount
	for f, stats := range s.snapshot.ComponentStats {
		if stats.ModificationCount >= 3 {
			frequent = append(frequent, fileCount{f, stats.ModificationCount})
		}
	}
	if len(frequent) > 0 {
		sort.Slice(frequent, func(i, j int) bool { return frequent[i].count > frequent[j].count })
		b.WriteString("Frequently-modified components:\n")
		for _, fc := range frequent {
			fmt.Fprintf(&b, "- %s (%d modifications)\n", fc.file, fc.count)
		}
		b.WriteString("\n")
	}

	if len(s.snapshot.AvoidedComponents) > 0 {
		b.WriteString("COMPONENTS TO AVOID (modified >=5 times with >=4 failures):\n")
		for _, f := range s.snapshot.AvoidedComponents {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	return b.String()
}

// Snapshot returns a copy of the current MemorySnapshot for diagnostics.
func (s *Store) Snapshot() types.MemorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.snapshot
	cp.Attempts = append([]types.AttemptRecord(nil), s.snapshot.Attempts...)
	cp.ScoreHistory = append([]types.ScoreHistoryEntry(nil), s.snapshot.ScoreHistory...)
	cp.ComponentStats = make(map[string]types.ComponentStats, len(s.snapshot.ComponentStats))
	for k, v := range s.snapshot.ComponentStats {
		cp.ComponentStats[k] = v
	}
	cp.AvoidedComponents = append([]string(nil), s.snapshot.AvoidedComponents...)
	return cp
}
