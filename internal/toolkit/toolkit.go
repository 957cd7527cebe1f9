package toolkit

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/viztrtr/viztrtr-core/internal/diff"
	"github.com/viztrtr/viztrtr-core/internal/errs"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Toolkit is the sole writer to project files (spec.md component C2). It
// exposes exactly four single-line, single-purpose edit operations and
// owns the backup/rollback bookkeeping for one iteration.
type Toolkit struct {
	paths             *Paths
	lineFallbackRadius int
	diffEngine        *diff.Engine

	fileLocksMu sync.Mutex
	fileLocks   map[string]*sync.Mutex

	backups *backupSet
}

// New returns a Toolkit rooted at projectRoot, scoped to one iteration's
// backups under outputDir/iteration_<n>/backups.
func New(projectRoot, outputDir string, iteration int, lineFallbackRadius int) *Toolkit {
	return &Toolkit{
		paths:             NewPaths(projectRoot),
		lineFallbackRadius: lineFallbackRadius,
		diffEngine:        diff.NewEngine(),
		fileLocks:         map[string]*sync.Mutex{},
		backups:           newBackupSet(outputDir, iteration),
	}
}

func (t *Toolkit) lockFor(path string) *sync.Mutex {
	t.fileLocksMu.Lock()
	defer t.fileLocksMu.Unlock()
	l, ok := t.fileLocks[path]
	if !ok {
		l = &sync.Mutex{}
		t.fileLocks[path] = l
	}
	return l
}

// editResult is the outcome of locating the target line before mutation.
type editResult struct {
	abs       string
	lines     []string
	lineIdx   int // 0-based
	eol       string
}

// VerifyExpectedLine checks that a PlannedChange's recorded "expected
// current line" still matches the file modulo whitespace, with the
// +/-lineFallbackRadius fallback search (spec.md component C2 contract
// (c)). ExecutionAgent calls this before dispatching to the tool-specific
// operation so a stale plan is caught uniformly regardless of which tool
// it names.
func (t *Toolkit) VerifyExpectedLine(relPath string, line int, expected string) (int, error) {
	abs, err := t.paths.Resolve(relPath)
	if err != nil {
		return 0, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return 0, errs.Wrap(errs.FileIO, "read "+relPath, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	idx := line - 1
	if idx >= 0 && idx < len(lines) && normalizeWS(lines[idx]) == normalizeWS(expected) {
		return idx + 1, nil
	}
	for radius := 1; radius <= t.lineFallbackRadius; radius++ {
		for _, cand := range []int{idx - radius, idx + radius} {
			if cand >= 0 && cand < len(lines) && normalizeWS(lines[cand]) == normalizeWS(expected) {
				return cand + 1, nil
			}
		}
	}
	return 0, errs.New(errs.LineMismatch, fmt.Sprintf("%s: line %d does not match expected content (fallback radius %d exhausted)", relPath, line, t.lineFallbackRadius))
}

func normalizeWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// write applies a mutated line array back to disk atomically, creating a
// first-touch backup, and returns the produced FileChange.
func (t *Toolkit) write(relPath string, er *editResult, newLine string, tool types.ToolName) (types.FileChange, error) {
	lock := t.lockFor(er.abs)
	lock.Lock()
	defer lock.Unlock()

	if err := t.backups.ensureBackup(er.abs); err != nil {
		return types.FileChange{}, err
	}

	originalContent := strings.Join(er.lines, er.eol)
	newLines := append([]string(nil), er.lines...)
	newLines[er.lineIdx] = newLine
	newContent := strings.Join(newLines, er.eol)

	tmp := er.abs + ".viztrtr-tmp"
	if err := os.WriteFile(tmp, []byte(newContent), 0o644); err != nil {
		return types.FileChange{}, errs.Wrap(errs.FileIO, "write temp", err)
	}
	if err := os.Rename(tmp, er.abs); err != nil {
		return types.FileChange{}, errs.Wrap(errs.FileIO, "rename", err)
	}

	fd := t.diffEngine.ComputeDiff(relPath, relPath, originalContent, newContent)
	logging.Get(logging.CategoryExecution).Info("%s applied to %s line %d", tool, relPath, er.lineIdx+1)

	return types.FileChange{
		FilePath:        relPath,
		OriginalContent: originalContent,
		NewContent:      newContent,
		Line:            er.lineIdx + 1,
		Tool:            tool,
		Diff:            fd.Unified(),
	}, nil
}

var classAttrPattern = regexp.MustCompile(`class(Name)?\s*=\s*(["'\x60])([^"'\x60]*)(["'\x60])`)

// UpdateClassName replaces the entire value of a class attribute on one line.
func (t *Toolkit) UpdateClassName(relPath string, line int, oldClassAttrValue, newClassAttrValue string) (types.FileChange, error) {
	er, err := t.locateByClassValue(relPath, line, oldClassAttrValue)
	if err != nil {
		return types.FileChange{}, err
	}
	newLine := replaceClassValue(er.lines[er.lineIdx], oldClassAttrValue, newClassAttrValue)
	return t.write(relPath, er, newLine, types.ToolUpdateClassName)
}

// locateByClassValue finds the target line with the same +/-radius search
// VerifyExpectedLine uses, but matches on the expected class value rather
// than the full expected line text.
func (t *Toolkit) locateByClassValue(relPath string, line int, expectedClassValue string) (*editResult, error) {
	abs, err := t.paths.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errs.Wrap(errs.FileIO, "read "+relPath, err)
	}
	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	matches := func(idx int) bool {
		if idx < 0 || idx >= len(lines) {
			return false
		}
		sub := classAttrPattern.FindStringSubmatch(lines[idx])
		return sub != nil && normalizeWS(sub[3]) == normalizeWS(expectedClassValue)
	}

	idx := line - 1
	if matches(idx) {
		return &editResult{abs, lines, idx, eol}, nil
	}
	for radius := 1; radius <= t.lineFallbackRadius; radius++ {
		for _, cand := range []int{idx - radius, idx + radius} {
			if matches(cand) {
				logging.Get(logging.CategoryExecution).Warn("line fallback: %s expected line %d, found at %d", relPath, line, cand+1)
				return &editResult{abs, lines, cand, eol}, nil
			}
		}
	}
	return nil, errs.New(errs.LineMismatch, fmt.Sprintf("%s: line %d does not contain expected class value (fallback radius %d exhausted)", relPath, line, t.lineFallbackRadius))
}

func replaceClassValue(line, oldValue, newValue string) string {
	sub := classAttrPattern.FindStringSubmatchIndex(line)
	if sub == nil {
		return line
	}
	valStart, valEnd := sub[6], sub[7] // group 3 (value) start/end
	return line[:valStart] + newValue + line[valEnd:]
}

// AppendToClassName appends tokens to an existing class attribute value,
// idempotent over tokens already present.
func (t *Toolkit) AppendToClassName(relPath string, line int, additionalClasses string) (types.FileChange, error) {
	abs, err := t.paths.Resolve(relPath)
	if err != nil {
		return types.FileChange{}, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return types.FileChange{}, errs.Wrap(errs.FileIO, "read "+relPath, err)
	}
	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	idx := line - 1
	findIdx := func(i int) bool {
		return i >= 0 && i < len(lines) && classAttrPattern.MatchString(lines[i])
	}
	target := -1
	if findIdx(idx) {
		target = idx
	} else {
		for radius := 1; radius <= t.lineFallbackRadius && target < 0; radius++ {
			for _, cand := range []int{idx - radius, idx + radius} {
				if findIdx(cand) {
					target = cand
					break
				}
			}
		}
	}
	if target < 0 {
		return types.FileChange{}, errs.New(errs.LineMismatch, fmt.Sprintf("%s: line %d has no class attribute", relPath, line))
	}

	sub := classAttrPattern.FindStringSubmatch(lines[target])
	existingTokens := strings.Fields(sub[3])
	existing := map[string]bool{}
	for _, tok := range existingTokens {
		existing[tok] = true
	}
	merged := append([]string(nil), existingTokens...)
	for _, tok := range strings.Fields(additionalClasses) {
		if !existing[tok] {
			merged = append(merged, tok)
			existing[tok] = true
		}
	}
	newValue := strings.Join(merged, " ")
	newLine := replaceClassValue(lines[target], sub[3], newValue)

	er := &editResult{abs, lines, target, eol}
	return t.write(relPath, er, newLine, types.ToolAppendToClassName)
}

var stylePropPattern = func(property string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(property) + `\s*:\s*('[^']*'|"[^"]*"|[^;,"'\}\s][^;,"'\}]*)`)
}

// UpdateStyleValue rewrites a single CSS/inline-style property on one line.
func (t *Toolkit) UpdateStyleValue(relPath string, line int, property, newValue string) (types.FileChange, error) {
	abs, err := t.paths.Resolve(relPath)
	if err != nil {
		return types.FileChange{}, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return types.FileChange{}, errs.Wrap(errs.FileIO, "read "+relPath, err)
	}
	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	re := stylePropPattern(property)

	idx := line - 1
	findIdx := func(i int) bool { return i >= 0 && i < len(lines) && re.MatchString(lines[i]) }
	target := -1
	if findIdx(idx) {
		target = idx
	} else {
		for radius := 1; radius <= t.lineFallbackRadius && target < 0; radius++ {
			for _, cand := range []int{idx - radius, idx + radius} {
				if findIdx(cand) {
					target = cand
					break
				}
			}
		}
	}
	if target < 0 {
		return types.FileChange{}, errs.New(errs.LineMismatch, fmt.Sprintf("%s: line %d has no %q style property", relPath, line, property))
	}

	loc := re.FindStringSubmatchIndex(lines[target])
	valStart, valEnd := loc[2], loc[3]
	newLine := lines[target][:valStart] + strings.TrimSpace(newValue) + lines[target][valEnd:]

	er := &editResult{abs, lines, target, eol}
	return t.write(relPath, er, newLine, types.ToolUpdateStyleValue)
}

// UpdateTextContent replaces a text span on one line.
func (t *Toolkit) UpdateTextContent(relPath string, line int, oldText, newText string) (types.FileChange, error) {
	abs, err := t.paths.Resolve(relPath)
	if err != nil {
		return types.FileChange{}, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return types.FileChange{}, errs.Wrap(errs.FileIO, "read "+relPath, err)
	}
	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	idx := line - 1
	findIdx := func(i int) bool { return i >= 0 && i < len(lines) && strings.Contains(lines[i], oldText) }
	target := -1
	if findIdx(idx) {
		target = idx
	} else {
		for radius := 1; radius <= t.lineFallbackRadius && target < 0; radius++ {
			for _, cand := range []int{idx - radius, idx + radius} {
				if findIdx(cand) {
					target = cand
					break
				}
			}
		}
	}
	if target < 0 {
		return types.FileChange{}, errs.New(errs.LineMismatch, fmt.Sprintf("%s: line %d does not contain %q", relPath, line, oldText))
	}

	newLine := strings.Replace(lines[target], oldText, newText, 1)
	er := &editResult{abs, lines, target, eol}
	return t.write(relPath, er, newLine, types.ToolUpdateTextContent)
}

// RollbackIteration restores every file touched during this iteration from
// its first-touch backup, in reverse order, then deletes the backups.
func (t *Toolkit) RollbackIteration() error {
	logging.Get(logging.CategoryExecution).Warn("rolling back iteration, touched files: %v", t.backups.touchedFiles())
	return t.backups.rollback()
}

// CommitIteration discards backups on verified success. A call after
// RollbackIteration is a no-op (backups are already empty).
func (t *Toolkit) CommitIteration() {
	t.backups.commit()
}

// TouchedFiles returns the files modified so far this iteration.
func (t *Toolkit) TouchedFiles() []string {
	return t.backups.touchedFiles()
}
