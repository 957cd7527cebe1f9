// Package diff computes structured, unified-style diffs for FileChange
// records. Adapted from the teacher's internal/diff package, which itself
// wraps github.com/sergi/go-diff/diffmatchpatch rather than a hand-rolled
// LCS implementation.
package diff

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType classifies one rendered diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is a single line in a diff hunk.
type Line struct {
	LineNum int
	Content string
	Type    LineType
}

// Hunk groups a cluster of changed lines with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff is the structured diff between two versions of one file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Engine computes diffs with per-pair result caching.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct{ oldHash, newHash uint64 }

// NewEngine returns an Engine tuned for code diffs (no timeout, so large
// single-line edits are never truncated mid-computation).
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// DefaultEngine is a process-wide singleton; MicroEditToolkit uses it for
// every FileChange it produces.
var DefaultEngine = NewEngine()

// ComputeDiff returns the structured diff between oldContent and newContent.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	fd := &FileDiff{OldPath: oldPath, NewPath: newPath}

	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if cfd, ok := cached.(*FileDiff); ok {
			result := *cfd
			result.OldPath, result.NewPath = oldPath, newPath
			return &result
		}
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	fd.Hunks = e.groupIntoHunks(e.diffsToOperations(diffs), 3)
	e.cache.Store(key, fd)
	return fd
}

// ComputeDiff is a convenience wrapper over DefaultEngine.
func ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.ComputeDiff(oldPath, newPath, oldContent, newContent)
}

type operation struct {
	typ              LineType
	oldLine, newLine int
	content          string
}

func (e *Engine) diffsToOperations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

func (e *Engine) groupIntoHunks(ops []operation, contextLines int) []Hunk {
	if len(ops) == 0 {
		return nil
	}
	var hunks []Hunk
	var current *Hunk
	lastChange := -1

	for i, op := range ops {
		isChange := op.typ != LineContext
		if isChange && current == nil {
			current = &Hunk{}
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			for j := start; j < i; j++ {
				if ops[j].typ == LineContext {
					current.Lines = append(current.Lines, Line{ops[j].oldLine + 1, ops[j].content, LineContext})
				}
			}
			current.OldStart = ops[start].oldLine + 1
			current.NewStart = ops[start].newLine + 1
		}
		if isChange {
			lastChange = i
		}
		if current != nil {
			lineNum := op.oldLine + 1
			if op.typ == LineAdded {
				lineNum = op.newLine + 1
			}
			current.Lines = append(current.Lines, Line{lineNum, op.content, op.typ})

			if op.typ == LineContext && i-lastChange > contextLines {
				trimTo := len(current.Lines) - (i - lastChange - contextLines)
				if trimTo > 0 && trimTo < len(current.Lines) {
					current.Lines = current.Lines[:trimTo]
				}
				e.computeCounts(current)
				hunks = append(hunks, *current)
				current = nil
			}
		}
	}
	if current != nil && len(current.Lines) > 0 {
		e.computeCounts(current)
		hunks = append(hunks, *current)
	}
	return hunks
}

func (e *Engine) computeCounts(h *Hunk) {
	for _, l := range h.Lines {
		if l.Type == LineRemoved || l.Type == LineContext {
			h.OldCount++
		}
		if l.Type == LineAdded || l.Type == LineContext {
			h.NewCount++
		}
	}
}

func hash(s string) uint64 {
	const offset64, prime64 = 14695981039346656037, 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// Unified renders the FileDiff as a unified-style diff string, used as the
// "structured unified-style diff" field on types.FileChange.
func (fd *FileDiff) Unified() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", fd.OldPath, fd.NewPath)
	for _, h := range fd.Hunks {
		fmt.Fprintf(&b, "@@ -%s,%d +%s,%d @@\n",
			strconv.Itoa(h.OldStart), h.OldCount, strconv.Itoa(h.NewStart), h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				b.WriteString("+" + l.Content + "\n")
			case LineRemoved:
				b.WriteString("-" + l.Content + "\n")
			default:
				b.WriteString(" " + l.Content + "\n")
			}
		}
	}
	return b.String()
}
