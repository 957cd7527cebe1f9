// Package toolkit implements MicroEditToolkit (spec.md component C2): the
// only writer to project files. Grounded on the teacher's
// internal/tools/codedom/lines.go line-oriented edit tools, generalized
// from generic line-range edits to the four constrained, single-purpose
// micro-edits spec.md names, and on internal/campaign/checkpoint.go for
// the backup/rollback bookkeeping idiom.
package toolkit

import (
	"path/filepath"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/errs"
)

// defaultBlacklist names directories and file patterns MicroEditToolkit
// will never write to, regardless of project root containment.
var defaultBlacklist = []string{
	"node_modules", ".git", ".svn", ".hg", "dist", "build", ".next",
	"vendor", ".viztrtr",
}

var blacklistedFiles = []string{".env", ".env.local", ".env.production"}

// Paths centralizes path resolution within a project root, enforcing the
// blacklist on every Resolve call, matching the teacher's "centralize path
// handling" redesign note (spec.md section 9).
type Paths struct {
	root string
}

// NewPaths returns a Paths resolver rooted at the (already-absolute) project path.
func NewPaths(root string) *Paths {
	return &Paths{root: filepath.Clean(root)}
}

// Resolve validates relPath is within the project root and not blacklisted,
// returning the absolute path to operate on.
func (p *Paths) Resolve(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", errs.New(errs.PathOutsideScope, "path must be relative to project root: "+relPath)
	}
	abs := filepath.Join(p.root, relPath)
	abs = filepath.Clean(abs)
	rootWithSep := p.root + string(filepath.Separator)
	if abs != p.root && !strings.HasPrefix(abs, rootWithSep) {
		return "", errs.New(errs.PathOutsideScope, "path escapes project root: "+relPath)
	}

	cleanRel := strings.TrimPrefix(abs, rootWithSep)
	segments := strings.Split(filepath.ToSlash(cleanRel), "/")
	for _, seg := range segments {
		for _, b := range defaultBlacklist {
			if seg == b {
				return "", errs.New(errs.PathBlacklisted, "path is blacklisted: "+relPath)
			}
		}
	}
	base := filepath.Base(abs)
	for _, bf := range blacklistedFiles {
		if base == bf {
			return "", errs.New(errs.PathBlacklisted, "path is blacklisted: "+relPath)
		}
	}
	return abs, nil
}

// Root returns the project root.
func (p *Paths) Root() string { return p.root }
