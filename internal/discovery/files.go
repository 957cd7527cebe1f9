// Package discovery implements DiscoveryAgent (spec.md component C4) and
// the shared file-discovery utility of spec.md section 4.8. Grounded on
// the teacher's internal/world/fs.go Scanner.ScanDirectory walk, stripped
// of its Mangle-fact emission and hashing/caching (this domain needs a
// candidate file list, not a fact store) and made deterministic: no
// concurrency, one pass, directory-grouped, lexicographically sorted.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

// CandidateFile is one file eligible for DiscoveryAgent's attention.
type CandidateFile struct {
	Path string // relative to project root, slash-separated
	Dir  string
	Size int64
}

// DirectoryGroup is the files found directly under one directory.
type DirectoryGroup struct {
	Dir   string
	Files []CandidateFile
}

// ScanCandidates walks root deterministically, returning files whose
// extension is in cfg.Extensions, whose size is under cfg.MaxFileSize, and
// whose path does not pass through any of cfg.ExcludeDirs, grouped by
// directory and sorted lexicographically by path within each group, and
// with groups themselves sorted by directory name.
func ScanCandidates(root string, cfg config.FileDiscoveryConfig) ([]DirectoryGroup, error) {
	exts := map[string]bool{}
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	excluded := map[string]bool{}
	for _, d := range cfg.ExcludeDirs {
		excluded[d] = true
	}

	byDir := map[string][]CandidateFile{}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && excluded[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if cfg.MaxFileSize > 0 && info.Size() > int64(cfg.MaxFileSize) {
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		dir := filepath.ToSlash(filepath.Dir(rel))
		byDir[dir] = append(byDir[dir], CandidateFile{Path: rel, Dir: dir, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	groups := make([]DirectoryGroup, 0, len(dirs))
	for _, d := range dirs {
		files := byDir[d]
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		groups = append(groups, DirectoryGroup{Dir: d, Files: files})
	}
	return groups, nil
}

// Flatten returns every CandidateFile across groups, in group then
// within-group order (i.e. still deterministic and lexicographic).
func Flatten(groups []DirectoryGroup) []CandidateFile {
	var out []CandidateFile
	for _, g := range groups {
		out = append(out, g.Files...)
	}
	return out
}
