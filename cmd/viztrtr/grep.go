package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/discovery"
)

// newProjectGrep builds the Validator's caller-impact search: a plain
// substring scan over every candidate file under root, excluding the
// component's own file. Grounded on discovery.ScanCandidates's walk
// (internal/discovery/files.go), reused here instead of a second
// filepath.Walk since both want the same extension/size/exclude-dir
// filtering.
func newProjectGrep(root string, cfg config.FileDiscoveryConfig) func(string) []string {
	return func(componentName string) []string {
		groups, err := discovery.ScanCandidates(root, cfg)
		if err != nil {
			return nil
		}

		var referencers []string
		for _, g := range groups {
			for _, f := range g.Files {
				base := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
				if base == componentName {
					continue
				}
				data, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					continue
				}
				if strings.Contains(string(data), componentName) {
					referencers = append(referencers, f.Path)
				}
			}
		}
		return referencers
	}
}
