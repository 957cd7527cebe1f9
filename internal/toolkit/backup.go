package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/viztrtr/viztrtr-core/internal/errs"
)

// backupSet tracks, for one iteration, the first-touch backup of every
// file the toolkit has modified, so rollbackIteration can restore them in
// reverse order and commitIteration can discard them on success.
type backupSet struct {
	mu      sync.Mutex
	dir     string
	order   []string          // touched file order, for reverse-order rollback
	backups map[string]string // abs file path -> backup path
}

func newBackupSet(outputDir string, iteration int) *backupSet {
	return &backupSet{
		dir:     filepath.Join(outputDir, fmt.Sprintf("iteration_%d", iteration), "backups"),
		backups: map[string]string{},
	}
}

// ensureBackup creates a timestamped backup of path on its first touch
// within the iteration; subsequent touches are no-ops.
func (b *backupSet) ensureBackup(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.backups[path]; ok {
		return nil
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return errs.Wrap(errs.FileIO, "create backup dir", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.FileIO, "read for backup", err)
	}
	backupPath := filepath.Join(b.dir, fmt.Sprintf("%s.%d.bak", filepath.Base(path), time.Now().UnixNano()))
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return errs.Wrap(errs.FileIO, "write backup", err)
	}
	b.backups[path] = backupPath
	b.order = append(b.order, path)
	return nil
}

// rollback restores every touched file from its backup, in reverse touch
// order, then deletes the backups.
func (b *backupSet) rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for i := len(b.order) - 1; i >= 0; i-- {
		path := b.order[i]
		backupPath := b.backups[path]
		content, err := os.ReadFile(backupPath)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.Wrap(errs.FileIO, "read backup for restore", err)
			}
			continue
		}
		tmp := path + ".restoring"
		if err := os.WriteFile(tmp, content, 0o644); err != nil {
			if firstErr == nil {
				firstErr = errs.Wrap(errs.FileIO, "write restore temp", err)
			}
			continue
		}
		if err := os.Rename(tmp, path); err != nil {
			if firstErr == nil {
				firstErr = errs.Wrap(errs.FileIO, "rename restore", err)
			}
			continue
		}
	}
	b.discardLocked()
	return firstErr
}

// commit discards all backups without restoring (verified success path).
func (b *backupSet) commit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discardLocked()
}

func (b *backupSet) discardLocked() {
	for _, backupPath := range b.backups {
		_ = os.Remove(backupPath)
	}
	b.backups = map[string]string{}
	b.order = nil
	_ = os.Remove(b.dir)
}

// touchedFiles returns the files backed up so far, for diagnostics.
func (b *backupSet) touchedFiles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
