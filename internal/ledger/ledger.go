// Package ledger persists which run-once items have already executed, keyed
// by item path. The pipeline only ever adds entries; clearing one so an item
// runs again is a job for external tooling.
package ledger

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Ledger maps item paths to their last successful execution time. Keys match
// exactly and case-sensitively; two path spellings for the same file are two
// entries.
type Ledger struct {
	path    string
	entries map[string]time.Time
	dirty   bool
}

// Load reads the ledger document at path. A missing or unparseable document
// yields an empty ledger rather than an error: losing run-once history means
// items may run again, which is recoverable, while refusing to process the
// logout is not.
func Load(path string) *Ledger {
	l := &Ledger{path: path, entries: make(map[string]time.Time)}
	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}
	var entries map[string]time.Time
	if err := yaml.Unmarshal(data, &entries); err != nil || entries == nil {
		return l
	}
	l.entries = entries
	return l
}

// ShouldRun reports whether itemPath has no recorded successful run.
func (l *Ledger) ShouldRun(itemPath string) bool {
	_, ran := l.entries[itemPath]
	return !ran
}

// RecordSuccess marks itemPath as having run successfully at t. Timestamps
// are stored UTC at second precision so they compare equal after a reload.
func (l *Ledger) RecordSuccess(itemPath string, t time.Time) {
	l.entries[itemPath] = t.UTC().Truncate(time.Second)
	l.dirty = true
}

// RanAt returns the recorded run time for itemPath, if any.
func (l *Ledger) RanAt(itemPath string) (time.Time, bool) {
	t, ok := l.entries[itemPath]
	return t, ok
}

// Len returns the number of recorded items.
func (l *Ledger) Len() int { return len(l.entries) }

// Dirty reports whether the ledger has unsaved entries.
func (l *Ledger) Dirty() bool { return l.dirty }

// Save writes the ledger atomically, and only when something was added since
// Load. Saving an unchanged ledger is a no-op.
func (l *Ledger) Save() error {
	if !l.dirty {
		return nil
	}
	data, err := yaml.Marshal(l.entries)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	l.dirty = false
	return nil
}
