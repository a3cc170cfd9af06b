// Package pipeline ties discovery, validation, classification, the run-once
// ledger, and the executors into one pass over a drop directory.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/maclogout/sundown/internal/audit"
	"github.com/maclogout/sundown/internal/item"
	"github.com/maclogout/sundown/internal/ledger"
	"github.com/maclogout/sundown/internal/permit"
)

// PackageExecutor installs packages directly or from a disk image.
type PackageExecutor interface {
	Install(ctx context.Context, path string) error
	InstallImage(ctx context.Context, path string) error
}

// ProfileExecutor applies configuration profiles.
type ProfileExecutor interface {
	Install(ctx context.Context, path string) error
}

// ScriptExecutor runs scripts.
type ScriptExecutor interface {
	Execute(ctx context.Context, path string) error
}

// Pipeline processes the items of a drop directory in a single serial pass.
// Items never run in parallel: installer side effects conflict, and the
// packages-before-profiles-before-scripts ordering depends on serial
// execution.
type Pipeline struct {
	Packages PackageExecutor
	Profiles ProfileExecutor
	Scripts  ScriptExecutor
	Logger   *slog.Logger
	Audit    *audit.Log

	// Stat resolves an item's owner and mode; defaults to permit.Stat.
	Stat func(path string) (uint32, os.FileMode, error)
}

// Summary counts the outcomes of one pass.
type Summary struct {
	RunID     string
	Succeeded int
	Failed    int
	Skipped   int // ineligible or already-ran items
}

// Process runs one pass over dir. When led is non-nil the pass is in
// run-once mode: the ledger is consulted per item and successful runs are
// recorded and persisted at the end. Only a missing directory is fatal;
// every per-item failure is logged and the pass moves on.
func (p *Pipeline) Process(ctx context.Context, dir string, led *ledger.Ledger) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("drop directory %s: %w", dir, err)
	}

	sum := &Summary{RunID: audit.NewRunID()}
	items := p.discover(dir, entries, sum)

	// Fixed kind order, lexicographic within a kind.
	sort.SliceStable(items, func(i, j int) bool {
		a, b := kindOrder(items[i].Kind), kindOrder(items[j].Kind)
		if a != b {
			return a < b
		}
		return items[i].Name < items[j].Name
	})

	for _, it := range items {
		if led != nil && !led.ShouldRun(it.Path) {
			ranAt, _ := led.RanAt(it.Path)
			p.Logger.Debug("already ran, skipping", "item", it.Path, "ran_at", ranAt)
			sum.Skipped++
			continue
		}

		err := p.run(ctx, it)
		e := audit.Entry{RunID: sum.RunID, Dir: dir, Item: it.Name, Kind: it.Kind.String()}
		if err != nil {
			p.Logger.Error("item failed", "item", it.Path, "kind", it.Kind.String(), "error", err)
			e.Outcome = "failure"
			e.Error = err.Error()
			sum.Failed++
		} else {
			p.Logger.Info("item processed", "item", it.Path, "kind", it.Kind.String())
			e.Outcome = "success"
			sum.Succeeded++
			if led != nil {
				led.RecordSuccess(it.Path, time.Now())
			}
		}
		p.Audit.Append(e)
	}

	if led != nil {
		if err := led.Save(); err != nil {
			// Losing the write means items may run again next pass, which
			// beats aborting a logout that already did its work.
			p.Logger.Error("ledger save failed", "error", err)
		}
	}
	return sum, nil
}

// discover filters directory entries down to eligible items. Permission
// rejections are logged and audited as skipped; they never fail the pass.
func (p *Pipeline) discover(dir string, entries []os.DirEntry, sum *Summary) []item.Item {
	statFn := p.Stat
	if statFn == nil {
		statFn = permit.Stat
	}

	var items []item.Item
	for _, entry := range entries {
		if entry.IsDir() {
			p.Logger.Debug("ignoring subdirectory", "name", entry.Name())
			continue
		}
		kind := item.Classify(entry.Name())
		if kind == item.KindIgnored {
			p.Logger.Debug("ignoring hidden entry", "name", entry.Name())
			continue
		}
		path := filepath.Join(dir, entry.Name())
		uid, mode, err := statFn(path)
		if err != nil {
			p.Logger.Warn("cannot stat item, skipping", "item", path, "error", err)
			sum.Skipped++
			continue
		}
		ok, reason := permit.Eligible(kind, uid, mode)
		if !ok {
			p.Logger.Warn("item ineligible", "item", path, "reason", reason)
			p.Audit.Append(audit.Entry{
				RunID: sum.RunID, Dir: dir, Item: entry.Name(),
				Kind: kind.String(), Outcome: "skipped", Error: reason,
			})
			sum.Skipped++
			continue
		}
		items = append(items, item.Item{Path: path, Name: entry.Name(), Kind: kind, UID: uid, Mode: mode})
	}
	return items
}

// run dispatches one item to its executor.
func (p *Pipeline) run(ctx context.Context, it item.Item) error {
	switch it.Kind {
	case item.KindPackage:
		return p.Packages.Install(ctx, it.Path)
	case item.KindDiskImage:
		return p.Packages.InstallImage(ctx, it.Path)
	case item.KindProfile:
		return p.Profiles.Install(ctx, it.Path)
	case item.KindScript:
		return p.Scripts.Execute(ctx, it.Path)
	default:
		return fmt.Errorf("unrunnable kind %v", it.Kind)
	}
}

// kindOrder fixes the execution order: system-level installs first, then
// session-level configuration, then arbitrary scripts.
func kindOrder(k item.Kind) int {
	switch k {
	case item.KindPackage, item.KindDiskImage:
		return 0
	case item.KindProfile:
		return 1
	default:
		return 2
	}
}
