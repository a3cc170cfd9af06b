package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/maclogout/sundown/internal/audit"
	"github.com/maclogout/sundown/internal/ledger"
)

// fakeExec implements all three executor interfaces and records call order.
type fakeExec struct {
	calls []string
	fail  map[string]error // base name → error to return
}

func (f *fakeExec) record(op, path string) error {
	f.calls = append(f.calls, op+" "+filepath.Base(path))
	if err, ok := f.fail[filepath.Base(path)]; ok {
		return err
	}
	return nil
}

func (f *fakeExec) Install(_ context.Context, path string) error {
	return f.record("install", path)
}

func (f *fakeExec) InstallImage(_ context.Context, path string) error {
	return f.record("image", path)
}

func (f *fakeExec) Execute(_ context.Context, path string) error {
	return f.record("script", path)
}

// rootStat pretends every item is root-owned with sensible modes.
func rootStat(path string) (uint32, os.FileMode, error) {
	if filepath.Ext(path) == "" || filepath.Ext(path) == ".sh" {
		return 0, 0o755, nil
	}
	return 0, 0o644, nil
}

func newTestPipeline(t *testing.T, f *fakeExec) *Pipeline {
	t.Helper()
	return &Pipeline{
		Packages: f,
		Profiles: f,
		Scripts:  f,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Audit:    &audit.Log{Path: filepath.Join(t.TempDir(), "history.log")},
		Stat:     rootStat,
	}
}

func writeItems(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProcessKindOrdering(t *testing.T) {
	dir := t.TempDir()
	// Listing order is name order; execution order must be by kind.
	writeItems(t, dir, "a_cleanup.sh", "b_wifi.mobileconfig", "c_tool.pkg", "d_extra.dmg")

	f := &fakeExec{}
	p := newTestPipeline(t, f)
	sum, err := p.Process(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	got := f.calls
	expected := []string{
		"install c_tool.pkg",
		"image d_extra.dmg",
		"install b_wifi.mobileconfig",
		"script a_cleanup.sh",
	}
	if len(got) != len(expected) {
		t.Fatalf("calls = %v, want %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], expected[i])
		}
	}
	if sum.Succeeded != 4 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestProcessFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	writeItems(t, dir, "a.pkg", "b.pkg", "c.sh")

	f := &fakeExec{fail: map[string]error{"a.pkg": errors.New("boom")}}
	p := newTestPipeline(t, f)
	sum, err := p.Process(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(f.calls) != 3 {
		t.Errorf("calls = %v, want all three items attempted", f.calls)
	}
	if sum.Failed != 1 || sum.Succeeded != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestProcessMissingDirIsFatal(t *testing.T) {
	p := newTestPipeline(t, &fakeExec{})
	if _, err := p.Process(context.Background(), "/nonexistent/items", nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestProcessSkipsIneligible(t *testing.T) {
	dir := t.TempDir()
	writeItems(t, dir, "evil.pkg", "fine.pkg")

	f := &fakeExec{}
	p := newTestPipeline(t, f)
	p.Stat = func(path string) (uint32, os.FileMode, error) {
		if filepath.Base(path) == "evil.pkg" {
			return 501, 0o666, nil
		}
		return 0, 0o644, nil
	}
	sum, err := p.Process(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 1 || f.calls[0] != "install fine.pkg" {
		t.Errorf("calls = %v", f.calls)
	}
	if sum.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", sum.Skipped)
	}

	entries, err := p.Audit.Read("", 0)
	if err != nil {
		t.Fatal(err)
	}
	var sawSkip bool
	for _, e := range entries {
		if e.Item == "evil.pkg" && e.Outcome == "skipped" {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Error("ineligible item missing from audit log")
	}
}

func TestProcessIgnoresHiddenAndDirs(t *testing.T) {
	dir := t.TempDir()
	writeItems(t, dir, ".DS_Store", "job.sh")
	os.Mkdir(filepath.Join(dir, "subdir"), 0o755)

	f := &fakeExec{}
	p := newTestPipeline(t, f)
	if _, err := p.Process(context.Background(), dir, nil); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 1 || f.calls[0] != "script job.sh" {
		t.Errorf("calls = %v, want only job.sh", f.calls)
	}
}

func TestProcessOnceModeIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeItems(t, dir, "setup.pkg", "job.sh")
	ledgerPath := filepath.Join(t.TempDir(), "once.yaml")

	f := &fakeExec{}
	p := newTestPipeline(t, f)
	led := ledger.Load(ledgerPath)
	if _, err := p.Process(context.Background(), dir, led); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 2 {
		t.Fatalf("first pass calls = %v", f.calls)
	}

	// Second pass with a reloaded ledger: nothing runs, nothing written.
	f2 := &fakeExec{}
	p2 := newTestPipeline(t, f2)
	led2 := ledger.Load(ledgerPath)
	sum, err := p2.Process(context.Background(), dir, led2)
	if err != nil {
		t.Fatal(err)
	}
	if len(f2.calls) != 0 {
		t.Errorf("second pass calls = %v, want none", f2.calls)
	}
	if sum.Skipped != 2 || sum.Succeeded != 0 {
		t.Errorf("second pass summary = %+v", sum)
	}
	if led2.Dirty() {
		t.Error("second pass dirtied the ledger")
	}
}

func TestProcessOnceModeRetriesFailures(t *testing.T) {
	dir := t.TempDir()
	writeItems(t, dir, "flaky.sh")
	ledgerPath := filepath.Join(t.TempDir(), "once.yaml")

	f := &fakeExec{fail: map[string]error{"flaky.sh": errors.New("boom")}}
	p := newTestPipeline(t, f)
	if _, err := p.Process(context.Background(), dir, ledger.Load(ledgerPath)); err != nil {
		t.Fatal(err)
	}

	// The failure was not recorded, so the next pass tries again.
	f2 := &fakeExec{}
	p2 := newTestPipeline(t, f2)
	sum, err := p2.Process(context.Background(), dir, ledger.Load(ledgerPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(f2.calls) != 1 {
		t.Errorf("retry pass calls = %v, want one", f2.calls)
	}
	if sum.Succeeded != 1 {
		t.Errorf("retry summary = %+v", sum)
	}
}
