package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "prefs.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(doc.IgnoredUsers) != 0 {
		t.Errorf("IgnoredUsers = %v, want empty", doc.IgnoredUsers)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	os.WriteFile(path, []byte(": not yaml ["), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	doc := &Document{}
	if !doc.AddIgnoredUser("eve") {
		t.Error("first add should change the document")
	}
	if err := Save(path, doc); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.IsIgnored("eve") {
		t.Error("eve should be ignored after reload")
	}

	if !doc.RemoveIgnoredUser("eve") {
		t.Error("remove should change the document")
	}
	if err := Save(path, doc); err != nil {
		t.Fatal(err)
	}
	doc, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.IsIgnored("eve") {
		t.Error("eve should be absent after remove and reload")
	}
}

func TestAddIsIdempotent(t *testing.T) {
	doc := &Document{}
	doc.AddIgnoredUser("eve")
	if doc.AddIgnoredUser("eve") {
		t.Error("second add should be a no-op")
	}
	if len(doc.IgnoredUsers) != 1 {
		t.Errorf("IgnoredUsers = %v, want one entry", doc.IgnoredUsers)
	}
}

func TestRemoveAbsentUser(t *testing.T) {
	doc := &Document{IgnoredUsers: []string{"alice"}}
	if doc.RemoveIgnoredUser("bob") {
		t.Error("removing an absent user should not change the document")
	}
	if !doc.IsIgnored("alice") {
		t.Error("alice should remain")
	}
}
