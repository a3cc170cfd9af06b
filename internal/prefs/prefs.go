// Package prefs manages the persisted preference document, currently just
// the list of users for whom logout processing is skipped.
package prefs

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Document is the schema of the preference file.
type Document struct {
	IgnoredUsers []string `yaml:"ignored_users,omitempty"`
}

// Load reads the preference document at path, returning an empty document
// when the file does not exist.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the document atomically to path.
func Save(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return os.Rename(tmp, path)
}

// IsIgnored reports whether user is on the ignore list.
func (d *Document) IsIgnored(user string) bool {
	return slices.Contains(d.IgnoredUsers, user)
}

// AddIgnoredUser adds user to the ignore list. Adding a user already present
// is a no-op, so the list never holds duplicates. Returns true when the
// document changed.
func (d *Document) AddIgnoredUser(user string) bool {
	if d.IsIgnored(user) {
		return false
	}
	d.IgnoredUsers = append(d.IgnoredUsers, user)
	slices.Sort(d.IgnoredUsers)
	return true
}

// RemoveIgnoredUser removes user from the ignore list. Returns true when the
// document changed.
func (d *Document) RemoveIgnoredUser(user string) bool {
	i := slices.Index(d.IgnoredUsers, user)
	if i < 0 {
		return false
	}
	d.IgnoredUsers = slices.Delete(d.IgnoredUsers, i, i+1)
	return true
}
