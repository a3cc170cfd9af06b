// Package audit provides an append-only structured log of every item outcome.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry records the outcome of one item within one pass.
type Entry struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id"` // ULID shared by all entries of one pass
	Dir     string    `json:"dir"`
	Item    string    `json:"item"`
	Kind    string    `json:"kind"`
	Outcome string    `json:"outcome"` // "success" | "failure" | "skipped"
	Error   string    `json:"error,omitempty"`
}

// Log is an append-only JSONL file of entries.
type Log struct {
	Path string
}

// NewRunID returns a fresh pass identifier. ULIDs sort by creation time, so
// filtering the log by one ID yields one pass in order.
func NewRunID() string {
	return ulid.Make().String()
}

// Append writes e to the log. Errors are silently ignored so that audit
// logging never halts a logout pass.
func (l *Log) Append(e Entry) {
	if l.Path == "" {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	line, _ := json.Marshal(e)
	f.Write(append(line, '\n'))
}

// Read loads entries, optionally filtered by run ID. It returns the last
// limit entries (all if limit <= 0). Malformed lines are skipped.
func (l *Log) Read(runFilter string, limit int) ([]Entry, error) {
	f, err := os.Open(l.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if runFilter != "" && e.RunID != runFilter {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
