// Package session decides whether a logout-hook invocation is a genuine
// interactive logout. The OS fires the hook for reboots too, so the detector
// reads recent login history and the login window's recorded state to tell
// the two apart before any item is allowed to run.
package session

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/maclogout/sundown/internal/execute"
)

// Record is one parsed line of login history, most recent first. Start and
// End hold the raw clock tokens (e.g. "10:32") because the detector only
// ever compares them for equality, never orders them. Reboot and shutdown
// lines carry a single timestamp: that boundary time is stored in both
// fields.
type Record struct {
	Name  string // user name, or "reboot" / "shutdown"
	Start string
	End   string // empty when the session is still open or ended abnormally
}

// IsReboot reports whether the record marks a reboot.
func (r Record) IsReboot() bool { return r.Name == "reboot" }

// IsShutdown reports whether the record marks a shutdown.
func (r Record) IsShutdown() bool { return r.Name == "shutdown" }

// IsUser reports whether the record is an ordinary user session.
func (r Record) IsUser() bool { return r.Name != "" && !r.IsReboot() && !r.IsShutdown() }

// Verdict classifies the event that triggered the logout hook.
type Verdict int

const (
	// RebootNotLogout: the hook fired for a reboot with no preceding user
	// logout visible in history. Also the fail-safe verdict for malformed
	// or empty history.
	RebootNotLogout Verdict = iota
	// RebootAfterLogout: a reboot that followed an already-handled logout.
	RebootAfterLogout
	// GenuineLogout: an interactive user logout; logout items may run.
	GenuineLogout
)

func (v Verdict) String() string {
	switch v {
	case GenuineLogout:
		return "genuine logout"
	case RebootAfterLogout:
		return "reboot after logout"
	default:
		return "reboot, not a logout"
	}
}

// Detect classifies the triggering event from the most recent history
// records. A reboot at the top of history is still a genuine logout when it
// shares a boundary time with the user session it interrupted, either
// directly or through an intervening shutdown record.
func Detect(records []Record) Verdict {
	if len(records) == 0 {
		return RebootNotLogout
	}
	r0 := records[0]
	if !r0.IsReboot() {
		return GenuineLogout
	}
	if len(records) >= 3 {
		r1, r2 := records[1], records[2]
		if r1.IsShutdown() && r2.IsUser() && r1.End != "" && r1.End == r2.End {
			return GenuineLogout
		}
	}
	if len(records) >= 2 {
		r1 := records[1]
		if r1.IsUser() && r0.End != "" && r0.End == r1.End {
			return GenuineLogout
		}
	}
	if len(records) >= 2 && records[1].IsUser() {
		return RebootAfterLogout
	}
	if len(records) >= 3 && records[1].IsShutdown() && records[2].IsUser() {
		return RebootAfterLogout
	}
	return RebootNotLogout
}

var clockToken = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)

// ParseHistory parses `last`-style output into records, most recent first.
// Lines that do not look like session records (the trailing "wtmp begins"
// line, blanks) are skipped; a line with no recognizable clock token is
// dropped rather than guessed at.
func ParseHistory(out string) []Record {
	var records []Record
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "wtmp begins") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		times := clockToken.FindAllString(line, -1)
		if len(times) == 0 {
			continue
		}
		rec := Record{Name: fields[0], Start: times[0]}
		if rec.IsReboot() || rec.IsShutdown() {
			// Single boundary timestamp.
			rec.End = times[0]
		} else if strings.Contains(line, " - ") && len(times) >= 2 {
			rec.End = times[1]
		}
		records = append(records, rec)
	}
	return records
}

// History supplies recent session records.
type History interface {
	Recent(ctx context.Context, n int) ([]Record, error)
}

// LastHistory queries the OS login-history tool.
type LastHistory struct {
	Run execute.Runner
}

// Recent returns up to n records, most recent first.
func (h *LastHistory) Recent(ctx context.Context, n int) ([]Record, error) {
	res := h.Run.Run(ctx, "last", "-n", strconv.Itoa(n))
	if !res.Launched {
		return nil, fmt.Errorf("query login history: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("login history query exited %d", res.ExitCode)
	}
	return ParseHistory(res.Stdout), nil
}
