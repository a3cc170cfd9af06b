package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maclogout/sundown/internal/execute"
)

// Login window states recorded by the OS for the previous session boundary.
const (
	StateLoggedOut = "loggedOut"
	StateRestart   = "Restart"
)

const loginWindowDomain = "/Library/Preferences/com.apple.loginwindow"

// ConsoleState is the last console user and session state the login window
// recorded.
type ConsoleState struct {
	User  string
	State string
}

// ConsoleSource supplies the recorded console state.
type ConsoleSource interface {
	State(ctx context.Context) (ConsoleState, error)
}

// LoginWindow reads the console state from the login window preferences.
type LoginWindow struct {
	Run execute.Runner
}

// State queries the lastUserName and lastUser login window keys.
func (w *LoginWindow) State(ctx context.Context) (ConsoleState, error) {
	user, err := w.read(ctx, "lastUserName")
	if err != nil {
		return ConsoleState{}, err
	}
	state, err := w.read(ctx, "lastUser")
	if err != nil {
		return ConsoleState{}, err
	}
	return ConsoleState{User: user, State: state}, nil
}

func (w *LoginWindow) read(ctx context.Context, key string) (string, error) {
	res := w.Run.Run(ctx, "defaults", "read", loginWindowDomain, key)
	if !res.Launched {
		return "", fmt.Errorf("read login window state: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("read login window key %s: exit %d", key, res.ExitCode)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Detector gates the whole logout pass: the history verdict must be a
// genuine logout, the recorded console state must show the user actually
// left (or the system is restarting), and the console user must not be on
// the ignore list.
type Detector struct {
	History History
	Console ConsoleSource
	Logger  *slog.Logger
}

// ShouldProcess reports whether logout items may run, with a human-readable
// reason when they may not. Failures to read history or console state fail
// safe: the pass is skipped.
func (d *Detector) ShouldProcess(ctx context.Context, isIgnored func(user string) bool) (bool, string) {
	records, err := d.History.Recent(ctx, 3)
	if err != nil {
		d.Logger.Warn("login history unavailable, treating as reboot", "error", err)
		return false, "login history unavailable"
	}
	verdict := Detect(records)
	if verdict != GenuineLogout {
		return false, verdict.String()
	}

	state, err := d.Console.State(ctx)
	if err != nil {
		d.Logger.Warn("console state unavailable, skipping", "error", err)
		return false, "console state unavailable"
	}
	if state.State != StateLoggedOut && state.State != StateRestart {
		return false, fmt.Sprintf("console state %q is not a completed logout", state.State)
	}
	if isIgnored(state.User) {
		return false, fmt.Sprintf("user %q is on the ignore list", state.User)
	}
	return true, ""
}
