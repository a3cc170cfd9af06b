package execute

import (
	"context"
	"fmt"
	"log/slog"
)

// ScriptRunner executes drop-directory scripts directly.
type ScriptRunner struct {
	Run    Runner
	Logger *slog.Logger
}

// Execute runs the script at path. A zero exit is success even when the
// script chatters on stderr (logged as a warning); a non-zero exit or a
// failure to launch at all is an error.
func (s *ScriptRunner) Execute(ctx context.Context, path string) error {
	res := s.Run.Run(ctx, path)
	if !res.Launched {
		return fmt.Errorf("launch script %s: %w", path, res.Err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("script %s exited %d: %s", path, res.ExitCode, errText(res))
	}
	if res.Stderr != "" {
		s.Logger.Warn("script succeeded with error output", "script", path, "stderr", errText(res))
	}
	return nil
}
