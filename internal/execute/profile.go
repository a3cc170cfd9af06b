package execute

import (
	"context"
	"fmt"
	"strings"
)

// ProfileInstaller applies configuration profiles via the OS profiles tool.
type ProfileInstaller struct {
	Run Runner
}

// Install applies the profile at path. Success is "the tool launched and
// produced no error output"; any stderr text is a failure regardless of the
// exit status, because older profiles tools exit zero on some errors.
func (p *ProfileInstaller) Install(ctx context.Context, path string) error {
	res := p.Run.Run(ctx, "profiles", "install", "-path", path)
	if !res.Launched {
		return fmt.Errorf("launch profiles tool: %w", res.Err)
	}
	if strings.TrimSpace(res.Stderr) != "" {
		return fmt.Errorf("install profile %s: %s", path, errText(res))
	}
	return nil
}
