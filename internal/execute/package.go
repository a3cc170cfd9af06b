package execute

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultDetachDelay is how long to wait before detaching a disk image, so
// the installer can release its file handles first.
const DefaultDetachDelay = 5 * time.Second

// PackageInstaller installs packages, either directly or from inside a
// mounted disk image.
type PackageInstaller struct {
	Run         Runner
	Target      string // install target volume, normally "/"
	DetachDelay time.Duration
	Logger      *slog.Logger

	sleep func(time.Duration) // test seam
}

// Install installs the package file at path onto the target volume.
func (in *PackageInstaller) Install(ctx context.Context, path string) error {
	res := in.Run.Run(ctx, "installer", "-pkg", path, "-target", in.target())
	if !res.Launched {
		return fmt.Errorf("launch installer: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("install %s exited %d: %s", path, res.ExitCode, errText(res))
	}
	return nil
}

// InstallImage attaches the disk image at path read-only, installs the first
// package found inside (lexicographic order), and detaches the image on every
// exit path. Detach failures are logged, never escalated.
func (in *PackageInstaller) InstallImage(ctx context.Context, path string) error {
	res := in.Run.Run(ctx, "hdiutil", "attach", path, "-nobrowse", "-noverify", "-readonly")
	if !res.Launched {
		return fmt.Errorf("launch hdiutil: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("attach %s exited %d: %s", path, res.ExitCode, errText(res))
	}
	mount, err := parseMountPoint(res.Stdout)
	if err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	defer in.detach(ctx, mount)

	pkg, err := in.findPackage(mount)
	if err != nil {
		return fmt.Errorf("image %s: %w", path, err)
	}
	return in.Install(ctx, pkg)
}

// detach waits out the grace delay and detaches mount.
func (in *PackageInstaller) detach(ctx context.Context, mount string) {
	delay := in.DetachDelay
	if delay == 0 {
		delay = DefaultDetachDelay
	}
	pause := in.sleep
	if pause == nil {
		pause = time.Sleep
	}
	pause(delay)

	res := in.Run.Run(ctx, "hdiutil", "detach", mount)
	if !res.Launched || res.ExitCode != 0 {
		in.Logger.Warn("detach failed, volume may remain mounted", "mount", mount, "stderr", errText(res))
	}
}

// findPackage returns the package to install from a mounted image. With more
// than one candidate the lexicographically first wins and the rest are logged.
func (in *PackageInstaller) findPackage(mount string) (string, error) {
	entries, err := os.ReadDir(mount)
	if err != nil {
		return "", fmt.Errorf("read mounted volume: %w", err)
	}
	var pkgs []string
	for _, e := range entries {
		// Older meta-packages are bundle directories, so directories count too.
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".pkg") || strings.HasSuffix(name, ".mpkg") {
			pkgs = append(pkgs, e.Name())
		}
	}
	if len(pkgs) == 0 {
		return "", fmt.Errorf("no installable package found")
	}
	sort.Strings(pkgs)
	if len(pkgs) > 1 {
		in.Logger.Warn("image contains multiple packages, installing first",
			"installing", pkgs[0], "skipped", strings.Join(pkgs[1:], ", "))
	}
	return filepath.Join(mount, pkgs[0]), nil
}

func (in *PackageInstaller) target() string {
	if in.Target == "" {
		return "/"
	}
	return in.Target
}

// parseMountPoint extracts the mount point from hdiutil attach output: the
// last tab-separated field of the last non-empty line. hdiutil prints
// trailing blank lines, which are skipped.
func parseMountPoint(out string) (string, error) {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		fields := strings.Split(lines[i], "\t")
		for j := len(fields) - 1; j >= 0; j-- {
			if f := strings.TrimSpace(fields[j]); f != "" {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("no mount point in attach output")
}
