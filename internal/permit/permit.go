// Package permit decides whether a drop-directory entry is eligible to run.
// The check is the only authorization gate in the system: items run with the
// privileges of the logout hook, so anything a non-root user could have
// tampered with must be rejected.
package permit

import (
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"

	"github.com/maclogout/sundown/internal/item"
)

const (
	otherWrite = 0o002
	otherExec  = 0o001
)

// Eligible reports whether an item with the given kind, owner uid, and mode
// bits may be processed, along with the reason when it may not.
//
// All kinds require root ownership. Installable kinds (packages, disk images,
// profiles) additionally require the world-write bit clear; they are handed
// to an installer, never executed, so no execute bit is needed. Scripts
// require the world-execute bit set and the world-write bit clear.
func Eligible(kind item.Kind, uid uint32, mode fs.FileMode) (bool, string) {
	if uid != 0 {
		return false, fmt.Sprintf("owner uid %d, expected root", uid)
	}
	perm := mode.Perm()
	if perm&otherWrite != 0 {
		return false, "world-writable"
	}
	if !kind.Installable() && perm&otherExec == 0 {
		return false, "not world-executable"
	}
	return true, ""
}

// Stat returns the owner uid and permission mode of path.
func Stat(path string) (uint32, fs.FileMode, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return st.Uid, fs.FileMode(st.Mode).Perm(), nil
}
