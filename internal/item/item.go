// Package item models the filesystem entries found in a drop directory and
// classifies them into the closed set of kinds the pipeline knows how to run.
package item

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Kind is the closed classification of a drop-directory entry.
type Kind int

const (
	// KindIgnored marks entries the pipeline never considers (hidden files).
	KindIgnored Kind = iota
	// KindPackage is an installer package (.pkg or .mpkg) installed directly.
	KindPackage
	// KindDiskImage is a .dmg wrapping a package; it needs a mount step.
	KindDiskImage
	// KindProfile is a configuration profile (.mobileconfig).
	KindProfile
	// KindScript is any other entry, executed directly.
	KindScript
)

// String returns the kind name used in logs and audit entries.
func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindDiskImage:
		return "disk-image"
	case KindProfile:
		return "profile"
	case KindScript:
		return "script"
	default:
		return "ignored"
	}
}

// Installable reports whether the kind is installed rather than executed.
// Installable items do not need an execute bit to be eligible.
func (k Kind) Installable() bool {
	return k == KindPackage || k == KindDiskImage || k == KindProfile
}

// Item is one candidate entry from a drop directory. Items are rebuilt fresh
// on every pass and never mutated after discovery.
type Item struct {
	Path string // absolute path
	Name string
	Kind Kind
	UID  uint32
	Mode fs.FileMode
}

// Classify maps a file name to its Kind by suffix, case-insensitively.
// Hidden files (leading dot) are KindIgnored; everything that is not a
// package, disk image, or profile is a script.
func Classify(name string) Kind {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return KindIgnored
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".pkg", ".mpkg":
		return KindPackage
	case ".dmg":
		return KindDiskImage
	case ".mobileconfig":
		return KindProfile
	default:
		return KindScript
	}
}
