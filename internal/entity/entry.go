package entity

import "strings"

const (
	CategoryRequired = "REQUIRED"
	CategoryRemove   = "REMOVE"
)

// Entry represents a single manifest line: one file the tool must keep
// present (with optional integrity digest) or absent inside the managed
// mods directory. Immutable once parsed.
type Entry struct {
	Category string // REQUIRED, REMOVE or any free-form label
	Filename string // File name inside the mods directory
	URL      string // Download source, ignored for REMOVE entries
	SHA256   string // Optional hex digest, ignored for REMOVE entries
}

// IsRemove reports whether the entry belongs to the reserved REMOVE
// category. Every other category behaves like REQUIRED.
func (e *Entry) IsRemove() bool {
	return strings.EqualFold(e.Category, CategoryRemove)
}

func (e *Entry) IsRequired() bool {
	return strings.EqualFold(e.Category, CategoryRequired)
}

// HasDigest reports whether an expected digest was given for the entry.
func (e *Entry) HasDigest() bool {
	return e.SHA256 != ""
}
