package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Reasons reported for rejected files.
const (
	ReasonSize       = "file size validation error"
	ReasonExtension  = "extension error"
	ReasonBoth       = ReasonSize + " and " + ReasonExtension
	ReasonNotRegular = "not a regular file"
)

// Result is the outcome of validating a single file.
type Result struct {
	OK     bool
	Reason string
	// Size is the file size in bytes when the file could be inspected.
	Size int64
}

// Validate checks path against the size limit and allowed extensions. The
// allowed list is expected in NormalizeExtension form.
func Validate(path string, maxSizeBytes int64, allowed []string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Reason: fmt.Sprintf("unable to validate: %v", err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Reason: ReasonNotRegular}
	}

	res := Result{Size: info.Size()}
	sizeOK := info.Size() <= maxSizeBytes
	extOK := Allowed(filepath.Ext(path), allowed)

	switch {
	case sizeOK && extOK:
		res.OK = true
	case !sizeOK && !extOK:
		res.Reason = ReasonBoth
	case !sizeOK:
		res.Reason = ReasonSize
	default:
		res.Reason = ReasonExtension
	}
	return res
}

// Allowed reports whether ext matches one of the normalized allowed extensions.
// An empty extension never matches.
func Allowed(ext string, allowed []string) bool {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return false
	}
	return slices.Contains(allowed, ext)
}

// NormalizeExtension trims whitespace, case-folds and prefixes a single dot.
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + cases.Fold().String(ext)
}

// NormalizeExtensions normalizes every entry, dropping blanks and duplicates
// while preserving order.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		norm := NormalizeExtension(ext)
		if norm == "" || slices.Contains(out, norm) {
			continue
		}
		out = append(out, norm)
	}
	return out
}
