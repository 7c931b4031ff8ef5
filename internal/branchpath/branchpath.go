// Package branchpath implements pure functions over slash-delimited branch
// paths: parent-of, root-test, ancestor-test. It holds no state and makes no
// I/O calls.
package branchpath

import (
	"errors"
	"strings"
)

// Root is the literal path of the repository's root branch.
const Root = "MAIN"

// Sentinel errors returned by Validate. Callers that need a typed,
// API-facing error wrap these with brancherr.InvalidArgument.
var (
	errEmptyPath        = errors.New("branchpath: path must not be empty")
	errUnderscoreInPath = errors.New("branchpath: path must not contain '_'")
)

// IsRoot reports whether path is the root branch.
func IsRoot(path string) bool {
	return path == Root
}

// Parent returns the path minus its last slash-delimited segment, and true.
// It returns ("", false) when path is the root branch (which has no
// parent).
func Parent(path string) (string, bool) {
	if IsRoot(path) {
		return "", false
	}
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		// A non-root path with no slash is a direct child of MAIN.
		return Root, true
	}
	return path[:idx], true
}

// IsAncestor reports whether ancestor is a strict ancestor of path, i.e.
// path is ancestor itself followed by "/" and at least one more segment.
func IsAncestor(ancestor, path string) bool {
	if ancestor == path {
		return false
	}
	return strings.HasPrefix(path, ancestor+"/")
}

// IsDescendant reports whether path is a strict descendant of ancestor.
func IsDescendant(path, ancestor string) bool {
	return IsAncestor(ancestor, path)
}

// Validate checks the structural preconditions every branch path must
// satisfy: non-empty and free of the '_' character (reserved).
func Validate(path string) error {
	if path == "" {
		return errEmptyPath
	}
	if strings.ContainsRune(path, '_') {
		return errUnderscoreInPath
	}
	return nil
}

// Segments splits path into its slash-delimited components.
func Segments(path string) []string {
	return strings.Split(path, "/")
}

// Depth returns the number of slash-delimited segments in path. MAIN has
// depth 1.
func Depth(path string) int {
	return len(Segments(path))
}
