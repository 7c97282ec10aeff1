package store

import (
	"net/url"
	"strings"
)

// Join builds a path from segments. Segments are used verbatim; callers
// that accept user input should pass it through Key first.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Key escapes an arbitrary string so it can be used as one path segment.
func Key(s string) string {
	return url.PathEscape(s)
}

// Parent returns the collection containing path, or "" for a top-level path.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the last segment of path.
func Base(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// ValidatePath rejects empty paths and paths with empty segments.
func ValidatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return ErrInvalidPath
	}
	if strings.Contains(path, "//") {
		return ErrInvalidPath
	}
	return nil
}

// IsWithin reports whether path equals root or lies below it.
func IsWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// affects reports whether a change at changed is visible to a subscriber
// watching watched: the path itself, anything below it, or an ancestor
// being deleted.
func affects(watched string, ev Event) bool {
	if IsWithin(ev.Path, watched) {
		return true
	}
	return ev.Type == EventDelete && IsWithin(watched, ev.Path)
}
