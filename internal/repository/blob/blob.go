package blob

import (
	"errors"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrUnavailable = errors.New("blob storage unavailable")
	ErrInvalidRef  = errors.New("invalid blob ref")
)

// Ref is the slash-separated location of a stored object,
// e.g. "movie-night/playlist/1700000000000_clip.mp4".
type Ref string

type Object struct {
	Ref          Ref
	Size         int64
	LastModified time.Time
}

func (r Ref) String() string {
	return string(r)
}

// Scope returns the directory part of the ref.
func (r Ref) Scope() string {
	return path.Dir(string(r))
}

// Name returns the last element of the ref.
func (r Ref) Name() string {
	return path.Base(string(r))
}

// Valid reports whether r is a clean relative path that stays inside the
// store root.
func (r Ref) Valid() bool {
	s := string(r)
	if s == "" || strings.HasPrefix(s, "/") || strings.Contains(s, "\\") {
		return false
	}
	if path.Clean(s) != s {
		return false
	}
	for _, part := range strings.Split(s, "/") {
		if part == "." || part == ".." || part == "" {
			return false
		}
	}
	return true
}

func Join(elem ...string) Ref {
	return Ref(path.Join(elem...))
}
