// Package redirect remembers the last interesting route so a user lands back
// on it after the sign-in detour.
package redirect

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/voltway/distctl/internal/storage"
)

const (
	// DefaultKey is the storage key of the last visited path
	DefaultKey = "last-visited-path"
	// DefaultPath is where users land when nothing was recorded
	DefaultPath = "/dashboard"
)

// DefaultExcluded never counts as a destination: the root and every
// authentication route.
var DefaultExcluded = []string{"/", "/auth"}

// ErrInvalidPath is returned for anything that is not an in-app path
var ErrInvalidPath = errors.New("redirect: not an in-app path")

// Tracker holds a single last-visited slot. Reading the slot consumes it.
type Tracker struct {
	kv          storage.KV
	key         string
	defaultPath string
	excluded    []string
	mu          sync.Mutex
}

// Option configures a Tracker
type Option func(*Tracker)

// WithDefaultPath overrides the fallback destination
func WithDefaultPath(path string) Option {
	return func(t *Tracker) {
		if path != "" {
			t.defaultPath = path
		}
	}
}

// WithExcluded replaces the exclusion list. "/" only excludes the root
// itself; any other entry excludes the path and everything below it.
func WithExcluded(paths ...string) Option {
	return func(t *Tracker) {
		t.excluded = append([]string(nil), paths...)
	}
}

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(t *Tracker) {
		t.key = key
	}
}

// New creates a tracker backed by kv
func New(kv storage.KV, opts ...Option) *Tracker {
	t := &Tracker{
		kv:          kv,
		key:         DefaultKey,
		defaultPath: DefaultPath,
		excluded:    DefaultExcluded,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DefaultPath returns the fallback destination
func (t *Tracker) DefaultPath() string {
	return t.defaultPath
}

// RecordVisit stores path as the last visited route unless it is excluded.
// It reports whether the slot was written.
func (t *Tracker) RecordVisit(path string) (bool, error) {
	clean, err := normalize(path)
	if err != nil {
		return false, err
	}
	if t.Excluded(clean) {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.kv.Set(t.key, clean); err != nil {
		return false, err
	}
	return true, nil
}

// ComputeRedirect returns the recorded path and clears it, or the default
// path when nothing usable is stored. A second call without an intervening
// RecordVisit always yields the default.
func (t *Tracker) ComputeRedirect() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, err := t.kv.Take(t.key)
	if err != nil {
		return t.defaultPath
	}
	clean, err := normalize(stored)
	if err != nil || t.Excluded(clean) {
		return t.defaultPath
	}
	return clean
}

// Peek returns the recorded path without consuming it
func (t *Tracker) Peek() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, err := t.kv.Get(t.key)
	if err != nil || stored == "" {
		return "", false
	}
	return stored, true
}

// Excluded reports whether path matches the exclusion list
func (t *Tracker) Excluded(path string) bool {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, ex := range t.excluded {
		if ex == "/" {
			if p == "/" || p == "" {
				return true
			}
			continue
		}
		ex = strings.TrimRight(ex, "/")
		if p == ex || strings.HasPrefix(p, ex+"/") {
			return true
		}
	}
	return false
}

// normalize accepts only same-origin absolute paths and keeps their query
func normalize(raw string) (string, error) {
	next := strings.TrimSpace(raw)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "", ErrInvalidPath
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return "", ErrInvalidPath
	}
	// Dot segments are resolved so /x/../auth/login cannot slip past the
	// exclusion list.
	clean := path.Clean(parsed.Path)
	if parsed.RawQuery != "" {
		return clean + "?" + parsed.RawQuery, nil
	}
	return clean, nil
}
