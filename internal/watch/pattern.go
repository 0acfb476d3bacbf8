package watch

import (
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns watch controllers, models, helpers and lib.
var DefaultPatterns = []string{
	"app/{controllers,models,helpers}/**/*.rb",
	"lib/**/*.rb",
}

// DefaultExcludes are editor and OS droppings that never trigger a reload.
var DefaultExcludes = []string{
	"*.swp",
	"*.swo",
	".*.sw?",
	"*~",
	"#*#",
	".#*",
	".DS_Store",
	"*.tmp",
}

// Matcher filters root-relative, slash-separated paths.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher validates patterns. Includes match the whole relative path;
// excludes match the relative path or the base name.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

// Match reports whether rel is included and not excluded.
func (m *Matcher) Match(rel string) bool {
	if m.Excluded(rel) {
		return false
	}
	if len(m.include) == 0 {
		return true
	}
	for _, p := range m.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Excluded reports whether rel matches an exclude pattern.
func (m *Matcher) Excluded(rel string) bool {
	base := path.Base(rel)
	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}
