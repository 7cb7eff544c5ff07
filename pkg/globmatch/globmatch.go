// Package globmatch compiles ordered include/exclude glob lists and decides
// whether slash-separated paths are admitted. Exclude always wins over
// include; an empty include list admits every non-excluded path.
//
// Patterns support `**`, `{a,b}` brace alternation, and `[abc]` character
// classes. Matching is case-sensitive; `!` is not negation; `.` and `..` are
// literal segments. Backslashes in candidate paths are normalized to forward
// slashes before matching.
package globmatch

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Decision is the outcome of matching one path.
type Decision int

// Decisions.
const (
	// Allowed means the path passed the filter.
	Allowed Decision = iota
	// DeniedByExclude means an exclude pattern matched.
	DeniedByExclude
	// DeniedByMissingInclude means includes were declared and none matched.
	DeniedByMissingInclude
)

// String renders the decision for diagnostics.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedByExclude:
		return "denied_by_exclude"
	case DeniedByMissingInclude:
		return "denied_by_missing_include"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// IsAllowed reports whether the decision admits the path.
func (d Decision) IsAllowed() bool { return d == Allowed }

// ErrBadPattern wraps a pattern that failed to compile.
type ErrBadPattern struct {
	Pattern string
	Err     error
}

func (e *ErrBadPattern) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %v", e.Pattern, e.Err)
}

func (e *ErrBadPattern) Unwrap() error { return e.Err }

// IncludeExcludeGlobs holds two compiled ordered pattern lists.
type IncludeExcludeGlobs struct {
	include []string
	exclude []string
}

// New validates and compiles the include and exclude pattern lists. Invalid
// patterns (for example a bare `[`) fail here, not at match time.
func New(include, exclude []string) (*IncludeExcludeGlobs, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, &ErrBadPattern{Pattern: p, Err: doublestar.ErrBadPattern}
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, &ErrBadPattern{Pattern: p, Err: doublestar.ErrBadPattern}
		}
	}
	g := &IncludeExcludeGlobs{
		include: append([]string(nil), include...),
		exclude: append([]string(nil), exclude...),
	}
	return g, nil
}

// Normalize converts a candidate path to the slash-separated matching form.
func Normalize(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// Decide matches path against the compiled lists. Exclude wins over include.
func (g *IncludeExcludeGlobs) Decide(path string) Decision {
	p := Normalize(path)
	for _, pat := range g.exclude {
		if ok, _ := doublestar.Match(pat, p); ok {
			return DeniedByExclude
		}
	}
	if len(g.include) == 0 {
		return Allowed
	}
	for _, pat := range g.include {
		if ok, _ := doublestar.Match(pat, p); ok {
			return Allowed
		}
	}
	return DeniedByMissingInclude
}

// IncludeCount returns the number of include patterns.
func (g *IncludeExcludeGlobs) IncludeCount() int { return len(g.include) }

// ExcludeCount returns the number of exclude patterns.
func (g *IncludeExcludeGlobs) ExcludeCount() int { return len(g.exclude) }
