package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed contract version. Peers are compatible when their
// major components match; a minor mismatch is accepted with a warning.
type Version struct {
	Major int
	Minor int
}

// String renders the wire form abp/vMAJOR.MINOR.
func (v Version) String() string {
	return fmt.Sprintf("abp/v%d.%d", v.Major, v.Minor)
}

// Compatible reports whether two versions interoperate.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// ParseVersion parses the wire form abp/vMAJOR.MINOR. The format is fixed by
// the contract; anything else is rejected.
func ParseVersion(s string) (Version, error) {
	rest, ok := strings.CutPrefix(s, "abp/v")
	if !ok {
		return Version{}, fmt.Errorf("invalid contract version %q: missing abp/v prefix", s)
	}
	major, minor, ok := strings.Cut(rest, ".")
	if !ok {
		return Version{}, fmt.Errorf("invalid contract version %q: missing minor component", s)
	}
	maj, err := parseComponent(major)
	if err != nil {
		return Version{}, fmt.Errorf("invalid contract version %q: bad major component", s)
	}
	min, err := parseComponent(minor)
	if err != nil {
		return Version{}, fmt.Errorf("invalid contract version %q: bad minor component", s)
	}
	return Version{Major: maj, Minor: min}, nil
}

// parseComponent accepts plain digit runs only, matching ^[0-9]+$.
func parseComponent(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.Atoi(s)
}
