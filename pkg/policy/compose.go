package policy

import (
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// ComposedDecision is the three-valued outcome of a composed evaluation.
type ComposedDecision struct {
	// Kind is "allow", "deny", or "abstain".
	Kind   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// IsAllow reports whether the decision permits the action.
func (d ComposedDecision) IsAllow() bool { return d.Kind == "allow" }

// IsDeny reports whether the decision blocks the action.
func (d ComposedDecision) IsDeny() bool { return d.Kind == "deny" }

// IsAbstain reports whether no applicable rule matched.
func (d ComposedDecision) IsAbstain() bool { return d.Kind == "abstain" }

func composedAllow(reason string) ComposedDecision {
	return ComposedDecision{Kind: "allow", Reason: reason}
}

func composedDeny(reason string) ComposedDecision {
	return ComposedDecision{Kind: "deny", Reason: reason}
}

func abstain() ComposedDecision { return ComposedDecision{Kind: "abstain"} }

// Precedence selects how decisions from multiple profiles combine.
type Precedence string

// Precedence strategies. DenyOverrides is the default and most restrictive.
const (
	DenyOverrides   Precedence = "deny_overrides"
	AllowOverrides  Precedence = "allow_overrides"
	FirstApplicable Precedence = "first_applicable"
)

// Set is a named collection of profiles that can be merged into one.
type Set struct {
	name     string
	profiles []contract.PolicyProfile
}

// NewSet creates an empty policy set.
func NewSet(name string) *Set {
	return &Set{name: name}
}

// Name returns the set's name.
func (s *Set) Name() string { return s.name }

// Add appends a profile to the set.
func (s *Set) Add(p contract.PolicyProfile) {
	s.profiles = append(s.profiles, p)
}

// Merge unions all profile lists into one profile with deny-wins semantics,
// sorted and deduplicated.
func (s *Set) Merge() contract.PolicyProfile {
	var merged contract.PolicyProfile
	for _, p := range s.profiles {
		merged.AllowedTools = append(merged.AllowedTools, p.AllowedTools...)
		merged.DisallowedTools = append(merged.DisallowedTools, p.DisallowedTools...)
		merged.DenyRead = append(merged.DenyRead, p.DenyRead...)
		merged.DenyWrite = append(merged.DenyWrite, p.DenyWrite...)
		merged.AllowNetwork = append(merged.AllowNetwork, p.AllowNetwork...)
		merged.DenyNetwork = append(merged.DenyNetwork, p.DenyNetwork...)
		merged.RequireApprovalFor = append(merged.RequireApprovalFor, p.RequireApprovalFor...)
	}
	merged.AllowedTools = sortDedup(merged.AllowedTools)
	merged.DisallowedTools = sortDedup(merged.DisallowedTools)
	merged.DenyRead = sortDedup(merged.DenyRead)
	merged.DenyWrite = sortDedup(merged.DenyWrite)
	merged.AllowNetwork = sortDedup(merged.AllowNetwork)
	merged.DenyNetwork = sortDedup(merged.DenyNetwork)
	merged.RequireApprovalFor = sortDedup(merged.RequireApprovalFor)
	return merged
}

func sortDedup(in []string) []string {
	if len(in) == 0 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// ComposedEngine evaluates several compiled profiles under one precedence
// strategy.
type ComposedEngine struct {
	engines    []*Engine
	profiles   []contract.PolicyProfile
	precedence Precedence
}

// NewComposed compiles every profile; any invalid glob fails the whole
// composition.
func NewComposed(profiles []contract.PolicyProfile, precedence Precedence) (*ComposedEngine, error) {
	engines := make([]*Engine, 0, len(profiles))
	for i, p := range profiles {
		e, err := Compile(p)
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		engines = append(engines, e)
	}
	if precedence == "" {
		precedence = DenyOverrides
	}
	return &ComposedEngine{engines: engines, profiles: profiles, precedence: precedence}, nil
}

// CheckTool evaluates tool permission across all profiles.
func (c *ComposedEngine) CheckTool(tool string) ComposedDecision {
	return c.combine(func(i int) ComposedDecision {
		// A profile with no tool rules at all has no opinion.
		p := c.profiles[i]
		if len(p.AllowedTools) == 0 && len(p.DisallowedTools) == 0 {
			return abstain()
		}
		d := c.engines[i].CanUseTool(tool)
		if d.Allowed {
			return composedAllow(d.Reason)
		}
		return composedDeny(d.Reason)
	})
}

// CheckRead evaluates read permission across all profiles.
func (c *ComposedEngine) CheckRead(path string) ComposedDecision {
	return c.combine(func(i int) ComposedDecision {
		if len(c.profiles[i].DenyRead) == 0 {
			return abstain()
		}
		d := c.engines[i].CanRead(path)
		if d.Allowed {
			return composedAllow(d.Reason)
		}
		return composedDeny(d.Reason)
	})
}

// CheckWrite evaluates write permission across all profiles.
func (c *ComposedEngine) CheckWrite(path string) ComposedDecision {
	return c.combine(func(i int) ComposedDecision {
		if len(c.profiles[i].DenyWrite) == 0 {
			return abstain()
		}
		d := c.engines[i].CanWrite(path)
		if d.Allowed {
			return composedAllow(d.Reason)
		}
		return composedDeny(d.Reason)
	})
}

func (c *ComposedEngine) combine(eval func(i int) ComposedDecision) ComposedDecision {
	if len(c.engines) == 0 {
		return abstain()
	}
	decisions := make([]ComposedDecision, len(c.engines))
	for i := range c.engines {
		decisions[i] = eval(i)
	}
	switch c.precedence {
	case AllowOverrides:
		for _, d := range decisions {
			if d.IsAllow() {
				return d
			}
		}
		for _, d := range decisions {
			if d.IsDeny() {
				return d
			}
		}
	case FirstApplicable:
		for _, d := range decisions {
			if !d.IsAbstain() {
				return d
			}
		}
	default: // DenyOverrides
		for _, d := range decisions {
			if d.IsDeny() {
				return d
			}
		}
		for _, d := range decisions {
			if d.IsAllow() {
				return d
			}
		}
	}
	return abstain()
}
