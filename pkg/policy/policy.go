// Package policy compiles declarative policy profiles into decision engines
// for tool use, filesystem reads/writes, and network access.
//
// Decisions are structured values, not errors: the tool dispatcher decides
// whether a denial is fatal.
package policy

import (
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/globmatch"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Allow builds a permitting decision.
func Allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }

// Deny builds a denying decision.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Engine is a compiled PolicyProfile.
type Engine struct {
	toolRules    *globmatch.IncludeExcludeGlobs
	denyRead     *globmatch.IncludeExcludeGlobs
	denyWrite    *globmatch.IncludeExcludeGlobs
	networkRules *globmatch.IncludeExcludeGlobs
}

// Compile compiles the profile's glob lists. Invalid patterns fail here.
func Compile(p contract.PolicyProfile) (*Engine, error) {
	toolRules, err := globmatch.New(p.AllowedTools, p.DisallowedTools)
	if err != nil {
		return nil, fmt.Errorf("compile tool globs: %w", err)
	}
	denyRead, err := globmatch.New(nil, p.DenyRead)
	if err != nil {
		return nil, fmt.Errorf("compile deny_read globs: %w", err)
	}
	denyWrite, err := globmatch.New(nil, p.DenyWrite)
	if err != nil {
		return nil, fmt.Errorf("compile deny_write globs: %w", err)
	}
	network, err := globmatch.New(p.AllowNetwork, p.DenyNetwork)
	if err != nil {
		return nil, fmt.Errorf("compile network globs: %w", err)
	}
	return &Engine{
		toolRules:    toolRules,
		denyRead:     denyRead,
		denyWrite:    denyWrite,
		networkRules: network,
	}, nil
}

// CanUseTool decides whether the named tool may run: allow-listed (when the
// allow list is nonempty) and not deny-listed.
func (e *Engine) CanUseTool(name string) Decision {
	switch e.toolRules.Decide(name) {
	case globmatch.DeniedByExclude:
		return Deny(fmt.Sprintf("tool '%s' is disallowed", name))
	case globmatch.DeniedByMissingInclude:
		return Deny(fmt.Sprintf("tool '%s' not in allowlist", name))
	default:
		return Allow(fmt.Sprintf("tool '%s' permitted", name))
	}
}

// CanRead decides whether the path may be read; denied iff deny_read matches.
func (e *Engine) CanRead(path string) Decision {
	if !e.denyRead.Decide(path).IsAllowed() {
		return Deny(fmt.Sprintf("read denied for '%s'", path))
	}
	return Allow(fmt.Sprintf("read permitted for '%s'", path))
}

// CanWrite decides whether the path may be written; denied iff deny_write
// matches.
func (e *Engine) CanWrite(path string) Decision {
	if !e.denyWrite.Decide(path).IsAllowed() {
		return Deny(fmt.Sprintf("write denied for '%s'", path))
	}
	return Allow(fmt.Sprintf("write permitted for '%s'", path))
}

// CanNetwork decides whether the host may be contacted: allow-listed (when
// the allow list is nonempty) and not deny-listed.
func (e *Engine) CanNetwork(host string) Decision {
	switch e.networkRules.Decide(host) {
	case globmatch.DeniedByExclude:
		return Deny(fmt.Sprintf("network access to '%s' is denied", host))
	case globmatch.DeniedByMissingInclude:
		return Deny(fmt.Sprintf("host '%s' not in network allowlist", host))
	default:
		return Allow(fmt.Sprintf("network access to '%s' permitted", host))
	}
}

// RequiresApproval reports whether the named action matches the profile's
// require_approval_for list. The engine does not block; the dispatcher
// escalates.
func RequiresApproval(p contract.PolicyProfile, action string) bool {
	rules, err := globmatch.New(p.RequireApprovalFor, nil)
	if err != nil || len(p.RequireApprovalFor) == 0 {
		return false
	}
	return rules.Decide(action) == globmatch.Allowed
}
