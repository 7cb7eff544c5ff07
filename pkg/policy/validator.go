package policy

import (
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// WarningKind categorizes validator findings.
type WarningKind string

// Warning kinds.
const (
	// WarnEmptyGlob flags a zero-length pattern.
	WarnEmptyGlob WarningKind = "empty_glob"
	// WarnOverlappingAllowDeny flags a pattern present in both lists.
	WarnOverlappingAllowDeny WarningKind = "overlapping_allow_deny"
	// WarnUnreachableRule flags a rule shadowed by a broader deny.
	WarnUnreachableRule WarningKind = "unreachable_rule"
)

// Warning is a single validator finding. Warnings never block compilation.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Validate analyses a profile and reports potential issues.
func Validate(p contract.PolicyProfile) []Warning {
	var warnings []Warning

	warnings = appendEmptyGlobs(warnings, p.AllowedTools, "allowed_tools")
	warnings = appendEmptyGlobs(warnings, p.DisallowedTools, "disallowed_tools")
	warnings = appendEmptyGlobs(warnings, p.DenyRead, "deny_read")
	warnings = appendEmptyGlobs(warnings, p.DenyWrite, "deny_write")
	warnings = appendEmptyGlobs(warnings, p.AllowNetwork, "allow_network")
	warnings = appendEmptyGlobs(warnings, p.DenyNetwork, "deny_network")

	warnings = appendOverlaps(warnings, p.AllowedTools, p.DisallowedTools, "tool")
	warnings = appendOverlaps(warnings, p.AllowNetwork, p.DenyNetwork, "network")

	// A wildcard deny makes every specific allow unreachable.
	if contains(p.DisallowedTools, "*") {
		for _, tool := range p.AllowedTools {
			if tool != "*" {
				warnings = append(warnings, Warning{
					Kind: WarnUnreachableRule,
					Message: fmt.Sprintf(
						"allowed tool '%s' is unreachable because disallowed_tools contains '*'", tool),
				})
			}
		}
	}
	if containsCatchAll(p.DenyRead) {
		warnings = append(warnings, Warning{
			Kind:    WarnUnreachableRule,
			Message: "deny_read contains a catch-all glob; all reads will be denied",
		})
	}
	if containsCatchAll(p.DenyWrite) {
		warnings = append(warnings, Warning{
			Kind:    WarnUnreachableRule,
			Message: "deny_write contains a catch-all glob; all writes will be denied",
		})
	}

	return warnings
}

func appendEmptyGlobs(ws []Warning, patterns []string, field string) []Warning {
	for _, p := range patterns {
		if p == "" {
			ws = append(ws, Warning{
				Kind:    WarnEmptyGlob,
				Message: fmt.Sprintf("empty glob in '%s'", field),
			})
		}
	}
	return ws
}

func appendOverlaps(ws []Warning, allow, deny []string, category string) []Warning {
	for _, a := range allow {
		for _, d := range deny {
			if a == d {
				ws = append(ws, Warning{
					Kind: WarnOverlappingAllowDeny,
					Message: fmt.Sprintf(
						"%s pattern '%s' appears in both allow and deny lists", category, a),
				})
			}
		}
	}
	return ws
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsCatchAll(list []string) bool {
	for _, p := range list {
		if p == "**" || p == "**/*" {
			return true
		}
	}
	return false
}
