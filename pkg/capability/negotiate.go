// Package capability matches a Work Order's required capabilities against a
// backend's declared manifest and reports, per requirement, whether the
// backend serves it natively, through emulation, or not at all.
package capability

import (
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
)

// SupportKind classifies one report entry.
type SupportKind string

// Support kinds.
const (
	SupportNative      SupportKind = "native"
	SupportEmulated    SupportKind = "emulated"
	SupportUnsupported SupportKind = "unsupported"
)

// Support is the per-capability outcome of a check. Detail explains an
// emulation; Reason explains a refusal.
type Support struct {
	Kind   SupportKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// ReportEntry pairs a required capability with its negotiated support.
type ReportEntry struct {
	Capability contract.Capability `json:"capability"`
	Support    Support             `json:"support"`
}

// Report is the outcome of checking one Work Order against one backend.
type Report struct {
	Source  dialect.Dialect `json:"source"`
	Target  dialect.Dialect `json:"target"`
	Entries []ReportEntry   `json:"entries"`
}

// AllSatisfiable reports whether no entry is unsupported.
func (r Report) AllSatisfiable() bool {
	for _, e := range r.Entries {
		if e.Support.Kind == SupportUnsupported {
			return false
		}
	}
	return true
}

// Unsupported returns the capabilities no strategy can serve.
func (r Report) Unsupported() []contract.Capability {
	var out []contract.Capability
	for _, e := range r.Entries {
		if e.Support.Kind == SupportUnsupported {
			out = append(out, e.Capability)
		}
	}
	return out
}

// NegotiationResult buckets a Work Order's requirements against a manifest.
type NegotiationResult struct {
	// Native holds requirements the manifest satisfies at the required level.
	Native []contract.Capability
	// Emulatable holds emulated-minimum requirements the manifest meets with
	// emulated or restricted support. A native-minimum requirement met only
	// by emulated or restricted support is Unsupported.
	Emulatable []contract.Capability
	// Unsupported holds requirements nothing can serve.
	Unsupported []contract.Capability
}

// IsCompatible reports whether every requirement is native or emulatable.
func (n NegotiationResult) IsCompatible() bool {
	return len(n.Unsupported) == 0
}

// Negotiate buckets each requirement of reqs against the manifest.
func Negotiate(manifest contract.CapabilityManifest, reqs contract.Requirements) NegotiationResult {
	var result NegotiationResult
	for _, req := range reqs.Required {
		level := manifest.Lookup(req.Capability)
		switch {
		case level.Satisfies(req.MinSupport) && level.Kind == contract.SupportNative:
			result.Native = append(result.Native, req.Capability)
		case level.Satisfies(req.MinSupport):
			// Emulated or restricted support meeting an emulated-min bar.
			result.Emulatable = append(result.Emulatable, req.Capability)
		case req.MinSupport == contract.MinEmulated && level.Kind == contract.SupportUnsupported:
			result.Unsupported = append(result.Unsupported, req.Capability)
		case req.MinSupport == contract.MinNative && level.Kind != contract.SupportUnsupported:
			// Backend has degraded support but the order demands native.
			result.Unsupported = append(result.Unsupported, req.Capability)
		default:
			result.Unsupported = append(result.Unsupported, req.Capability)
		}
	}
	return result
}

// Check produces the capability report for a Work Order against one backend
// manifest and dialect pair.
func Check(wo contract.WorkOrder, manifest contract.CapabilityManifest, source, target dialect.Dialect) Report {
	report := Report{Source: source, Target: target}
	for _, req := range wo.Requirements.Required {
		level := manifest.Lookup(req.Capability)
		entry := ReportEntry{Capability: req.Capability}
		switch {
		case level.Kind == contract.SupportNative:
			entry.Support = Support{Kind: SupportNative}
		case level.Satisfies(req.MinSupport):
			detail := "served by backend emulation layer"
			if level.Kind == contract.SupportRestricted {
				detail = fmt.Sprintf("restricted support: %s", level.Reason)
			}
			entry.Support = Support{Kind: SupportEmulated, Detail: detail}
		default:
			reason := fmt.Sprintf("backend support %s does not meet required %s",
				level.Kind, req.MinSupport)
			entry.Support = Support{Kind: SupportUnsupported, Reason: reason}
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}
