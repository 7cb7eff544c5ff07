package contract

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Capability is a closed enumeration of backend features a Work Order can
// require. The wire form is snake_case; unknown tokens are rejected on
// decode.
type Capability string

// The capability set. Ordering of the constants matches the snake_case
// lexicographic total order used for stable manifest serialization.
const (
	CapCheckpointing              Capability = "checkpointing"
	CapCodeExecution              Capability = "code_execution"
	CapExtendedThinking           Capability = "extended_thinking"
	CapHooksPostToolUse           Capability = "hooks_post_tool_use"
	CapHooksPreToolUse            Capability = "hooks_pre_tool_use"
	CapImageInput                 Capability = "image_input"
	CapLogprobs                   Capability = "logprobs"
	CapMcpClient                  Capability = "mcp_client"
	CapMcpServer                  Capability = "mcp_server"
	CapPdfInput                   Capability = "pdf_input"
	CapSeedDeterminism            Capability = "seed_determinism"
	CapSessionFork                Capability = "session_fork"
	CapSessionResume              Capability = "session_resume"
	CapStopSequences              Capability = "stop_sequences"
	CapStreaming                  Capability = "streaming"
	CapStructuredOutputJSONSchema Capability = "structured_output_json_schema"
	CapToolAskUser                Capability = "tool_ask_user"
	CapToolBash                   Capability = "tool_bash"
	CapToolEdit                   Capability = "tool_edit"
	CapToolGlob                   Capability = "tool_glob"
	CapToolGrep                   Capability = "tool_grep"
	CapToolRead                   Capability = "tool_read"
	CapToolUse                    Capability = "tool_use"
	CapToolWebFetch               Capability = "tool_web_fetch"
	CapToolWebSearch              Capability = "tool_web_search"
	CapToolWrite                  Capability = "tool_write"
)

var knownCapabilities = map[Capability]struct{}{
	CapCheckpointing: {}, CapCodeExecution: {}, CapExtendedThinking: {},
	CapHooksPostToolUse: {}, CapHooksPreToolUse: {}, CapImageInput: {},
	CapLogprobs: {}, CapMcpClient: {}, CapMcpServer: {}, CapPdfInput: {},
	CapSeedDeterminism: {}, CapSessionFork: {}, CapSessionResume: {},
	CapStopSequences: {}, CapStreaming: {}, CapStructuredOutputJSONSchema: {},
	CapToolAskUser: {}, CapToolBash: {}, CapToolEdit: {}, CapToolGlob: {},
	CapToolGrep: {}, CapToolRead: {}, CapToolUse: {}, CapToolWebFetch: {},
	CapToolWebSearch: {}, CapToolWrite: {},
}

// AllCapabilities returns every capability token in the enum's total order.
func AllCapabilities() []Capability {
	caps := make([]Capability, 0, len(knownCapabilities))
	for c := range knownCapabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Valid reports whether c is a member of the closed capability set.
func (c Capability) Valid() bool {
	_, ok := knownCapabilities[c]
	return ok
}

// ParseCapability decodes a wire token into a Capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability token %q", s)
	}
	return c, nil
}

// UnmarshalJSON rejects tokens outside the closed set.
func (c *Capability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCapability(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalText rejects unknown tokens when capabilities appear as map keys
// (manifest decoding goes through encoding.TextUnmarshaler).
func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := ParseCapability(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MinSupport is the minimum support level a requirement accepts.
type MinSupport string

// Minimum support levels.
const (
	MinNative   MinSupport = "native"
	MinEmulated MinSupport = "emulated"
)

// UnmarshalJSON rejects values outside {native, emulated}.
func (m *MinSupport) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch MinSupport(s) {
	case MinNative, MinEmulated:
		*m = MinSupport(s)
		return nil
	default:
		return fmt.Errorf("unknown min_support %q", s)
	}
}

// SupportLevelKind discriminates the SupportLevel variants.
type SupportLevelKind string

// Support level kinds.
const (
	SupportNative      SupportLevelKind = "native"
	SupportEmulated    SupportLevelKind = "emulated"
	SupportUnsupported SupportLevelKind = "unsupported"
	SupportRestricted  SupportLevelKind = "restricted"
)

// SupportLevel describes how a backend supports one capability. The
// restricted variant carries a reason; the other variants are bare tokens on
// the wire.
type SupportLevel struct {
	Kind SupportLevelKind
	// Reason is set only for restricted support.
	Reason string
}

// Native is the native support level.
func Native() SupportLevel { return SupportLevel{Kind: SupportNative} }

// Emulated is the emulated support level.
func Emulated() SupportLevel { return SupportLevel{Kind: SupportEmulated} }

// Unsupported is the unsupported support level.
func Unsupported() SupportLevel { return SupportLevel{Kind: SupportUnsupported} }

// Restricted is a support level constrained for the given reason.
func Restricted(reason string) SupportLevel {
	return SupportLevel{Kind: SupportRestricted, Reason: reason}
}

// Satisfies implements the support lattice: native >= emulated >= restricted
// > unsupported. Native requirements accept only native support; emulated
// requirements accept anything but unsupported.
func (s SupportLevel) Satisfies(min MinSupport) bool {
	switch min {
	case MinNative:
		return s.Kind == SupportNative
	case MinEmulated:
		return s.Kind != SupportUnsupported
	default:
		return false
	}
}

// MarshalJSON emits bare tokens for native/emulated/unsupported and
// {"restricted":{"reason":…}} for the restricted variant.
func (s SupportLevel) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SupportRestricted:
		return json.Marshal(map[string]map[string]string{
			"restricted": {"reason": s.Reason},
		})
	case SupportNative, SupportEmulated, SupportUnsupported:
		return json.Marshal(string(s.Kind))
	default:
		return nil, fmt.Errorf("unknown support level kind %q", s.Kind)
	}
}

// UnmarshalJSON accepts both the bare-token and the restricted object forms.
func (s *SupportLevel) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		switch SupportLevelKind(token) {
		case SupportNative, SupportEmulated, SupportUnsupported:
			*s = SupportLevel{Kind: SupportLevelKind(token)}
			return nil
		default:
			return fmt.Errorf("unknown support level %q", token)
		}
	}
	var obj map[string]struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("support level must be a token or a restricted object: %w", err)
	}
	inner, ok := obj["restricted"]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("unknown support level object (want restricted)")
	}
	*s = Restricted(inner.Reason)
	return nil
}

// CapabilityManifest maps each capability a backend knows about to its
// support level. Serialization is stably ordered: JSON object keys follow the
// capability enum's total order.
type CapabilityManifest map[Capability]SupportLevel

// Lookup returns the declared support level, defaulting to unsupported for
// capabilities absent from the manifest.
func (m CapabilityManifest) Lookup(c Capability) SupportLevel {
	if lvl, ok := m[c]; ok {
		return lvl
	}
	return Unsupported()
}

// Satisfies reports whether the manifest meets the given requirement.
func (m CapabilityManifest) Satisfies(req RequiredCapability) bool {
	return m.Lookup(req.Capability).Satisfies(req.MinSupport)
}

// RequiredCapability is one entry of a Work Order's requirements.
type RequiredCapability struct {
	Capability Capability `json:"capability"`
	MinSupport MinSupport `json:"min_support"`
}

// Requirements is the capability requirement block of a Work Order.
type Requirements struct {
	Required []RequiredCapability `json:"required"`
}
