// Package emulation lifts capabilities a backend lacks by rewriting the
// conversation (system-prompt injection) or by flagging output for
// post-processing. Refused capabilities stay unsatisfied and surface before
// any backend is contacted.
package emulation

import (
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/ir"
)

// StrategyKind discriminates emulation strategies.
type StrategyKind string

// Strategy kinds.
const (
	SystemPromptInjection StrategyKind = "system_prompt_injection"
	PostProcessing        StrategyKind = "post_processing"
	Disabled              StrategyKind = "disabled"
)

// Strategy is one resolved emulation approach.
type Strategy struct {
	Kind StrategyKind `json:"kind"`
	// Prompt is the text injected for system_prompt_injection.
	Prompt string `json:"prompt,omitempty"`
	// Detail annotates post_processing strategies.
	Detail string `json:"detail,omitempty"`
	// Reason explains a disabled strategy.
	Reason string `json:"reason,omitempty"`
}

// Inject builds a system-prompt-injection strategy.
func Inject(prompt string) Strategy {
	return Strategy{Kind: SystemPromptInjection, Prompt: prompt}
}

// Post builds a post-processing strategy.
func Post(detail string) Strategy {
	return Strategy{Kind: PostProcessing, Detail: detail}
}

// Refuse builds a disabled strategy.
func Refuse(reason string) Strategy {
	return Strategy{Kind: Disabled, Reason: reason}
}

// Config selects strategies per capability. Overrides replace the built-in
// defaults wholesale for their capability.
type Config struct {
	Overrides map[contract.Capability]Strategy
	// EnableCodeExecution opts into the prompt-based code execution
	// emulation, which is refused by default.
	EnableCodeExecution bool
}

// AppliedEntry records one emulation the engine performed.
type AppliedEntry struct {
	Capability contract.Capability `json:"capability"`
	Strategy   Strategy            `json:"strategy"`
}

// Report summarizes an Apply pass. Disabled capabilities appear as warnings,
// never as applied entries.
type Report struct {
	Applied  []AppliedEntry `json:"applied"`
	Warnings []string       `json:"warnings"`
}

// Engine resolves and applies emulation strategies.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Resolve returns the strategy for one capability: the configured override
// when present, the built-in default otherwise.
func (e *Engine) Resolve(cap contract.Capability) Strategy {
	if s, ok := e.cfg.Overrides[cap]; ok {
		return s
	}
	switch cap {
	case contract.CapExtendedThinking:
		return Inject("Think through the problem step by step inside <thinking> tags before answering.")
	case contract.CapImageInput:
		return Inject("Images are provided as base64 data URLs inside the conversation text; decode and describe them before use.")
	case contract.CapStructuredOutputJSONSchema:
		return Inject("Respond with a single JSON object conforming to the schema provided in the task; emit no prose outside the JSON.")
	case contract.CapCodeExecution:
		if e.cfg.EnableCodeExecution {
			return Inject("Write code to be executed by the harness and report results from the tool output; do not simulate execution.")
		}
		return Refuse("code execution emulation is disabled by default")
	case contract.CapStopSequences:
		return Post("truncate output at the first configured stop sequence")
	default:
		return Refuse(fmt.Sprintf("no emulation strategy for capability %q", cap))
	}
}

// CanEmulate reports whether the capability resolves to a usable strategy.
func (e *Engine) CanEmulate(cap contract.Capability) bool {
	return e.Resolve(cap).Kind != Disabled
}

// CheckMissing resolves strategies for the missing capabilities without
// mutating any conversation. The report matches what Apply would produce.
func (e *Engine) CheckMissing(missing []contract.Capability) Report {
	report := Report{}
	for _, cap := range missing {
		s := e.Resolve(cap)
		if s.Kind == Disabled {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("capability %q cannot be emulated: %s", cap, s.Reason))
			continue
		}
		report.Applied = append(report.Applied, AppliedEntry{Capability: cap, Strategy: s})
	}
	return report
}

// Apply resolves a strategy for each missing capability and applies it to
// the conversation. System-prompt injections compose in order; post-
// processing strategies only annotate the report.
func (e *Engine) Apply(missing []contract.Capability, conv *ir.Conversation) Report {
	report := Report{}
	for _, cap := range missing {
		s := e.Resolve(cap)
		switch s.Kind {
		case SystemPromptInjection:
			if conv != nil {
				conv.AppendSystem(s.Prompt)
			}
			report.Applied = append(report.Applied, AppliedEntry{Capability: cap, Strategy: s})
		case PostProcessing:
			report.Applied = append(report.Applied, AppliedEntry{Capability: cap, Strategy: s})
		case Disabled:
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("capability %q cannot be emulated: %s", cap, s.Reason))
		}
	}
	return report
}

// FidelityLabel grades one capability of a completed run.
type FidelityLabel struct {
	// Kind is "native" or "emulated".
	Kind string `json:"kind"`
	// Strategy is set for emulated capabilities.
	Strategy *Strategy `json:"strategy,omitempty"`
}

// ComputeFidelity labels every capability of a run: native ones from the
// negotiation, emulated ones from the applied report.
func ComputeFidelity(native []contract.Capability, applied []AppliedEntry) map[contract.Capability]FidelityLabel {
	labels := make(map[contract.Capability]FidelityLabel, len(native)+len(applied))
	for _, cap := range native {
		labels[cap] = FidelityLabel{Kind: "native"}
	}
	for _, entry := range applied {
		s := entry.Strategy
		labels[entry.Capability] = FidelityLabel{Kind: "emulated", Strategy: &s}
	}
	return labels
}
