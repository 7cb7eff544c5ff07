package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/ir"
)

// Fidelity qualifies how much semantic content survived a translation.
type Fidelity string

// Fidelity labels. Identity translations are lossless; cross-dialect
// translations without loss entries are lossy-supported; anything that
// recorded a loss is degraded.
const (
	Lossless       Fidelity = "lossless"
	LossySupported Fidelity = "lossy_supported"
	Degraded       Fidelity = "degraded"
)

// Report describes one translation.
type Report struct {
	SourceDialect  Dialect  `json:"source_dialect"`
	TargetDialect  Dialect  `json:"target_dialect"`
	MessagesMapped int      `json:"messages_mapped"`
	Losses         []string `json:"losses"`
	Fidelity       Fidelity `json:"fidelity"`
}

// MapViaIR translates a message array from one dialect's shape to another's
// through the IR. The identity translation returns a deep copy with lossless
// fidelity.
func MapViaIR(source, target Dialect, messages []map[string]any) ([]map[string]any, Report, error) {
	report := Report{
		SourceDialect: source,
		TargetDialect: target,
		Losses:        []string{},
	}

	if source == target {
		out, err := deepCopyMessages(messages)
		if err != nil {
			return nil, report, err
		}
		report.MessagesMapped = len(messages)
		report.Fidelity = Lossless
		return out, report, nil
	}

	conv, losses, err := ToIR(source, messages)
	if err != nil {
		return nil, report, err
	}
	report.Losses = append(report.Losses, losses...)

	out, losses := FromIR(target, conv)
	report.Losses = append(report.Losses, losses...)
	report.MessagesMapped = len(out)

	if len(report.Losses) == 0 {
		report.Fidelity = LossySupported
	} else {
		report.Fidelity = Degraded
	}
	return out, report, nil
}

// MapRaw translates raw JSON. Anything but a JSON array is rejected.
func MapRaw(source, target Dialect, raw json.RawMessage) (json.RawMessage, Report, error) {
	var messages []map[string]any
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, Report{SourceDialect: source, TargetDialect: target},
			fmt.Errorf("messages must be a JSON array of objects: %w", err)
	}
	out, report, err := MapViaIR(source, target, messages)
	if err != nil {
		return nil, report, err
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, report, err
	}
	return encoded, report, nil
}

// ToIR projects a dialect-shaped message array onto the IR.
func ToIR(source Dialect, messages []map[string]any) (ir.Conversation, []string, error) {
	switch {
	case source == Claude:
		conv, losses := claudeToIR(messages)
		return conv, losses, nil
	case source == Gemini:
		conv, losses := geminiToIR(messages)
		return conv, losses, nil
	case source == Copilot:
		conv, losses := copilotToIR(messages)
		return conv, losses, nil
	case openAIShaped(source):
		conv, losses := openaiToIR(messages)
		return conv, losses, nil
	case source == Abp || source == Mock:
		conv, losses := claudeToIR(messages)
		return conv, losses, nil
	default:
		return ir.Conversation{}, nil, fmt.Errorf("no IR projection for dialect %q", source)
	}
}

// FromIR lowers an IR conversation into a dialect-shaped message array.
func FromIR(target Dialect, conv ir.Conversation) ([]map[string]any, []string) {
	switch {
	case target == Claude:
		return claudeFromIR(conv)
	case target == Gemini:
		return geminiFromIR(conv)
	case target == Copilot:
		return copilotFromIR(conv)
	case openAIShaped(target):
		return openaiFromIR(conv)
	default:
		return claudeFromIR(conv)
	}
}

func deepCopyMessages(messages []map[string]any) ([]map[string]any, error) {
	encoded, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}
