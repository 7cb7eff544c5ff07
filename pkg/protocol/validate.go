package protocol

import (
	"encoding/json"
	"fmt"
)

// MaxRecommendedPayload is the advisory single-frame size; exceeding it is a
// warning, not an error.
const MaxRecommendedPayload = 10 * 1024 * 1024

// ValidationError is a hard violation of per-envelope rules.
type ValidationError struct {
	// Field names the offending field.
	Field string
	// Detail explains the violation.
	Detail string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Detail, e.Field)
}

func missingField(field string) ValidationError {
	return ValidationError{Field: field, Detail: "field must not be empty"}
}

// ValidationWarning is a non-fatal per-envelope finding.
type ValidationWarning struct {
	Kind    string
	Message string
}

// ValidationResult is the outcome of validating one envelope. Valid is true
// when there are no errors; warnings are always allowed.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

func (r *ValidationResult) pushError(e ValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, e)
}

func (r *ValidationResult) pushWarning(kind, message string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Kind: kind, Message: message})
}

// SequenceErrorKind classifies sequence-level violations.
type SequenceErrorKind string

// Sequence error kinds.
const (
	SeqMissingHello      SequenceErrorKind = "missing_hello"
	SeqMissingTerminal   SequenceErrorKind = "missing_terminal"
	SeqHelloNotFirst     SequenceErrorKind = "hello_not_first"
	SeqMultipleTerminals SequenceErrorKind = "multiple_terminals"
	SeqRefIDMismatch     SequenceErrorKind = "ref_id_mismatch"
	SeqOutOfOrderEvents  SequenceErrorKind = "out_of_order_events"
)

// SequenceError is one violation of the Hello → Run → Event* → terminal
// flow.
type SequenceError struct {
	Kind SequenceErrorKind
	// Position is the offending index for hello_not_first.
	Position int
	// Expected and Found carry the ids for ref_id_mismatch.
	Expected string
	Found    string
}

func (e SequenceError) Error() string {
	switch e.Kind {
	case SeqMissingHello:
		return "sequence is missing a Hello envelope"
	case SeqMissingTerminal:
		return "sequence has no terminal (Final or Fatal) envelope"
	case SeqHelloNotFirst:
		return fmt.Sprintf("Hello envelope at position %d, expected at 0", e.Position)
	case SeqMultipleTerminals:
		return "sequence contains multiple terminal envelopes"
	case SeqRefIDMismatch:
		return fmt.Sprintf("ref_id mismatch: expected %q, found %q", e.Expected, e.Found)
	case SeqOutOfOrderEvents:
		return "Event envelope found outside the Run-terminal window"
	default:
		return string(e.Kind)
	}
}

// Validator checks envelopes and envelope sequences against protocol rules.
type Validator struct {
	maxRecommendedPayload int
}

// NewValidator builds a validator with the default payload threshold.
func NewValidator() *Validator {
	return &Validator{maxRecommendedPayload: MaxRecommendedPayload}
}

// Validate checks one envelope, accumulating every error and warning rather
// than short-circuiting.
func (v *Validator) Validate(env Envelope) ValidationResult {
	result := ValidationResult{Valid: true}

	if encoded, err := json.Marshal(env); err == nil && len(encoded) > v.maxRecommendedPayload {
		result.pushWarning("large_payload", fmt.Sprintf(
			"payload size %d bytes exceeds recommended maximum of %d bytes",
			len(encoded), v.maxRecommendedPayload))
	}

	switch env.T {
	case TagHello:
		if env.ContractVersion == "" {
			result.pushError(missingField("contract_version"))
		} else if _, err := ParseVersion(env.ContractVersion); err != nil {
			result.pushError(ValidationError{
				Field:  "contract_version",
				Detail: fmt.Sprintf("invalid protocol version %q", env.ContractVersion),
			})
		}
		if env.Backend == nil || env.Backend.ID == "" {
			result.pushError(missingField("backend.id"))
		} else {
			if env.Backend.BackendVersion == "" {
				result.pushWarning("missing_optional_field", "missing optional field: backend.backend_version")
			}
			if env.Backend.AdapterVersion == "" {
				result.pushWarning("missing_optional_field", "missing optional field: backend.adapter_version")
			}
		}
	case TagRun:
		if env.ID == "" {
			result.pushError(missingField("id"))
		}
		if env.WorkOrder == nil || env.WorkOrder.Task == "" {
			result.pushError(missingField("work_order.task"))
		}
	case TagEvent:
		if env.RefID == "" {
			result.pushError(missingField("ref_id"))
		}
		if env.Event == nil {
			result.pushError(missingField("event"))
		}
	case TagFinal:
		if env.RefID == "" {
			result.pushError(missingField("ref_id"))
		}
		if env.Receipt == nil {
			result.pushError(missingField("receipt"))
		}
	case TagFatal:
		if env.Error == "" {
			result.pushError(missingField("error"))
		}
		if env.RefID == "" {
			result.pushWarning("missing_optional_field", "missing optional field: ref_id")
		}
	case TagCancel:
		if env.RefID == "" {
			result.pushError(missingField("ref_id"))
		}
	case TagPing, TagPong:
		// No payload.
	default:
		result.pushError(ValidationError{
			Field:  "t",
			Detail: fmt.Sprintf("unknown envelope tag %q", env.T),
		})
	}
	return result
}

// ValidateSequence checks an ordered envelope sequence against the expected
// protocol flow. Ping, pong, and cancel frames are ignored by the flow
// checks. Identical findings that follow one another are collapsed into one.
func (v *Validator) ValidateSequence(envelopes []Envelope) []SequenceError {
	var errs []SequenceError

	if len(envelopes) == 0 {
		return []SequenceError{{Kind: SeqMissingHello}, {Kind: SeqMissingTerminal}}
	}

	helloPos := -1
	for i, e := range envelopes {
		if e.T == TagHello {
			helloPos = i
			break
		}
	}
	switch {
	case helloPos < 0:
		errs = append(errs, SequenceError{Kind: SeqMissingHello})
	case helloPos > 0:
		errs = append(errs, SequenceError{Kind: SeqHelloNotFirst, Position: helloPos})
	}

	var terminalPositions []int
	for i, e := range envelopes {
		if e.IsTerminal() {
			terminalPositions = append(terminalPositions, i)
		}
	}
	switch {
	case len(terminalPositions) == 0:
		errs = append(errs, SequenceError{Kind: SeqMissingTerminal})
	case len(terminalPositions) > 1:
		errs = append(errs, SequenceError{Kind: SeqMultipleTerminals})
	}

	runID := ""
	runPos := -1
	for i, e := range envelopes {
		if e.T == TagRun {
			runID = e.ID
			runPos = i
			break
		}
	}
	terminalPos := -1
	if len(terminalPositions) > 0 {
		terminalPos = terminalPositions[0]
	}

	for i, e := range envelopes {
		switch e.T {
		case TagEvent:
			if runID != "" && e.RefID != runID {
				errs = append(errs, SequenceError{
					Kind: SeqRefIDMismatch, Expected: runID, Found: e.RefID,
				})
			}
			afterRun := runPos >= 0 && i > runPos
			beforeTerminal := terminalPos < 0 || i < terminalPos
			if !afterRun || !beforeTerminal {
				errs = append(errs, SequenceError{Kind: SeqOutOfOrderEvents})
			}
		case TagFinal:
			if runID != "" && e.RefID != runID {
				errs = append(errs, SequenceError{
					Kind: SeqRefIDMismatch, Expected: runID, Found: e.RefID,
				})
			}
		case TagFatal:
			if runID != "" && e.RefID != "" && e.RefID != runID {
				errs = append(errs, SequenceError{
					Kind: SeqRefIDMismatch, Expected: runID, Found: e.RefID,
				})
			}
		}
	}

	return dedupSequenceErrors(errs)
}

func dedupSequenceErrors(errs []SequenceError) []SequenceError {
	if len(errs) < 2 {
		return errs
	}
	out := errs[:1]
	for _, e := range errs[1:] {
		if e != out[len(out)-1] {
			out = append(out, e)
		}
	}
	return out
}
