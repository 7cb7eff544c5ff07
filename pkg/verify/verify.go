// Package verify runs the closed set of receipt integrity checks and the
// chain-level consistency checks. Output is a structured report: every check
// records its name, outcome, and detail, and nothing short-circuits.
package verify

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/canonicalize"
	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/protocol"
)

// Check is the result of one verification rule.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Report aggregates the checks for one receipt.
type Report struct {
	ReceiptID string  `json:"receipt_id"`
	Checks    []Check `json:"checks"`
	Passed    bool    `json:"passed"`
}

// ChainReport aggregates per-receipt reports plus chain-level checks.
type ChainReport struct {
	ReceiptCount      int      `json:"receipt_count"`
	AllValid          bool     `json:"all_valid"`
	IndividualReports []Report `json:"individual_reports"`
	ChainChecks       []Check  `json:"chain_checks"`
}

// Verifier runs per-receipt checks.
type Verifier struct{}

// NewVerifier creates a verifier.
func NewVerifier() *Verifier { return &Verifier{} }

// Verify runs every receipt check and aggregates the outcome.
func (v *Verifier) Verify(r contract.Receipt) Report {
	checks := []Check{
		v.checkHashIntegrity(r),
		v.checkContractVersion(r),
		v.checkWorkOrderID(r),
		v.checkRunID(r),
		v.checkOutcome(r),
		v.checkBackend(r),
		v.checkTimestamps(r),
		v.checkTraceOrder(r),
		v.checkTraceDuplicateIDs(r),
	}
	passed := true
	for _, c := range checks {
		if !c.Passed {
			passed = false
		}
	}
	return Report{
		ReceiptID: r.Meta.RunID.String(),
		Checks:    checks,
		Passed:    passed,
	}
}

func (v *Verifier) checkHashIntegrity(r contract.Receipt) Check {
	const name = "hash_integrity"
	if r.ReceiptSHA == nil {
		return Check{Name: name, Passed: true, Detail: "no hash present; skipped"}
	}
	recomputed, err := canonicalize.ReceiptHash(r)
	if err != nil {
		return Check{Name: name, Passed: false,
			Detail: fmt.Sprintf("failed to recompute hash: %v", err)}
	}
	if *r.ReceiptSHA != recomputed {
		return Check{Name: name, Passed: false,
			Detail: fmt.Sprintf("expected %s, got %s", recomputed, *r.ReceiptSHA)}
	}
	return Check{Name: name, Passed: true, Detail: "hash matches"}
}

func (v *Verifier) checkContractVersion(r contract.Receipt) Check {
	const name = "contract_version"
	ver := r.Meta.ContractVersion
	if ver == "" {
		return Check{Name: name, Passed: false, Detail: "contract version is empty"}
	}
	if _, err := protocol.ParseVersion(ver); err != nil {
		return Check{Name: name, Passed: false,
			Detail: fmt.Sprintf("invalid format: %q", ver)}
	}
	if ver != contract.ContractVersion {
		return Check{Name: name, Passed: true,
			Detail: fmt.Sprintf("valid format but differs from current (%s): %q",
				contract.ContractVersion, ver)}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("matches current contract version (%s)", contract.ContractVersion)}
}

func (v *Verifier) checkWorkOrderID(r contract.Receipt) Check {
	const name = "work_order_id"
	if r.Meta.WorkOrderID == uuid.Nil {
		return Check{Name: name, Passed: false, Detail: "work order ID is nil UUID"}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("valid UUID: %s", r.Meta.WorkOrderID)}
}

func (v *Verifier) checkRunID(r contract.Receipt) Check {
	const name = "run_id"
	if r.Meta.RunID == uuid.Nil {
		return Check{Name: name, Passed: false, Detail: "run ID is nil UUID"}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("valid UUID: %s", r.Meta.RunID)}
}

func (v *Verifier) checkOutcome(r contract.Receipt) Check {
	const name = "outcome"
	switch r.Outcome {
	case contract.OutcomeComplete, contract.OutcomePartial, contract.OutcomeFailed:
		return Check{Name: name, Passed: true,
			Detail: fmt.Sprintf("recognized variant: %s", r.Outcome)}
	default:
		return Check{Name: name, Passed: false,
			Detail: fmt.Sprintf("unknown outcome: %q", r.Outcome)}
	}
}

func (v *Verifier) checkBackend(r contract.Receipt) Check {
	const name = "backend"
	if r.Backend.ID == "" {
		return Check{Name: name, Passed: false, Detail: "backend ID is empty"}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("backend present: %q", r.Backend.ID)}
}

func (v *Verifier) checkTimestamps(r contract.Receipt) Check {
	const name = "timestamps"
	if r.Meta.StartedAt.After(r.Meta.FinishedAt) {
		return Check{Name: name, Passed: false,
			Detail: fmt.Sprintf("started_at (%s) is after finished_at (%s)",
				r.Meta.StartedAt, r.Meta.FinishedAt)}
	}
	return Check{Name: name, Passed: true, Detail: "started_at <= finished_at"}
}

func (v *Verifier) checkTraceOrder(r contract.Receipt) Check {
	const name = "trace_order"
	if len(r.Trace) < 2 {
		return Check{Name: name, Passed: true,
			Detail: "fewer than 2 trace events; ordering trivially valid"}
	}
	for i := 1; i < len(r.Trace); i++ {
		if r.Trace[i].TS.Before(r.Trace[i-1].TS) {
			return Check{Name: name, Passed: false,
				Detail: fmt.Sprintf("event %d timestamp (%s) precedes event %d (%s)",
					i, r.Trace[i].TS, i-1, r.Trace[i-1].TS)}
		}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("%d trace events in order", len(r.Trace))}
}

func (v *Verifier) checkTraceDuplicateIDs(r contract.Receipt) Check {
	const name = "trace_no_duplicate_ids"
	seen := map[string]struct{}{}
	for _, event := range r.Trace {
		if event.Type != contract.EventToolCall && event.Type != contract.EventToolResult {
			continue
		}
		id := event.ToolUseID
		if id == "" {
			continue
		}
		// A tool_result legitimately references its tool_call's id; only
		// duplicates within the same event kind collide.
		key := string(event.Type) + ":" + id
		if _, dup := seen[key]; dup {
			return Check{Name: name, Passed: false,
				Detail: fmt.Sprintf("duplicate tool_use_id: %q", id)}
		}
		seen[key] = struct{}{}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("no duplicate IDs among %d events", len(r.Trace))}
}

// VerifyChain runs every receipt's checks plus the chain-level ones.
func VerifyChain(chain []contract.Receipt) ChainReport {
	verifier := NewVerifier()
	reports := make([]Report, len(chain))
	allIndividual := true
	for i, r := range chain {
		reports[i] = verifier.Verify(r)
		if !reports[i].Passed {
			allIndividual = false
		}
	}

	chainChecks := []Check{
		checkChainOrder(chain),
		checkNoDuplicateRunIDs(chain),
		checkConsistentVersion(chain),
	}
	allChain := true
	for _, c := range chainChecks {
		if !c.Passed {
			allChain = false
		}
	}

	return ChainReport{
		ReceiptCount:      len(chain),
		AllValid:          allIndividual && allChain,
		IndividualReports: reports,
		ChainChecks:       chainChecks,
	}
}

func checkChainOrder(chain []contract.Receipt) Check {
	const name = "chain_order"
	if len(chain) < 2 {
		return Check{Name: name, Passed: true,
			Detail: "fewer than 2 receipts; ordering trivially valid"}
	}
	for i := 1; i < len(chain); i++ {
		if chain[i].Meta.StartedAt.Before(chain[i-1].Meta.StartedAt) {
			return Check{Name: name, Passed: false,
				Detail: fmt.Sprintf("receipt %d started_at (%s) precedes receipt %d (%s)",
					i, chain[i].Meta.StartedAt, i-1, chain[i-1].Meta.StartedAt)}
		}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("%d receipts in chronological order", len(chain))}
}

func checkNoDuplicateRunIDs(chain []contract.Receipt) Check {
	const name = "no_duplicate_run_ids"
	seen := map[uuid.UUID]struct{}{}
	for _, r := range chain {
		if _, dup := seen[r.Meta.RunID]; dup {
			return Check{Name: name, Passed: false,
				Detail: fmt.Sprintf("duplicate run ID: %s", r.Meta.RunID)}
		}
		seen[r.Meta.RunID] = struct{}{}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("%d unique run IDs", len(seen))}
}

func checkConsistentVersion(chain []contract.Receipt) Check {
	const name = "consistent_contract_version"
	if len(chain) == 0 {
		return Check{Name: name, Passed: true, Detail: "empty chain"}
	}
	first := chain[0].Meta.ContractVersion
	for i, r := range chain[1:] {
		if r.Meta.ContractVersion != first {
			return Check{Name: name, Passed: false,
				Detail: fmt.Sprintf("receipt %d has version %q but receipt 0 has %q",
					i+1, r.Meta.ContractVersion, first)}
		}
	}
	return Check{Name: name, Passed: true,
		Detail: fmt.Sprintf("all receipts use version %q", first)}
}
