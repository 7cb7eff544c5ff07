package contract

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal status of a run.
type Outcome string

// Outcomes.
const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

// ReceiptMode records whether the run used the mapped pipeline or passed the
// vendor dialect through untouched.
type ReceiptMode string

// Receipt modes.
const (
	ModePassthrough ReceiptMode = "passthrough"
	ModeMapped      ReceiptMode = "mapped"
)

// ReceiptMeta identifies a run and bounds it in time. started_at must not be
// after finished_at.
type ReceiptMeta struct {
	RunID           uuid.UUID `json:"run_id"`
	WorkOrderID     uuid.UUID `json:"work_order_id"`
	ContractVersion string    `json:"contract_version"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationMS      int64     `json:"duration_ms"`
}

// BackendInfo names the backend that executed a run.
type BackendInfo struct {
	ID             string `json:"id"`
	BackendVersion string `json:"backend_version,omitempty"`
	AdapterVersion string `json:"adapter_version,omitempty"`
}

// Usage is the normalized token accounting block.
type Usage struct {
	InputTokens      uint64   `json:"input_tokens,omitempty"`
	OutputTokens     uint64   `json:"output_tokens,omitempty"`
	CacheReadTokens  uint64   `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens uint64   `json:"cache_write_tokens,omitempty"`
	RequestUnits     uint64   `json:"request_units,omitempty"`
	EstimatedCostUSD *float64 `json:"estimated_cost_usd,omitempty"`
}

// Merge accumulates the counts of other into u. Cost is summed when either
// side carries one.
func (u *Usage) Merge(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.RequestUnits += other.RequestUnits
	if other.EstimatedCostUSD != nil {
		sum := *other.EstimatedCostUSD
		if u.EstimatedCostUSD != nil {
			sum += *u.EstimatedCostUSD
		}
		u.EstimatedCostUSD = &sum
	}
}

// Artifact references one output produced by a run.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Verification carries workspace-level evidence collected after a run.
type Verification struct {
	GitDiff   string `json:"git_diff,omitempty"`
	GitStatus string `json:"git_status,omitempty"`
	HarnessOK bool   `json:"harness_ok"`
}

// Receipt is the sealed, content-addressed record of a completed run.
//
// receipt_sha256 is the lowercase-hex SHA-256 of the canonical JSON form of
// the receipt with that field nulled. Unknown JSON fields survive a
// decode/encode round trip.
type Receipt struct {
	Meta         ReceiptMeta        `json:"meta"`
	Backend      BackendInfo        `json:"backend"`
	Capabilities CapabilityManifest `json:"capabilities,omitempty"`
	Mode         ReceiptMode        `json:"mode"`
	UsageRaw     map[string]any     `json:"usage_raw,omitempty"`
	Usage        Usage              `json:"usage"`
	Trace        []AgentEvent       `json:"trace"`
	Artifacts    []Artifact         `json:"artifacts,omitempty"`
	Verification Verification       `json:"verification"`
	Outcome      Outcome            `json:"outcome"`
	ReceiptSHA   *string            `json:"receipt_sha256"`

	// unknown holds fields this contract version does not model. They are
	// preserved on read-back but excluded from the canonical hash input of
	// receipts built in-process.
	unknown map[string]json.RawMessage
}

// receiptAlias strips methods so the custom codec does not recurse.
type receiptAlias Receipt

var receiptKnownKeys = map[string]struct{}{
	"meta": {}, "backend": {}, "capabilities": {}, "mode": {},
	"usage_raw": {}, "usage": {}, "trace": {}, "artifacts": {},
	"verification": {}, "outcome": {}, "receipt_sha256": {},
}

// UnmarshalJSON decodes the known fields and stashes everything else.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	var a receiptAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if _, known := receiptKnownKeys[k]; known {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}
	*r = Receipt(a)
	r.unknown = raw
	return nil
}

// MarshalJSON re-emits preserved unknown fields alongside the known ones.
func (r Receipt) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(receiptAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.unknown) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.unknown {
		if _, known := receiptKnownKeys[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnknownFields returns the wire keys preserved from decode that this
// contract version does not model.
func (r *Receipt) UnknownFields() []string {
	keys := make([]string, 0, len(r.unknown))
	for k := range r.unknown {
		keys = append(keys, k)
	}
	return keys
}

// NewReceipt builds a minimal mapped-mode receipt for the given run.
func NewReceipt(runID, workOrderID uuid.UUID, backend BackendInfo) Receipt {
	now := time.Now().UTC()
	return Receipt{
		Meta: ReceiptMeta{
			RunID:           runID,
			WorkOrderID:     workOrderID,
			ContractVersion: ContractVersion,
			StartedAt:       now,
			FinishedAt:      now,
		},
		Backend: backend,
		Mode:    ModeMapped,
		Outcome: OutcomeComplete,
		Trace:   []AgentEvent{},
	}
}
