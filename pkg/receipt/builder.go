// Package receipt builds, chains, and stores sealed receipts. Disk
// persistence stays outside the substrate; Store is the interface an
// embedder implements, and the in-memory store is the only in-tree
// implementation.
package receipt

import (
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/canonicalize"
	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// Builder assembles a receipt field by field. Seal computes the canonical
// hash; a sealed receipt is never mutated again.
type Builder struct {
	r contract.Receipt
}

// NewBuilder starts a receipt for the given backend with fresh run id and
// timestamps.
func NewBuilder(backendID string) *Builder {
	now := time.Now().UTC()
	return &Builder{r: contract.Receipt{
		Meta: contract.ReceiptMeta{
			RunID:           uuid.New(),
			ContractVersion: contract.ContractVersion,
			StartedAt:       now,
			FinishedAt:      now,
		},
		Backend: contract.BackendInfo{ID: backendID},
		Mode:    contract.ModeMapped,
		Outcome: contract.OutcomeComplete,
		Trace:   []contract.AgentEvent{},
	}}
}

// RunID overrides the generated run id.
func (b *Builder) RunID(id uuid.UUID) *Builder {
	b.r.Meta.RunID = id
	return b
}

// WorkOrderID sets the originating work order.
func (b *Builder) WorkOrderID(id uuid.UUID) *Builder {
	b.r.Meta.WorkOrderID = id
	return b
}

// Span sets the run's time bounds and derives the duration.
func (b *Builder) Span(started, finished time.Time) *Builder {
	b.r.Meta.StartedAt = started
	b.r.Meta.FinishedAt = finished
	b.r.Meta.DurationMS = finished.Sub(started).Milliseconds()
	return b
}

// Backend replaces the backend identity block.
func (b *Builder) Backend(info contract.BackendInfo) *Builder {
	b.r.Backend = info
	return b
}

// Capabilities attaches the manifest observed at handshake.
func (b *Builder) Capabilities(m contract.CapabilityManifest) *Builder {
	b.r.Capabilities = m
	return b
}

// Mode sets passthrough or mapped.
func (b *Builder) Mode(mode contract.ReceiptMode) *Builder {
	b.r.Mode = mode
	return b
}

// Outcome sets the terminal status.
func (b *Builder) Outcome(outcome contract.Outcome) *Builder {
	b.r.Outcome = outcome
	return b
}

// Usage sets the normalized usage block.
func (b *Builder) Usage(u contract.Usage) *Builder {
	b.r.Usage = u
	return b
}

// UsageRaw merges vendor-opaque usage keys.
func (b *Builder) UsageRaw(key string, value any) *Builder {
	if b.r.UsageRaw == nil {
		b.r.UsageRaw = map[string]any{}
	}
	b.r.UsageRaw[key] = value
	return b
}

// AddTraceEvent appends one event to the trace.
func (b *Builder) AddTraceEvent(e contract.AgentEvent) *Builder {
	b.r.Trace = append(b.r.Trace, e)
	return b
}

// Trace replaces the whole trace.
func (b *Builder) Trace(events []contract.AgentEvent) *Builder {
	if events == nil {
		events = []contract.AgentEvent{}
	}
	b.r.Trace = events
	return b
}

// AddArtifact appends one artifact reference.
func (b *Builder) AddArtifact(kind, path string) *Builder {
	b.r.Artifacts = append(b.r.Artifacts, contract.Artifact{Kind: kind, Path: path})
	return b
}

// Verification sets the workspace evidence block.
func (b *Builder) Verification(v contract.Verification) *Builder {
	b.r.Verification = v
	return b
}

// Build returns the unsealed receipt.
func (b *Builder) Build() contract.Receipt {
	return b.r
}

// Seal computes the canonical hash and returns the sealed receipt.
func (b *Builder) Seal() (contract.Receipt, error) {
	return canonicalize.WithHash(b.r)
}
