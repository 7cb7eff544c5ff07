package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
)

// MockBackend is an in-process backend that replays a scripted event
// sequence and resolves with a complete receipt. It exists for tests and for
// embedders wiring the pipeline before a real backend is available.
type MockBackend struct {
	Name     string
	Manifest contract.CapabilityManifest
	Native   dialect.Dialect
	// Script is the event sequence replayed per run; when empty a run
	// started, an assistant message echoing the task, and a run completed
	// event are emitted.
	Script []contract.AgentEvent
	// Fail, when set, resolves the dispatch with this error after the
	// script.
	Fail error
	// Delay is slept between events to exercise streaming consumers.
	Delay time.Duration
}

// NewMockBackend builds a streaming-capable mock.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		Name: name,
		Manifest: contract.CapabilityManifest{
			contract.CapStreaming: contract.Native(),
			contract.CapToolUse:   contract.Native(),
		},
		Native: dialect.Mock,
	}
}

// ID implements Backend.
func (m *MockBackend) ID() string { return m.Name }

// Info implements Backend.
func (m *MockBackend) Info() contract.BackendInfo {
	return contract.BackendInfo{ID: m.Name, BackendVersion: "mock/1", AdapterVersion: "builtin"}
}

// Capabilities implements Backend.
func (m *MockBackend) Capabilities() contract.CapabilityManifest { return m.Manifest }

// Dialect implements Backend.
func (m *MockBackend) Dialect() dialect.Dialect { return m.Native }

// Dispatch implements Backend.
func (m *MockBackend) Dispatch(ctx context.Context, runID uuid.UUID, wo contract.WorkOrder) (<-chan contract.AgentEvent, <-chan DispatchResult, error) {
	events := make(chan contract.AgentEvent, 16)
	result := make(chan DispatchResult, 1)

	script := m.Script
	if len(script) == 0 {
		script = []contract.AgentEvent{
			contract.NewRunStarted("mock run started"),
			contract.NewAssistantMessage("mock response for: " + wo.Task),
			contract.NewRunCompleted("mock run complete"),
		}
	}

	go func() {
		defer close(events)
		started := time.Now().UTC()
		for _, e := range script {
			if m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					result <- DispatchResult{Err: ctx.Err()}
					return
				}
			}
			select {
			case events <- e:
			case <-ctx.Done():
				result <- DispatchResult{Err: ctx.Err()}
				return
			}
		}
		if m.Fail != nil {
			result <- DispatchResult{Err: m.Fail}
			return
		}
		r := contract.NewReceipt(runID, wo.ID, m.Info())
		r.Capabilities = m.Manifest
		r.Meta.StartedAt = started
		r.Meta.FinishedAt = time.Now().UTC()
		r.Meta.DurationMS = r.Meta.FinishedAt.Sub(started).Milliseconds()
		r.Usage = contract.Usage{InputTokens: 10, OutputTokens: 20}
		result <- DispatchResult{Receipt: &r}
	}()

	return events, result, nil
}
