package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/canonicalize"
	"github.com/Mindburn-Labs/backplane/pkg/capability"
	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
	"github.com/Mindburn-Labs/backplane/pkg/emulation"
	"github.com/Mindburn-Labs/backplane/pkg/policy"
	"github.com/Mindburn-Labs/backplane/pkg/telemetry"
	"github.com/Mindburn-Labs/backplane/pkg/workspace"
)

// Options configures a Runtime.
type Options struct {
	// Emulation enables capability emulation; nil disables it, turning any
	// unsupported requirement into a CapabilityCheckFailed.
	Emulation *emulation.Config
	// Collector receives per-run metrics; nil disables collection.
	Collector *telemetry.Collector
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Runtime owns the registry and drives the pipeline per run.
type Runtime struct {
	registry  *Registry
	emulation *emulation.Engine
	collector *telemetry.Collector
	log       *slog.Logger
}

// New assembles a runtime over a registry.
func New(registry *Registry, opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{
		registry:  registry,
		collector: opts.Collector,
		log:       logger.With("component", "runtime"),
	}
	if opts.Emulation != nil {
		rt.emulation = emulation.NewEngine(*opts.Emulation)
	}
	return rt
}

// Registry exposes the backend registry for projection wiring.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// RunHandle is a live run: an event stream (shareable via Subscribe) and the
// one-shot receipt future.
type RunHandle struct {
	RunID uuid.UUID

	mux     *Multiplexer
	events  <-chan Delivery
	receipt chan DispatchResult
}

// Events is the handle's own subscription, wired before any event flows.
func (h *RunHandle) Events() <-chan Delivery { return h.events }

// Subscribe attaches one more observer to the run's event stream. Events
// published before the subscription are not replayed.
func (h *RunHandle) Subscribe() (<-chan Delivery, func()) {
	return h.mux.Subscribe()
}

// Receipt blocks until the run resolves with its sealed receipt or error.
func (h *RunHandle) Receipt() (contract.Receipt, error) {
	res := <-h.receipt
	if res.Err != nil {
		return contract.Receipt{}, res.Err
	}
	return *res.Receipt, nil
}

// RunStreaming validates, projects onto the named backend, compiles policy,
// stages the workspace, dispatches, and tees the event stream while
// accumulating the trace. The receipt is sealed when the backend resolves.
func (rt *Runtime) RunStreaming(ctx context.Context, backendName string, wo contract.WorkOrder) (*RunHandle, error) {
	backend, ok := rt.registry.Lookup(backendName)
	if !ok {
		return nil, &UnknownBackendError{Name: backendName}
	}

	sourceDialect := rt.sourceDialect(&wo)
	report := capability.Check(wo, backend.Capabilities(), sourceDialect, backend.Dialect())
	emuReport := emulation.Report{}
	if missing := report.Unsupported(); len(missing) > 0 {
		if rt.emulation == nil {
			return nil, &CapabilityCheckFailedError{Unsatisfied: missing}
		}
		emuReport = rt.emulation.CheckMissing(missing)
		if len(emuReport.Warnings) > 0 {
			unsatisfied := make([]contract.Capability, 0, len(missing))
			covered := map[contract.Capability]struct{}{}
			for _, a := range emuReport.Applied {
				covered[a.Capability] = struct{}{}
			}
			for _, cap := range missing {
				if _, ok := covered[cap]; !ok {
					unsatisfied = append(unsatisfied, cap)
				}
			}
			if len(unsatisfied) > 0 {
				return nil, &CapabilityCheckFailedError{
					Unsatisfied: unsatisfied,
					Warnings:    emuReport.Warnings,
				}
			}
		}
	}

	if _, err := policy.Compile(wo.Policy); err != nil {
		return nil, &PolicyFailedError{Err: err}
	}

	var staged *workspace.Staged
	if wo.Workspace.Mode == contract.WorkspaceStaged {
		var err error
		staged, err = workspace.Stage(wo.Workspace.Root, workspace.Options{
			Include: wo.Workspace.Include,
			Exclude: wo.Workspace.Exclude,
		})
		if err != nil {
			return nil, &WorkspaceFailedError{Err: err}
		}
	}

	runID := uuid.New()
	events, dispatchResult, err := backend.Dispatch(ctx, runID, wo)
	if err != nil {
		if staged != nil {
			_ = staged.Release()
		}
		return nil, err
	}

	handle := &RunHandle{
		RunID:   runID,
		mux:     NewMultiplexer(),
		receipt: make(chan DispatchResult, 1),
	}
	handle.events, _ = handle.mux.Subscribe()
	started := time.Now().UTC()

	go rt.drive(driveParams{
		handle:  handle,
		backend: backend,
		wo:      wo,
		runID:   runID,
		events:  events,
		result:  dispatchResult,
		staged:  staged,
		emu:     emuReport,
		report:  report,
		started: started,
	})

	return handle, nil
}

type driveParams struct {
	handle  *RunHandle
	backend Backend
	wo      contract.WorkOrder
	runID   uuid.UUID
	events  <-chan contract.AgentEvent
	result  <-chan DispatchResult
	staged  *workspace.Staged
	emu     emulation.Report
	report  capability.Report
	started time.Time
}

// drive tees events into the multiplexer and the trace buffer, then seals
// the receipt when the backend resolves. The trace buffer is owned by this
// goroutine until the receipt is built.
func (rt *Runtime) drive(p driveParams) {
	defer func() {
		if p.staged != nil {
			_ = p.staged.Release()
		}
	}()

	var trace []contract.AgentEvent
	var toolCalls, errorsSeen uint64
	for e := range p.events {
		trace = append(trace, e)
		switch e.Type {
		case contract.EventToolCall:
			toolCalls++
		case contract.EventError:
			errorsSeen++
		}
		p.handle.mux.Publish(e)
	}

	res := <-p.result
	finished := time.Now().UTC()
	p.handle.mux.Close()

	// The scoped workspace is gone before the receipt future resolves.
	if p.staged != nil {
		_ = p.staged.Release()
	}

	if res.Err != nil {
		rt.recordMetrics(p, trace, toolCalls, errorsSeen+1, finished, contract.Usage{})
		p.handle.receipt <- DispatchResult{Err: res.Err}
		return
	}

	sealed, err := rt.seal(p, res.Receipt, trace, finished)
	if err != nil {
		p.handle.receipt <- DispatchResult{Err: err}
		return
	}
	rt.recordMetrics(p, trace, toolCalls, errorsSeen, finished, sealed.Usage)
	p.handle.receipt <- DispatchResult{Receipt: &sealed}
}

// seal merges backend metadata with the accumulated trace and the emulation
// report, then computes the canonical hash.
func (rt *Runtime) seal(p driveParams, base *contract.Receipt, trace []contract.AgentEvent, finished time.Time) (contract.Receipt, error) {
	r := contract.Receipt{}
	if base != nil {
		r = *base
	}
	r.Meta.RunID = p.runID
	r.Meta.WorkOrderID = p.wo.ID
	if r.Meta.ContractVersion == "" {
		r.Meta.ContractVersion = contract.ContractVersion
	}
	if r.Meta.StartedAt.IsZero() {
		r.Meta.StartedAt = p.started
	}
	if r.Meta.FinishedAt.IsZero() || r.Meta.FinishedAt.Before(r.Meta.StartedAt) {
		r.Meta.FinishedAt = finished
	}
	r.Meta.DurationMS = r.Meta.FinishedAt.Sub(r.Meta.StartedAt).Milliseconds()
	if r.Backend.ID == "" {
		r.Backend = p.backend.Info()
	}
	if len(r.Capabilities) == 0 {
		r.Capabilities = p.backend.Capabilities()
	}
	if r.Mode == "" {
		r.Mode = contract.ModeMapped
	}
	if r.Outcome == "" {
		r.Outcome = contract.OutcomeComplete
	}
	if trace == nil {
		trace = []contract.AgentEvent{}
	}
	r.Trace = trace

	if len(p.emu.Applied) > 0 || len(p.emu.Warnings) > 0 {
		if r.UsageRaw == nil {
			r.UsageRaw = map[string]any{}
		}
		r.UsageRaw["emulation"] = p.emu

		var native []contract.Capability
		for _, entry := range p.report.Entries {
			if entry.Support.Kind == capability.SupportNative {
				native = append(native, entry.Capability)
			}
		}
		r.UsageRaw["fidelity"] = emulation.ComputeFidelity(native, p.emu.Applied)
	}

	sealed, err := canonicalize.WithHash(r)
	if err != nil {
		rt.log.Error("receipt sealing failed", "run_id", p.runID, "error", err)
		return contract.Receipt{}, err
	}
	return sealed, nil
}

func (rt *Runtime) recordMetrics(p driveParams, trace []contract.AgentEvent, toolCalls, errorsSeen uint64, finished time.Time, usage contract.Usage) {
	if rt.collector == nil {
		return
	}
	rt.collector.Record(telemetry.RunMetrics{
		BackendName:       p.backend.ID(),
		Dialect:           string(p.backend.Dialect()),
		DurationMS:        uint64(finished.Sub(p.started).Milliseconds()),
		EventsCount:       uint64(len(trace)),
		TokensIn:          usage.InputTokens,
		TokensOut:         usage.OutputTokens,
		ToolCallsCount:    toolCalls,
		ErrorsCount:       errorsSeen,
		EmulationsApplied: uint64(len(p.emu.Applied)),
	})
}

// sourceDialect reads the work order's declared source dialect, defaulting
// to the internal shape.
func (rt *Runtime) sourceDialect(wo *contract.WorkOrder) dialect.Dialect {
	if s := wo.VendorString("abp", "source_dialect"); s != "" {
		if d, err := dialect.ParseDialect(s); err == nil {
			return d
		}
	}
	return dialect.Abp
}
