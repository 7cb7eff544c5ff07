package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
	"github.com/Mindburn-Labs/backplane/pkg/retry"
	"github.com/Mindburn-Labs/backplane/pkg/sidecar"
)

// SidecarBackend adapts an out-of-process sidecar into the Backend
// interface. Each dispatch spawns a fresh process; retryable spawn and IO
// failures go through the retry layer, and the retry metadata lands in the
// receipt's usage_raw.
type SidecarBackend struct {
	Name     string
	Spec     sidecar.Spec
	Native   dialect.Dialect
	Retry    retry.Config
	manifest contract.CapabilityManifest
	info     contract.BackendInfo
}

// NewSidecarBackend declares a sidecar-hosted backend. The manifest and
// identity are learned at first handshake; before that, lookups return what
// the registry was seeded with.
func NewSidecarBackend(name string, spec sidecar.Spec, native dialect.Dialect) *SidecarBackend {
	return &SidecarBackend{
		Name:   name,
		Spec:   spec,
		Native: native,
		Retry:  retry.DefaultConfig(),
		info:   contract.BackendInfo{ID: name},
	}
}

// SeedManifest sets the capability manifest used before the first
// handshake (projection needs one without spawning a process).
func (b *SidecarBackend) SeedManifest(m contract.CapabilityManifest) {
	b.manifest = m
}

// ID implements Backend.
func (b *SidecarBackend) ID() string { return b.Name }

// Info implements Backend.
func (b *SidecarBackend) Info() contract.BackendInfo { return b.info }

// Capabilities implements Backend.
func (b *SidecarBackend) Capabilities() contract.CapabilityManifest { return b.manifest }

// Dialect implements Backend.
func (b *SidecarBackend) Dialect() dialect.Dialect { return b.Native }

// Dispatch implements Backend: spawn, handshake, run, and bridge the
// sidecar's streams into the runtime's channel shapes.
func (b *SidecarBackend) Dispatch(ctx context.Context, runID uuid.UUID, wo contract.WorkOrder) (<-chan contract.AgentEvent, <-chan DispatchResult, error) {
	type started struct {
		client *sidecar.Client
		run    *sidecar.Run
	}

	launch, meta, err := retry.Do(ctx, b.Retry, func(ctx context.Context) (started, error) {
		client, err := sidecar.Spawn(b.Spec)
		if err != nil {
			return started{}, err
		}
		run, err := client.Run(runID.String(), wo)
		if err != nil {
			_ = client.Close()
			return started{}, err
		}
		return started{client: client, run: run}, nil
	}, sidecar.IsRetryable)
	if err != nil {
		return nil, nil, err
	}

	// Handshake facts become the backend's registry-visible identity.
	b.info = launch.client.Backend()
	if caps := launch.client.Capabilities(); len(caps) > 0 {
		b.manifest = caps
	}

	events := make(chan contract.AgentEvent, 16)
	result := make(chan DispatchResult, 1)

	go func() {
		defer close(events)
		for e := range launch.run.Events() {
			select {
			case events <- e:
			case <-ctx.Done():
				launch.run.Cancel()
				// Drain so the reader can finish resolving.
				for range launch.run.Events() {
				}
			}
		}
		res := launch.run.Receipt()
		if res.Receipt != nil && meta.TotalAttempts > 1 {
			res.Receipt.UsageRaw = mergeUsageRaw(res.Receipt.UsageRaw, "retry", meta)
		}
		result <- DispatchResult{Receipt: res.Receipt, Err: res.Err}
		_ = launch.client.Close()
	}()

	return events, result, nil
}

func mergeUsageRaw(raw map[string]any, key string, value any) map[string]any {
	if raw == nil {
		raw = map[string]any{}
	}
	raw[key] = value
	return raw
}
