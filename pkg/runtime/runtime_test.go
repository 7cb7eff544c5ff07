package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/backplane/pkg/canonicalize"
	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/emulation"
	"github.com/Mindburn-Labs/backplane/pkg/telemetry"
)

func testRuntime(opts Options) (*Runtime, *MockBackend) {
	registry := NewRegistry()
	mock := NewMockBackend("mock")
	registry.Register(mock, 50)
	return New(registry, opts), mock
}

func TestRunStreamingHappyPath(t *testing.T) {
	rt, _ := testRuntime(Options{})
	wo := contract.NewWorkOrder("say hello")

	handle, err := rt.RunStreaming(context.Background(), "mock", wo)
	require.NoError(t, err)

	events := handle.Events()

	var seen []contract.EventType
	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range events {
			if !d.IsLag() {
				seen = append(seen, d.Event.Type)
			}
		}
	}()

	receipt, err := handle.Receipt()
	require.NoError(t, err)
	<-done

	assert.Equal(t, []contract.EventType{
		contract.EventRunStarted,
		contract.EventAssistantMessage,
		contract.EventRunCompleted,
	}, seen)

	assert.Equal(t, handle.RunID, receipt.Meta.RunID)
	assert.Equal(t, wo.ID, receipt.Meta.WorkOrderID)
	assert.Equal(t, "mock", receipt.Backend.ID)
	assert.Len(t, receipt.Trace, 3, "the trace matches the streamed events")
	assert.Equal(t, contract.OutcomeComplete, receipt.Outcome)

	require.NotNil(t, receipt.ReceiptSHA)
	ok, err := canonicalize.VerifyHash(receipt)
	require.NoError(t, err)
	assert.True(t, ok, "the runtime seals receipts")
}

func TestRunStreamingUnknownBackend(t *testing.T) {
	rt, _ := testRuntime(Options{})
	_, err := rt.RunStreaming(context.Background(), "nope", contract.NewWorkOrder("x"))
	var ub *UnknownBackendError
	require.True(t, errors.As(err, &ub))
	assert.Contains(t, ub.Error(), "nope")
}

func TestRunStreamingCapabilityCheckFailed(t *testing.T) {
	rt, _ := testRuntime(Options{})
	wo := contract.NewWorkOrder("x")
	wo.Requirements = contract.Requirements{Required: []contract.RequiredCapability{
		{Capability: contract.CapMcpServer, MinSupport: contract.MinEmulated},
	}}

	_, err := rt.RunStreaming(context.Background(), "mock", wo)
	var ccf *CapabilityCheckFailedError
	require.True(t, errors.As(err, &ccf))
	assert.Equal(t, []contract.Capability{contract.CapMcpServer}, ccf.Unsatisfied)
}

func TestRunStreamingEmulationLiftsMissingCapability(t *testing.T) {
	rt, _ := testRuntime(Options{Emulation: &emulation.Config{}})
	wo := contract.NewWorkOrder("describe image")
	wo.Requirements = contract.Requirements{Required: []contract.RequiredCapability{
		{Capability: contract.CapImageInput, MinSupport: contract.MinEmulated},
	}}

	handle, err := rt.RunStreaming(context.Background(), "mock", wo)
	require.NoError(t, err)
	receipt, err := handle.Receipt()
	require.NoError(t, err)

	require.Contains(t, receipt.UsageRaw, "emulation")
	ok, verr := canonicalize.VerifyHash(receipt)
	require.NoError(t, verr)
	assert.True(t, ok)
}

func TestRunStreamingEmulationCannotLiftDisabled(t *testing.T) {
	rt, _ := testRuntime(Options{Emulation: &emulation.Config{}})
	wo := contract.NewWorkOrder("run code")
	wo.Requirements = contract.Requirements{Required: []contract.RequiredCapability{
		{Capability: contract.CapCodeExecution, MinSupport: contract.MinEmulated},
	}}

	_, err := rt.RunStreaming(context.Background(), "mock", wo)
	var ccf *CapabilityCheckFailedError
	require.True(t, errors.As(err, &ccf))
	assert.Equal(t, []contract.Capability{contract.CapCodeExecution}, ccf.Unsatisfied)
	assert.NotEmpty(t, ccf.Warnings)
}

func TestRunStreamingPolicyFailed(t *testing.T) {
	rt, _ := testRuntime(Options{})
	wo := contract.NewWorkOrder("x")
	wo.Policy.DenyRead = []string{"["}

	_, err := rt.RunStreaming(context.Background(), "mock", wo)
	var pf *PolicyFailedError
	assert.True(t, errors.As(err, &pf))
}

func TestRunStreamingWorkspaceFailed(t *testing.T) {
	rt, _ := testRuntime(Options{})
	wo := contract.NewWorkOrder("x")
	wo.Workspace.Mode = contract.WorkspaceStaged
	wo.Workspace.Root = filepath.Join(t.TempDir(), "missing")

	_, err := rt.RunStreaming(context.Background(), "mock", wo)
	var wf *WorkspaceFailedError
	assert.True(t, errors.As(err, &wf))
}

func TestRunStreamingStagedWorkspaceReleased(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644))

	rt, _ := testRuntime(Options{})
	wo := contract.NewWorkOrder("x")
	wo.Workspace.Mode = contract.WorkspaceStaged
	wo.Workspace.Root = src

	handle, err := rt.RunStreaming(context.Background(), "mock", wo)
	require.NoError(t, err)
	_, err = handle.Receipt()
	require.NoError(t, err)

	// The only abp-workspace temp dirs left should not be ours; releasing is
	// part of the receipt path, so by now the directory is gone.
	entries, err := filepath.Glob(filepath.Join(os.TempDir(), "abp-workspace-*"))
	require.NoError(t, err)
	for _, e := range entries {
		inner, _ := os.ReadDir(e)
		for _, f := range inner {
			assert.NotEqual(t, "f.txt", f.Name(),
				"staged copy of this run must be released")
		}
	}
}

func TestRunStreamingBackendFailure(t *testing.T) {
	rt, mock := testRuntime(Options{})
	mock.Fail = errors.New("backend exploded")

	handle, err := rt.RunStreaming(context.Background(), "mock", contract.NewWorkOrder("x"))
	require.NoError(t, err)

	events, cancel := handle.Subscribe()
	defer cancel()
	go func() {
		for range events {
		}
	}()

	_, err = handle.Receipt()
	assert.ErrorContains(t, err, "backend exploded")
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	rt, _ := testRuntime(Options{Collector: telemetry.NewCollector()})

	const n = 8
	var wg sync.WaitGroup
	runIDs := make([]uuid.UUID, n)
	traces := make([]int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, err := rt.RunStreaming(context.Background(), "mock",
				contract.NewWorkOrder("concurrent"))
			if err != nil {
				t.Error(err)
				return
			}
			receipt, err := handle.Receipt()
			if err != nil {
				t.Error(err)
				return
			}
			runIDs[i] = receipt.Meta.RunID
			traces[i] = len(receipt.Trace)
		}(i)
	}
	wg.Wait()

	seen := map[uuid.UUID]struct{}{}
	for i, id := range runIDs {
		assert.NotEqual(t, uuid.Nil, id)
		_, dup := seen[id]
		assert.False(t, dup, "run ids must be unique")
		seen[id] = struct{}{}
		assert.Equal(t, 3, traces[i], "traces must not interfere")
	}
}

func TestTelemetryRecorded(t *testing.T) {
	collector := telemetry.NewCollector()
	rt, _ := testRuntime(Options{Collector: collector})

	handle, err := rt.RunStreaming(context.Background(), "mock", contract.NewWorkOrder("x"))
	require.NoError(t, err)
	_, err = handle.Receipt()
	require.NoError(t, err)

	require.Equal(t, 1, collector.Len())
	run := collector.Runs()[0]
	assert.Equal(t, "mock", run.BackendName)
	assert.Equal(t, uint64(3), run.EventsCount)
	assert.Equal(t, uint64(10), run.TokensIn)
}

func TestProjectionMatrixFromRegistry(t *testing.T) {
	rt, _ := testRuntime(Options{})
	matrix := rt.ProjectionMatrix()
	assert.Equal(t, 1, matrix.BackendCount())

	result, err := matrix.Project(contract.NewWorkOrder("x"))
	require.NoError(t, err)
	assert.Equal(t, "mock", result.SelectedBackend)
}
