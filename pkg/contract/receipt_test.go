package contract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptUnknownFieldsPreserved(t *testing.T) {
	raw := `{
		"meta": {
			"run_id": "11111111-1111-4111-8111-111111111111",
			"work_order_id": "22222222-2222-4222-8222-222222222222",
			"contract_version": "abp/v0.1",
			"started_at": "2025-06-01T12:00:00Z",
			"finished_at": "2025-06-01T12:00:03Z",
			"duration_ms": 3000
		},
		"backend": {"id": "mock"},
		"mode": "mapped",
		"usage": {},
		"trace": [],
		"verification": {"harness_ok": true},
		"outcome": "complete",
		"receipt_sha256": null,
		"x_vendor_extension": {"nested": [1, 2, 3]}
	}`
	var r Receipt
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, []string{"x_vendor_extension"}, r.UnknownFields())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.JSONEq(t, `{"nested":[1,2,3]}`, string(decoded["x_vendor_extension"]))
}

func TestWorkOrderUnknownFieldsIgnored(t *testing.T) {
	raw := `{"id":"33333333-3333-4333-8333-333333333333","task":"do it","mystery":42}`
	var wo WorkOrder
	require.NoError(t, json.Unmarshal([]byte(raw), &wo))
	assert.Equal(t, "do it", wo.Task)
}

func TestReceiptSHANullSentinelSurvivesRoundTrip(t *testing.T) {
	r := NewReceipt(uuid.New(), uuid.New(), BackendInfo{ID: "mock"})
	out, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "null", string(decoded["receipt_sha256"]),
		"the unsealed hash field is emitted as an explicit null")

	var back Receipt
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Nil(t, back.ReceiptSHA, "the explicit null decodes back to an unsealed receipt")
}

func TestUsageMerge(t *testing.T) {
	cost := 0.25
	a := Usage{InputTokens: 100, OutputTokens: 50}
	b := Usage{InputTokens: 10, CacheReadTokens: 5, EstimatedCostUSD: &cost}
	a.Merge(b)
	assert.Equal(t, uint64(110), a.InputTokens)
	assert.Equal(t, uint64(50), a.OutputTokens)
	assert.Equal(t, uint64(5), a.CacheReadTokens)
	require.NotNil(t, a.EstimatedCostUSD)
	assert.InDelta(t, 0.25, *a.EstimatedCostUSD, 1e-9)

	a.Merge(Usage{EstimatedCostUSD: &cost})
	assert.InDelta(t, 0.5, *a.EstimatedCostUSD, 1e-9)
}

func TestAgentEventRoundTrip(t *testing.T) {
	events := []AgentEvent{
		NewRunStarted("go"),
		NewAssistantDelta("chunk"),
		NewToolCall("read", "tu_1", json.RawMessage(`{"path":"main.go"}`)),
		NewToolResult("read", "tu_1", json.RawMessage(`"contents"`), false),
		NewFileChanged("main.go", "rewrote imports"),
		NewCommandExecuted("go vet ./...", 0, "ok"),
		NewWarning("careful"),
		NewError("boom"),
	}
	for _, e := range events {
		data, err := json.Marshal(e)
		require.NoError(t, err)
		var back AgentEvent
		require.NoError(t, json.Unmarshal(data, &back), "event %s", e.Type)
		assert.Equal(t, e.Type, back.Type)
	}
}

func TestAgentEventUnknownTypeRejected(t *testing.T) {
	var e AgentEvent
	err := json.Unmarshal([]byte(`{"type":"mind_meld","ts":"2025-06-01T12:00:00Z"}`), &e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mind_meld")
}

func TestNewWorkOrderDefaults(t *testing.T) {
	wo := NewWorkOrder("refactor the auth module")
	assert.NotEqual(t, uuid.Nil, wo.ID)
	assert.Equal(t, LanePatchFirst, wo.Lane)
	assert.Equal(t, WorkspacePassThrough, wo.Workspace.Mode)
}

func TestVendorString(t *testing.T) {
	wo := NewWorkOrder("task")
	wo.Config.Vendor = map[string]any{
		"abp": map[string]any{"mode": "passthrough", "depth": 3},
	}
	assert.Equal(t, "passthrough", wo.VendorString("abp", "mode"))
	assert.Equal(t, "", wo.VendorString("abp", "depth"))
	assert.Equal(t, "", wo.VendorString("abp", "missing"))
	assert.Equal(t, "", wo.VendorString("other", "mode"))
}

func TestReceiptMetaInvariant(t *testing.T) {
	r := NewReceipt(uuid.New(), uuid.New(), BackendInfo{ID: "mock"})
	assert.False(t, r.Meta.StartedAt.After(r.Meta.FinishedAt))
	assert.WithinDuration(t, time.Now().UTC(), r.Meta.StartedAt, time.Minute)
}
