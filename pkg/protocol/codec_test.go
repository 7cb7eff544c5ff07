package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

func sampleEnvelopes() []Envelope {
	wo := contract.NewWorkOrder("do the thing")
	receipt := contract.NewReceipt(uuid.New(), wo.ID, contract.BackendInfo{ID: "mock"})
	return []Envelope{
		Hello(contract.BackendInfo{ID: "sidecar:claude", BackendVersion: "1.2"},
			contract.CapabilityManifest{contract.CapStreaming: contract.Native()},
			contract.ModeMapped),
		Run("run-1", wo),
		Event("run-1", contract.NewAssistantDelta("chunk")),
		Final("run-1", receipt),
		Fatal("run-1", "it broke"),
		Fatal("", "no ref"),
		Cancel("run-1"),
		Ping(),
		Pong(),
	}
}

func TestEncodeAppendsNewline(t *testing.T) {
	data, err := Encode(Ping())
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("\n")))
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	for _, env := range sampleEnvelopes() {
		data, err := Encode(env)
		require.NoError(t, err)
		back, err := Decode(data)
		require.NoError(t, err, "tag %s", env.T)
		assert.Equal(t, env.T, back.T)
		assert.Equal(t, env.RefID, back.RefID)
		assert.Equal(t, env.ID, back.ID)
		assert.Equal(t, env.Error, back.Error)
	}
}

func TestEnvelopeTagKeyIsT(t *testing.T) {
	data, err := Encode(Event("r", contract.NewWarning("w")))
	require.NoError(t, err)
	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &generic))
	require.Contains(t, generic, "t")
	assert.Equal(t, `"event"`, string(generic["t"]))
	// The nested event keeps its own discriminator untouched.
	var event map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(generic["event"], &event))
	assert.Equal(t, `"warning"`, string(event["type"]))
}

func TestDecodeCRLF(t *testing.T) {
	data, err := Encode(Ping())
	require.NoError(t, err)
	withCRLF := strings.TrimSuffix(string(data), "\n") + "\r\n"
	env, err := Decode([]byte(withCRLF))
	require.NoError(t, err)
	assert.Equal(t, TagPing, env.T)
}

func TestDecodeErrors(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"this is not json",
		`{"no_tag": true}`,
		`{"t": "teleport"}`,
	}
	for _, c := range cases {
		_, err := Decode([]byte(c))
		require.Error(t, err, "input %q", c)
		var de *DecodeError
		assert.True(t, errors.As(err, &de), "input %q yields a DecodeError", c)
	}
}

func TestFrameReaderSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	require.NoError(t, w.Write(Ping()))
	buf.WriteString("\r\n\n")
	require.NoError(t, w.Write(Pong()))

	r := NewFrameReader(&buf)
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TagPing, first.T)
	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TagPong, second.T)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRoundTripPreservesNestedValues(t *testing.T) {
	wo := contract.NewWorkOrder("nested")
	wo.Config.Vendor = map[string]any{"abp": map[string]any{"mode": "passthrough"}}
	wo.Policy.DenyWrite = []string{"secrets/**"}

	data, err := Encode(Run("run-9", wo))
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, back.WorkOrder)
	assert.Equal(t, "passthrough", back.WorkOrder.VendorString("abp", "mode"))
	assert.Equal(t, []string{"secrets/**"}, back.WorkOrder.Policy.DenyWrite)
}

func FuzzDecode(f *testing.F) {
	for _, env := range sampleEnvelopes() {
		data, err := Encode(env)
		if err == nil {
			f.Add(data)
		}
	}
	f.Add([]byte("not json\n"))
	f.Add([]byte(`{"t":"hello"}`))
	f.Fuzz(func(t *testing.T, data []byte) {
		env, err := Decode(data)
		if err != nil {
			return
		}
		// Whatever decodes must re-encode and decode to the same tag.
		out, err := Encode(env)
		if err != nil {
			t.Fatalf("decoded envelope failed to encode: %v", err)
		}
		back, err := Decode(out)
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if back.T != env.T {
			t.Fatalf("tag changed across round trip: %q vs %q", env.T, back.T)
		}
	})
}
