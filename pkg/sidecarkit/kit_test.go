package sidecarkit

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/protocol"
)

// runServer feeds the given envelopes to a server over in-memory pipes and
// returns everything it wrote to its output.
func runServer(t *testing.T, handler Handler, inputs []protocol.Envelope) []protocol.Envelope {
	t.Helper()
	inReader, inWriter := io.Pipe()
	var out bytes.Buffer
	var outMu sync.Mutex
	server := NewServer(handler, inReader, lockedWriter{&outMu, &out})

	done := make(chan error, 1)
	go func() { done <- server.Run() }()

	w := protocol.NewFrameWriter(inWriter)
	for _, env := range inputs {
		require.NoError(t, w.Write(env))
	}
	require.NoError(t, inWriter.Close())
	require.NoError(t, <-done)

	outMu.Lock()
	defer outMu.Unlock()
	var envelopes []protocol.Envelope
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		env, err := protocol.Decode([]byte(line))
		require.NoError(t, err)
		envelopes = append(envelopes, env)
	}
	return envelopes
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func TestServeHelloFirstAndCleanEOF(t *testing.T) {
	out := runServer(t, EchoHandler{}, nil)
	require.NotEmpty(t, out)
	assert.Equal(t, protocol.TagHello, out[0].T)
	assert.Equal(t, contract.ContractVersion, out[0].ContractVersion)
	assert.Equal(t, "sidecar:echo", out[0].Backend.ID)
	assert.Len(t, out, 1, "nothing but the hello before EOF")
}

func TestServeRunEmitsEventsThenFinal(t *testing.T) {
	wo := contract.NewWorkOrder("echo me")
	out := runServer(t, EchoHandler{}, []protocol.Envelope{
		protocol.Run("run-1", wo),
	})

	require.GreaterOrEqual(t, len(out), 3)
	assert.Equal(t, protocol.TagHello, out[0].T)

	last := out[len(out)-1]
	assert.Equal(t, protocol.TagFinal, last.T)
	assert.Equal(t, "run-1", last.RefID)
	require.NotNil(t, last.Receipt)
	assert.Equal(t, wo.ID, last.Receipt.Meta.WorkOrderID)

	for _, env := range out[1 : len(out)-1] {
		assert.Equal(t, protocol.TagEvent, env.T)
		assert.Equal(t, "run-1", env.RefID)
	}
}

func TestServeSequenceValidates(t *testing.T) {
	wo := contract.NewWorkOrder("echo me")
	run := protocol.Run("run-1", wo)
	out := runServer(t, EchoHandler{}, []protocol.Envelope{run})
	require.NotEmpty(t, out)
	// The validator checks the whole conversation, so the host's Run goes
	// back in right after the sidecar's Hello.
	seq := append([]protocol.Envelope{out[0], run}, out[1:]...)
	validator := protocol.NewValidator()
	assert.Empty(t, validator.ValidateSequence(seq))
}

func TestServeTwoRunsSequentially(t *testing.T) {
	out := runServer(t, EchoHandler{}, []protocol.Envelope{
		protocol.Run("run-1", contract.NewWorkOrder("first")),
		protocol.Run("run-2", contract.NewWorkOrder("second")),
	})
	finals := 0
	for _, env := range out {
		if env.T == protocol.TagFinal {
			finals++
		}
	}
	assert.Equal(t, 2, finals)
}

func TestServeAnswersPing(t *testing.T) {
	out := runServer(t, EchoHandler{}, []protocol.Envelope{protocol.Ping()})
	require.Len(t, out, 2)
	assert.Equal(t, protocol.TagPong, out[1].T)
}

type failingHandler struct{ EchoHandler }

func (failingHandler) HandleRun(string, contract.WorkOrder, EventSink) (contract.Receipt, error) {
	return contract.Receipt{}, assert.AnError
}

func TestServeHandlerErrorEmitsFatal(t *testing.T) {
	inReader, inWriter := io.Pipe()
	var out bytes.Buffer
	var mu sync.Mutex
	server := NewServer(failingHandler{}, inReader, lockedWriter{&mu, &out})

	done := make(chan error, 1)
	go func() { done <- server.Run() }()

	w := protocol.NewFrameWriter(inWriter)
	require.NoError(t, w.Write(protocol.Run("run-9", contract.NewWorkOrder("boom"))))
	err := <-done
	assert.Error(t, err)
	_ = inWriter.Close()

	mu.Lock()
	defer mu.Unlock()
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	last, decodeErr := protocol.Decode([]byte(lines[len(lines)-1]))
	require.NoError(t, decodeErr)
	assert.Equal(t, protocol.TagFatal, last.T)
	assert.Equal(t, "run-9", last.RefID)
	assert.NotEmpty(t, last.Error)
}
