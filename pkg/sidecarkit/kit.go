// Package sidecarkit is everything a Go sidecar needs to speak the
// backplane protocol over its stdio: Hello first, one Final per Run, Fatal
// on unrecoverable errors, clean exit on stdin EOF, and nothing but
// envelopes on stdout.
package sidecarkit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/protocol"
)

// EventSink streams events for the active run.
type EventSink interface {
	// Emit sends one event envelope for the run being handled.
	Emit(event contract.AgentEvent) error
}

// Handler executes one work order. Returning an error emits a Fatal envelope
// and ends the session.
type Handler interface {
	// Identity declares the backend named in the Hello envelope.
	Identity() contract.BackendInfo
	// Capabilities declares the manifest sent in the Hello envelope.
	Capabilities() contract.CapabilityManifest
	// HandleRun executes the order, emitting events through sink, and
	// returns the receipt the Final envelope carries.
	HandleRun(runID string, wo contract.WorkOrder, sink EventSink) (contract.Receipt, error)
}

// Server drives the sidecar side of the protocol on a reader/writer pair.
type Server struct {
	handler Handler
	reader  *protocol.FrameReader
	writer  *protocol.FrameWriter
}

// NewServer builds a server over explicit streams, which makes the loop
// testable without a process boundary.
func NewServer(handler Handler, in io.Reader, out io.Writer) *Server {
	return &Server{
		handler: handler,
		reader:  protocol.NewFrameReader(in),
		writer:  protocol.NewFrameWriter(out),
	}
}

// Serve runs the protocol loop over the process stdio and exits the way the
// process contract demands: status 0 on stdin EOF.
func Serve(handler Handler) {
	server := NewServer(handler, os.Stdin, os.Stdout)
	if err := server.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "sidecar error:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Run performs the handshake and processes Run envelopes until EOF. The
// returned error reflects transport failures; protocol-level problems are
// reported to the peer as Fatal envelopes.
func (s *Server) Run() error {
	hello := protocol.Hello(s.handler.Identity(), s.handler.Capabilities(), contract.ModeMapped)
	if err := s.writer.Write(hello); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	for {
		env, err := s.reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			_ = s.writer.Write(protocol.Fatal("", fmt.Sprintf("unreadable frame: %v", err)))
			return fmt.Errorf("read frame: %w", err)
		}

		switch env.T {
		case protocol.TagRun:
			if env.WorkOrder == nil {
				_ = s.writer.Write(protocol.Fatal(env.ID, "run envelope missing work_order"))
				return fmt.Errorf("run %s missing work order", env.ID)
			}
			if err := s.handleRun(env.ID, *env.WorkOrder); err != nil {
				_ = s.writer.Write(protocol.Fatal(env.ID, err.Error()))
				return err
			}
		case protocol.TagPing:
			if err := s.writer.Write(protocol.Pong()); err != nil {
				return fmt.Errorf("write pong: %w", err)
			}
		case protocol.TagCancel, protocol.TagPong:
			// Cancel between runs has nothing to stop; pong needs no reply.
		default:
			_ = s.writer.Write(protocol.Fatal("", fmt.Sprintf("unexpected envelope tag %q", env.T)))
			return fmt.Errorf("unexpected envelope tag %q", env.T)
		}
	}
}

func (s *Server) handleRun(runID string, wo contract.WorkOrder) (err error) {
	// A panicking handler must not take stdout down silently; it becomes the
	// session's Fatal.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run %s: handler panic: %v", runID, r)
		}
	}()
	sink := &runSink{writer: s.writer, runID: runID}
	receipt, err := s.handler.HandleRun(runID, wo, sink)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if err := s.writer.Write(protocol.Final(runID, receipt)); err != nil {
		return fmt.Errorf("write final: %w", err)
	}
	return nil
}

type runSink struct {
	writer *protocol.FrameWriter
	runID  string
}

func (s *runSink) Emit(event contract.AgentEvent) error {
	return s.writer.Write(protocol.Event(s.runID, event))
}

// EchoHandler is a minimal handler that acknowledges the task and returns a
// complete receipt. Useful for smoke tests and as a template for real
// sidecars.
type EchoHandler struct {
	Backend contract.BackendInfo
}

// Identity implements Handler.
func (h EchoHandler) Identity() contract.BackendInfo {
	if h.Backend.ID != "" {
		return h.Backend
	}
	return contract.BackendInfo{ID: "sidecar:echo"}
}

// Capabilities implements Handler.
func (h EchoHandler) Capabilities() contract.CapabilityManifest {
	return contract.CapabilityManifest{
		contract.CapStreaming: contract.Native(),
	}
}

// HandleRun implements Handler.
func (h EchoHandler) HandleRun(runID string, wo contract.WorkOrder, sink EventSink) (contract.Receipt, error) {
	if err := sink.Emit(contract.NewRunStarted("echo run started")); err != nil {
		return contract.Receipt{}, err
	}
	taskPreview, _ := json.Marshal(wo.Task)
	if err := sink.Emit(contract.NewAssistantMessage(fmt.Sprintf("echo: %s", taskPreview))); err != nil {
		return contract.Receipt{}, err
	}
	if err := sink.Emit(contract.NewRunCompleted("echo run complete")); err != nil {
		return contract.Receipt{}, err
	}

	parsedRunID, err := uuid.Parse(runID)
	if err != nil {
		parsedRunID = uuid.New()
	}
	receipt := contract.NewReceipt(parsedRunID, wo.ID, h.Identity())
	receipt.Capabilities = h.Capabilities()
	return receipt, nil
}
