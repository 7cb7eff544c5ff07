package sidecar

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/protocol"
)

// eventBuffer bounds the in-flight event queue between the reader and the
// consumer.
const eventBuffer = 256

// RunResult resolves a run's receipt future: exactly one of Receipt or Err
// is set.
type RunResult struct {
	Receipt *contract.Receipt
	Err     error
}

// Run is one dispatched work order on a sidecar. Events streams in emission
// order; the receipt future resolves once, after which the event stream is
// closed.
type Run struct {
	id     string
	client *Client
	cancel *CancelToken

	events  chan contract.AgentEvent
	receipt chan RunResult
	frame   chan struct{}
	once    sync.Once
}

// Run writes a Run envelope and starts the demultiplexing reader. A second
// Run before the first terminal is a violation: the protocol allows at most
// one active run per sidecar.
func (c *Client) Run(runID string, wo contract.WorkOrder) (*Run, error) {
	c.mu.Lock()
	if c.runActive {
		c.mu.Unlock()
		return nil, &Error{Kind: ErrViolation, Message: "a run is already active on this sidecar"}
	}
	c.runActive = true
	c.mu.Unlock()

	if err := c.writer.Write(protocol.Run(runID, wo)); err != nil {
		c.mu.Lock()
		c.runActive = false
		c.mu.Unlock()
		return nil, &Error{Kind: ErrStdin, Err: err}
	}

	run := &Run{
		id:      runID,
		client:  c,
		cancel:  NewCancelToken(),
		events:  make(chan contract.AgentEvent, eventBuffer),
		receipt: make(chan RunResult, 1),
		frame:   make(chan struct{}, 1),
	}
	go run.readLoop()
	if c.spec.RunTimeout > 0 {
		go run.watchdog(c.spec.RunTimeout)
	}
	if c.spec.StallTimeout > 0 {
		go run.stallWatchdog(c.spec.StallTimeout)
	}
	return run, nil
}

// Events returns the run's event stream. It closes when the run terminates.
func (r *Run) Events() <-chan contract.AgentEvent { return r.events }

// Receipt blocks until the run resolves.
func (r *Run) Receipt() RunResult { return <-r.receipt }

// ReceiptChan exposes the one-shot receipt future.
func (r *Run) ReceiptChan() <-chan RunResult { return r.receipt }

// Wait blocks until the child process exits and returns its exit code.
func (r *Run) Wait() int { return r.client.Wait() }

// Cancel requests cooperative termination: a cancel frame is sent, the
// reader stops between envelopes, and the child gets SIGTERM then SIGKILL
// after the grace period. Events already buffered are still delivered.
func (r *Run) Cancel() {
	r.cancel.Cancel()
	_ = r.client.writer.Write(protocol.Cancel(r.id))
	go r.client.terminate()
}

// resolve fulfils the receipt future exactly once, closes the stream, and
// releases the watchdogs (the token doubles as the run-finished signal).
func (r *Run) resolve(result RunResult) {
	r.once.Do(func() {
		r.receipt <- result
		close(r.events)
		r.client.mu.Lock()
		r.client.runActive = false
		r.client.mu.Unlock()
		r.cancel.Cancel()
	})
}

// stallWatchdog fires when no envelope arrives for a full stall window. The
// reader pokes frame after every decoded envelope.
func (r *Run) stallWatchdog(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-r.frame:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(timeout)
		case <-timer.C:
			r.resolve(RunResult{Err: &Error{Kind: ErrTimeout, Duration: timeout}})
			r.cancel.Cancel()
			r.client.terminate()
			return
		case <-r.cancel.Done():
			return
		}
	}
}

func (r *Run) watchdog(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		r.resolve(RunResult{Err: &Error{Kind: ErrTimeout, Duration: timeout}})
		r.cancel.Cancel()
		r.client.terminate()
	case <-r.cancel.Done():
	}
}

// readLoop consumes stdout frames and demultiplexes them. It owns the event
// channel; nothing else sends on it.
func (r *Run) readLoop() {
	for {
		if r.cancel.Cancelled() {
			r.resolve(RunResult{Err: &Error{Kind: ErrCancelled}})
			return
		}

		env, err := r.client.reader.Next()
		if err == io.EOF {
			if r.cancel.Cancelled() {
				r.resolve(RunResult{Err: &Error{Kind: ErrCancelled}})
				return
			}
			// Child closed stdout before Final: report its exit.
			code := r.client.Wait()
			if code == 0 {
				r.resolve(RunResult{Err: &Error{Kind: ErrExited, ExitCode: 0}})
			} else {
				r.resolve(RunResult{Err: &Error{
					Kind:     ErrCrashed,
					ExitCode: code,
					Stderr:   r.client.Stderr(),
				}})
			}
			return
		}
		if err != nil {
			if isFrameDecodeError(err) {
				r.resolve(RunResult{Err: &Error{Kind: ErrProtocol, Err: err}})
			} else {
				r.resolve(RunResult{Err: &Error{Kind: ErrStdout, Err: err}})
			}
			return
		}

		select {
		case r.frame <- struct{}{}:
		default:
		}

		switch env.T {
		case protocol.TagEvent:
			if env.RefID != r.id {
				r.resolve(RunResult{Err: &Error{
					Kind:    ErrViolation,
					Message: "event ref_id " + env.RefID + " does not match run " + r.id,
				}})
				return
			}
			if env.Event != nil {
				r.events <- *env.Event
			}
		case protocol.TagFinal:
			if env.RefID != r.id {
				r.resolve(RunResult{Err: &Error{
					Kind:    ErrViolation,
					Message: "final ref_id " + env.RefID + " does not match run " + r.id,
				}})
				return
			}
			r.resolve(RunResult{Receipt: env.Receipt})
			return
		case protocol.TagFatal:
			r.resolve(RunResult{Err: &Error{Kind: ErrFatal, Message: env.Error}})
			return
		case protocol.TagPing:
			_ = r.client.writer.Write(protocol.Pong())
		case protocol.TagPong:
			// Liveness response; nothing to do.
		default:
			r.resolve(RunResult{Err: &Error{
				Kind:    ErrViolation,
				Message: "unexpected envelope tag " + string(env.T) + " during run",
			}})
			return
		}
	}
}

// isFrameDecodeError distinguishes malformed frames (protocol errors) from
// transport failures (stdout errors).
func isFrameDecodeError(err error) bool {
	var de *protocol.DecodeError
	return errors.As(err, &de)
}
