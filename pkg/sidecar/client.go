package sidecar

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/protocol"
)

// Spec declares how to spawn a sidecar process.
type Spec struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string

	// HandshakeTimeout bounds the wait for the Hello frame. Default 30s.
	HandshakeTimeout time.Duration
	// RunTimeout bounds one run end to end. Zero disables the guard.
	RunTimeout time.Duration
	// StallTimeout bounds the silence between two envelopes during a run.
	// Zero disables the guard.
	StallTimeout time.Duration
	// GracePeriod is the SIGTERM-to-SIGKILL window. Default 5s.
	GracePeriod time.Duration
	// StderrCapacity bounds the captured stderr tail.
	StderrCapacity int

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

const (
	defaultHandshakeTimeout = 30 * time.Second
	defaultGracePeriod      = 5 * time.Second
)

// Client is a live connection to a spawned sidecar. At most one run is
// active at a time.
type Client struct {
	hello  protocol.Envelope
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *protocol.FrameWriter
	reader *protocol.FrameReader
	stderr *stderrRing
	log    *slog.Logger
	grace  time.Duration
	spec   Spec

	mu        sync.Mutex
	runActive bool

	waitOnce sync.Once
	waitErr  error
	exited   chan struct{}
}

// Spawn forks the sidecar, wires its pipes, and performs the Hello
// handshake. Any first frame other than a compatible Hello is a violation.
func Spawn(spec Spec) (*Client, error) {
	if spec.HandshakeTimeout <= 0 {
		spec.HandshakeTimeout = defaultHandshakeTimeout
	}
	if spec.GracePeriod <= 0 {
		spec.GracePeriod = defaultGracePeriod
	}
	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sidecar", "command", spec.Command)

	//nolint:gosec // G204: the command comes from the embedder's backend registry
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &Error{Kind: ErrSpawn, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Kind: ErrSpawn, Err: err}
	}
	// Stderr goes straight into the bounded ring: writes never block, so the
	// drain can never back-pressure the child.
	ring := newStderrRing(spec.StderrCapacity)
	cmd.Stderr = ring

	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: ErrSpawn, Err: err}
	}

	client := &Client{
		cmd:    cmd,
		stdin:  stdin,
		writer: protocol.NewFrameWriter(stdin),
		reader: protocol.NewFrameReader(stdout),
		stderr: ring,
		log:    logger,
		grace:  spec.GracePeriod,
		spec:   spec,
		exited: make(chan struct{}),
	}
	go client.waitProcess()

	hello, err := client.awaitHello(spec.HandshakeTimeout)
	if err != nil {
		client.kill()
		return nil, err
	}
	client.hello = hello
	logger.Debug("sidecar handshake complete",
		"backend", hello.Backend.ID, "contract_version", hello.ContractVersion)
	return client, nil
}

func (c *Client) waitProcess() {
	c.waitOnce.Do(func() {
		c.waitErr = c.cmd.Wait()
		close(c.exited)
	})
}

func (c *Client) awaitHello(timeout time.Duration) (protocol.Envelope, error) {
	type frameResult struct {
		env protocol.Envelope
		err error
	}
	ch := make(chan frameResult, 1)
	go func() {
		env, err := c.reader.Next()
		ch <- frameResult{env: env, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			if res.err == io.EOF {
				return protocol.Envelope{}, &Error{
					Kind:     ErrCrashed,
					ExitCode: c.Wait(),
					Stderr:   c.stderr.String(),
				}
			}
			return protocol.Envelope{}, &Error{Kind: ErrProtocol, Err: res.err}
		}
		if res.env.T != protocol.TagHello {
			return protocol.Envelope{}, &Error{
				Kind:    ErrViolation,
				Message: fmt.Sprintf("expected Hello as first frame, got %q", res.env.T),
			}
		}
		peerVersion, err := protocol.ParseVersion(res.env.ContractVersion)
		if err != nil {
			return protocol.Envelope{}, &Error{Kind: ErrProtocol, Err: err}
		}
		ours, _ := protocol.ParseVersion(contract.ContractVersion)
		if !ours.Compatible(peerVersion) {
			return protocol.Envelope{}, &Error{
				Kind: ErrViolation,
				Message: fmt.Sprintf("incompatible contract version %q (host speaks %s)",
					res.env.ContractVersion, contract.ContractVersion),
			}
		}
		if peerVersion.Minor != ours.Minor {
			c.log.Warn("sidecar speaks a different minor contract version",
				"peer", res.env.ContractVersion, "host", contract.ContractVersion)
		}
		return res.env, nil
	case <-time.After(timeout):
		return protocol.Envelope{}, &Error{Kind: ErrTimeout, Duration: timeout}
	}
}

// Hello returns the decoded handshake envelope.
func (c *Client) Hello() protocol.Envelope { return c.hello }

// Backend returns the backend identity declared at handshake.
func (c *Client) Backend() contract.BackendInfo {
	if c.hello.Backend == nil {
		return contract.BackendInfo{}
	}
	return *c.hello.Backend
}

// Capabilities returns the manifest declared at handshake.
func (c *Client) Capabilities() contract.CapabilityManifest {
	return c.hello.Capabilities
}

// Stderr returns the captured stderr tail.
func (c *Client) Stderr() string { return c.stderr.String() }

// ExitCode returns the child's exit code, or -1 while it is running.
func (c *Client) ExitCode() int {
	select {
	case <-c.exited:
		return c.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Wait blocks until the child process exits.
func (c *Client) Wait() int {
	<-c.exited
	return c.cmd.ProcessState.ExitCode()
}

// Close shuts the sidecar down: stdin is closed so a well-behaved child
// exits on EOF, then the grace period and SIGKILL apply.
func (c *Client) Close() error {
	_ = c.stdin.Close()
	select {
	case <-c.exited:
		return nil
	case <-time.After(c.grace):
	}
	c.terminate()
	return nil
}

// terminate sends SIGTERM, waits out the grace period, then SIGKILLs.
func (c *Client) terminate() {
	if c.cmd.Process == nil {
		return
	}
	_ = c.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-c.exited:
		return
	case <-time.After(c.grace):
	}
	c.kill()
}

func (c *Client) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	<-c.exited
}
