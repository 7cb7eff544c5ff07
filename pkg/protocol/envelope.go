// Package protocol implements the sidecar wire protocol: line-delimited JSON
// envelopes over stdio, tagged on the field "t", with per-envelope and
// per-sequence validation.
//
// The expected flow across one sidecar lifetime is
// Hello → Run → Event* → (Final | Fatal). Cancel, ping, and pong frames are
// liveness extensions tolerated anywhere after Hello.
package protocol

import (
	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// Tag discriminates envelope variants on the wire field "t". AgentEvents use
// "type"; the two discriminators are deliberately different so an envelope
// payload can be an event without key collision.
type Tag string

// Envelope tags.
const (
	TagHello  Tag = "hello"
	TagRun    Tag = "run"
	TagEvent  Tag = "event"
	TagFinal  Tag = "final"
	TagFatal  Tag = "fatal"
	TagCancel Tag = "cancel"
	TagPing   Tag = "ping"
	TagPong   Tag = "pong"
)

// Envelope is one framed protocol message. Only the fields of the tagged
// variant are populated.
type Envelope struct {
	T Tag `json:"t"`

	// hello
	ContractVersion string                      `json:"contract_version,omitempty"`
	Backend         *contract.BackendInfo       `json:"backend,omitempty"`
	Capabilities    contract.CapabilityManifest `json:"capabilities,omitempty"`
	Mode            contract.ReceiptMode        `json:"mode,omitempty"`
	// run
	ID        string              `json:"id,omitempty"`
	WorkOrder *contract.WorkOrder `json:"work_order,omitempty"`
	// event, final, fatal, cancel (fatal's ref_id is optional; empty means
	// absent)
	RefID   string               `json:"ref_id,omitempty"`
	Event   *contract.AgentEvent `json:"event,omitempty"`
	Receipt *contract.Receipt    `json:"receipt,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// IsTerminal reports whether the envelope ends a run or session.
func (e Envelope) IsTerminal() bool {
	return e.T == TagFinal || e.T == TagFatal
}

// Hello builds the handshake envelope a sidecar emits first.
func Hello(backend contract.BackendInfo, caps contract.CapabilityManifest, mode contract.ReceiptMode) Envelope {
	return Envelope{
		T:               TagHello,
		ContractVersion: contract.ContractVersion,
		Backend:         &backend,
		Capabilities:    caps,
		Mode:            mode,
	}
}

// Run builds the envelope dispatching a work order.
func Run(id string, wo contract.WorkOrder) Envelope {
	return Envelope{T: TagRun, ID: id, WorkOrder: &wo}
}

// Event builds an event envelope for the given run.
func Event(refID string, event contract.AgentEvent) Envelope {
	return Envelope{T: TagEvent, RefID: refID, Event: &event}
}

// Final builds the terminal envelope resolving a run with its receipt.
func Final(refID string, receipt contract.Receipt) Envelope {
	return Envelope{T: TagFinal, RefID: refID, Receipt: &receipt}
}

// Fatal builds the session-terminating error envelope. refID may be empty.
func Fatal(refID, errMsg string) Envelope {
	return Envelope{T: TagFatal, RefID: refID, Error: errMsg}
}

// Cancel builds the cooperative cancellation request for a run.
func Cancel(refID string) Envelope {
	return Envelope{T: TagCancel, RefID: refID}
}

// Ping builds a liveness probe.
func Ping() Envelope { return Envelope{T: TagPing} }

// Pong builds the liveness probe response.
func Pong() Envelope { return Envelope{T: TagPong} }
