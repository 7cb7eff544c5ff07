// Package contract defines the wire-level data model of the Agent Backplane:
// Work Orders, Receipts, the agent-event taxonomy, and the capability system.
//
// Everything in this package is serializable to the canonical JSON wire form;
// types never carry live resources. A Work Order belongs to the caller until
// it is submitted; a Receipt is constructed by the runtime, sealed once, and
// never mutated after it crosses the runtime boundary.
package contract

// ContractVersion is the version string carried by every receipt and every
// protocol handshake. Format: abp/vMAJOR.MINOR.
const ContractVersion = "abp/v0.1"
