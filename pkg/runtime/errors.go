// Package runtime assembles the backplane pipeline: validate → project →
// stage → dispatch → multiplex → seal. Runs are independent; concurrent
// calls produce unique run ids and non-interfering traces.
package runtime

import (
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// UnknownBackendError names a backend the registry does not hold.
type UnknownBackendError struct {
	Name string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend %q", e.Name)
}

// CapabilityCheckFailedError lists requirements no strategy can satisfy.
type CapabilityCheckFailedError struct {
	Unsatisfied []contract.Capability
	Warnings    []string
}

func (e *CapabilityCheckFailedError) Error() string {
	return fmt.Sprintf("capability check failed: unsatisfied %v", e.Unsatisfied)
}

// PolicyFailedError wraps a policy compilation failure.
type PolicyFailedError struct {
	Err error
}

func (e *PolicyFailedError) Error() string {
	return fmt.Sprintf("policy compilation failed: %v", e.Err)
}

// Unwrap exposes the glob compile error.
func (e *PolicyFailedError) Unwrap() error { return e.Err }

// WorkspaceFailedError wraps a staging failure.
type WorkspaceFailedError struct {
	Err error
}

func (e *WorkspaceFailedError) Error() string {
	return fmt.Sprintf("workspace staging failed: %v", e.Err)
}

// Unwrap exposes the staging error.
func (e *WorkspaceFailedError) Unwrap() error { return e.Err }
