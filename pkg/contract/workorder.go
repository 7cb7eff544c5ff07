package contract

import (
	"github.com/google/uuid"
)

// Lane selects the execution style a caller prefers.
type Lane string

// Lanes.
const (
	LanePatchFirst     Lane = "patch_first"
	LaneWorkspaceFirst Lane = "workspace_first"
)

// WorkspaceMode selects how the backend sees the caller's files.
type WorkspaceMode string

// Workspace modes.
const (
	// WorkspacePassThrough hands the source root to the backend as-is.
	WorkspacePassThrough WorkspaceMode = "pass_through"
	// WorkspaceStaged copies the filtered tree into a scoped temp directory.
	WorkspaceStaged WorkspaceMode = "staged"
)

// WorkspaceSpec scopes the filesystem surface of a run.
type WorkspaceSpec struct {
	Root    string        `json:"root"`
	Mode    WorkspaceMode `json:"mode"`
	Include []string      `json:"include,omitempty"`
	Exclude []string      `json:"exclude,omitempty"`
}

// Snippet is an inline named context fragment.
type Snippet struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ContextSpec carries extra context shipped with the task.
type ContextSpec struct {
	Files    []string  `json:"files,omitempty"`
	Snippets []Snippet `json:"snippets,omitempty"`
}

// PolicyProfile is the declarative policy block of a Work Order. All seven
// fields are ordered glob-pattern lists.
type PolicyProfile struct {
	AllowedTools       []string `json:"allowed_tools,omitempty" yaml:"allowed_tools"`
	DisallowedTools    []string `json:"disallowed_tools,omitempty" yaml:"disallowed_tools"`
	DenyRead           []string `json:"deny_read,omitempty" yaml:"deny_read"`
	DenyWrite          []string `json:"deny_write,omitempty" yaml:"deny_write"`
	AllowNetwork       []string `json:"allow_network,omitempty" yaml:"allow_network"`
	DenyNetwork        []string `json:"deny_network,omitempty" yaml:"deny_network"`
	RequireApprovalFor []string `json:"require_approval_for,omitempty" yaml:"require_approval_for"`
}

// RunConfig carries model selection and vendor-opaque configuration.
type RunConfig struct {
	Model        string            `json:"model,omitempty"`
	Vendor       map[string]any    `json:"vendor,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	MaxBudgetUSD *float64          `json:"max_budget_usd,omitempty"`
	MaxTurns     *int              `json:"max_turns,omitempty"`
}

// WorkOrder is the immutable declarative request submitted to the runtime.
// Unknown JSON fields are ignored on decode.
type WorkOrder struct {
	ID           uuid.UUID     `json:"id"`
	Task         string        `json:"task"`
	Lane         Lane          `json:"lane,omitempty"`
	Workspace    WorkspaceSpec `json:"workspace"`
	Context      ContextSpec   `json:"context,omitempty"`
	Policy       PolicyProfile `json:"policy,omitempty"`
	Requirements Requirements  `json:"requirements,omitempty"`
	Config       RunConfig     `json:"config,omitempty"`
}

// NewWorkOrder builds a Work Order with a fresh UUID and the default lane.
func NewWorkOrder(task string) WorkOrder {
	return WorkOrder{
		ID:   uuid.New(),
		Task: task,
		Lane: LanePatchFirst,
		Workspace: WorkspaceSpec{
			Mode: WorkspacePassThrough,
		},
	}
}

// VendorString reads config.vendor[section][key] as a string, returning ""
// when any level is absent or not a string.
func (wo *WorkOrder) VendorString(section, key string) string {
	raw, ok := wo.Config.Vendor[section]
	if !ok {
		return ""
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}
