// Package projection scores registered backends against a Work Order and
// routes it to the best fit, reporting required emulations and a fallback
// chain of alternatives.
package projection

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/backplane/pkg/capability"
	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
)

// Score weights: capability coverage dominates, then mapping fidelity, then
// operator priority.
const (
	weightCapability = 0.5
	weightFidelity   = 0.3
	weightPriority   = 0.2

	// passthroughBonus boosts a same-dialect backend when the Work Order
	// declares passthrough mode.
	passthroughBonus = 0.15
)

// ErrEmptyMatrix is returned when no backends are registered.
var ErrEmptyMatrix = errors.New("projection matrix is empty: no backends registered")

// NoSuitableBackendError is returned when no registered backend can satisfy
// the work order.
type NoSuitableBackendError struct {
	Reason string
}

func (e *NoSuitableBackendError) Error() string {
	return fmt.Sprintf("no suitable backend for work order: %s", e.Reason)
}

// BackendEntry is a registered backend with its manifest, dialect, and
// priority weight in [0, 100].
type BackendEntry struct {
	ID           string
	Capabilities contract.CapabilityManifest
	Dialect      dialect.Dialect
	Priority     uint32
}

// Score is the composite grade of one backend for one work order.
type Score struct {
	CapabilityCoverage float64 `json:"capability_coverage"`
	MappingFidelity    float64 `json:"mapping_fidelity"`
	Priority           float64 `json:"priority"`
	Total              float64 `json:"total"`
}

func computeScore(coverage, fidelity, priority float64) Score {
	return Score{
		CapabilityCoverage: coverage,
		MappingFidelity:    fidelity,
		Priority:           priority,
		Total:              weightCapability*coverage + weightFidelity*fidelity + weightPriority*priority,
	}
}

// RequiredEmulation names a capability the selected backend must emulate.
type RequiredEmulation struct {
	Capability contract.Capability `json:"capability"`
	Strategy   string              `json:"strategy"`
}

// FallbackEntry is an alternative backend with its score.
type FallbackEntry struct {
	BackendID string `json:"backend_id"`
	Score     Score  `json:"score"`
}

// Result is the outcome of projecting one work order.
type Result struct {
	SelectedBackend    string              `json:"selected_backend"`
	FidelityScore      Score               `json:"fidelity_score"`
	RequiredEmulations []RequiredEmulation `json:"required_emulations"`
	FallbackChain      []FallbackEntry     `json:"fallback_chain"`
}

// Matrix combines a backend registry, capability negotiation, and mapping
// quality. Construct it at init time; it is read-only during runs.
type Matrix struct {
	backends        map[string]BackendEntry
	mappingRegistry *dialect.MappingRegistry
	sourceDialect   dialect.Dialect
	mappingFeatures []string
}

// NewMatrix creates an empty projection matrix over the default mapping
// registry.
func NewMatrix() *Matrix {
	return &Matrix{
		backends:        map[string]BackendEntry{},
		mappingRegistry: dialect.DefaultMappingRegistry(),
	}
}

// WithMappingRegistry creates a matrix over a custom registry.
func WithMappingRegistry(registry *dialect.MappingRegistry) *Matrix {
	m := NewMatrix()
	m.mappingRegistry = registry
	return m
}

// SetSourceDialect pins the source dialect used for fidelity scoring,
// overriding per-order vendor config.
func (m *Matrix) SetSourceDialect(d dialect.Dialect) { m.sourceDialect = d }

// SetMappingFeatures sets the feature list graded for fidelity.
func (m *Matrix) SetMappingFeatures(features []string) { m.mappingFeatures = features }

// RegisterBackend adds or replaces a backend.
func (m *Matrix) RegisterBackend(id string, caps contract.CapabilityManifest, d dialect.Dialect, priority uint32) {
	m.backends[id] = BackendEntry{ID: id, Capabilities: caps, Dialect: d, Priority: priority}
}

// BackendCount returns the number of registered backends.
func (m *Matrix) BackendCount() int { return len(m.backends) }

// Backend looks up a registered backend by id.
func (m *Matrix) Backend(id string) (BackendEntry, bool) {
	e, ok := m.backends[id]
	return e, ok
}

type scoredBackend struct {
	id    string
	score Score
	neg   capability.NegotiationResult
}

// Project routes a work order. Backends are ranked by descending score; the
// highest-ranked compatible backend that needs no emulation is selected, else
// the highest-ranked compatible one, else the top scorer unless it covers no
// required capability. The remainder, in ranked order, becomes the fallback
// chain. Identical inputs always produce the identical selection.
func (m *Matrix) Project(wo contract.WorkOrder) (Result, error) {
	if len(m.backends) == 0 {
		return Result{}, ErrEmptyMatrix
	}

	passthrough := wo.VendorString("abp", "mode") == "passthrough"
	source, haveSource := m.detectSourceDialect(&wo)

	var maxPriority uint32 = 1
	for _, b := range m.backends {
		if b.Priority > maxPriority {
			maxPriority = b.Priority
		}
	}

	scored := make([]scoredBackend, 0, len(m.backends))
	for _, entry := range m.backends {
		neg := capability.Negotiate(entry.Capabilities, wo.Requirements)
		coverage := capabilityCoverage(neg, wo.Requirements)
		fidelity := m.mappingFidelity(source, haveSource, entry.Dialect)
		priority := float64(entry.Priority) / float64(maxPriority)

		score := computeScore(coverage, fidelity, priority)
		if passthrough && haveSource && entry.Dialect == source {
			score.Total += passthroughBonus
		}
		scored = append(scored, scoredBackend{id: entry.ID, score: score, neg: neg})
	}

	// Total descending, id ascending for determinism.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score.Total != scored[j].score.Total {
			return scored[i].score.Total > scored[j].score.Total
		}
		return scored[i].id < scored[j].id
	})

	// Among compatible backends, one that needs no emulation outranks a
	// higher-scoring one that does; emulation is a fidelity cost the score
	// weights cannot see.
	var selected *scoredBackend
	for i := range scored {
		if scored[i].neg.IsCompatible() && len(scored[i].neg.Emulatable) == 0 {
			selected = &scored[i]
			break
		}
	}
	if selected == nil {
		for i := range scored {
			if scored[i].neg.IsCompatible() {
				selected = &scored[i]
				break
			}
		}
	}
	if selected == nil {
		// No fully compatible backend; fall back to the best partial match
		// unless nothing covers anything.
		if scored[0].score.CapabilityCoverage == 0 && len(wo.Requirements.Required) > 0 {
			return Result{}, &NoSuitableBackendError{
				Reason: "no backend satisfies any required capabilities",
			}
		}
		selected = &scored[0]
	}

	emulations := make([]RequiredEmulation, 0, len(selected.neg.Emulatable))
	for _, cap := range selected.neg.Emulatable {
		emulations = append(emulations, RequiredEmulation{Capability: cap, Strategy: "adapter"})
	}

	fallback := make([]FallbackEntry, 0, len(scored)-1)
	for _, s := range scored {
		if s.id == selected.id {
			continue
		}
		fallback = append(fallback, FallbackEntry{BackendID: s.id, Score: s.score})
	}

	return Result{
		SelectedBackend:    selected.id,
		FidelityScore:      selected.score,
		RequiredEmulations: emulations,
		FallbackChain:      fallback,
	}, nil
}

func capabilityCoverage(neg capability.NegotiationResult, reqs contract.Requirements) float64 {
	if len(reqs.Required) == 0 {
		return 1.0
	}
	satisfied := len(neg.Native) + len(neg.Emulatable)
	return float64(satisfied) / float64(len(reqs.Required))
}

func (m *Matrix) mappingFidelity(source dialect.Dialect, haveSource bool, target dialect.Dialect) float64 {
	if !haveSource || source == target {
		return 1.0
	}
	if len(m.mappingFeatures) == 0 {
		// No feature list configured: partial credit when the registry knows
		// any mapping for the pair.
		if m.mappingRegistry.KnowsPair(source, target) {
			return 0.8
		}
		return 0.0
	}
	graded := m.mappingRegistry.ValidateMapping(source, target, m.mappingFeatures)
	if len(graded) == 0 {
		return 0.0
	}
	lossless, supported := 0, 0
	for _, g := range graded {
		if g.IsLossless() {
			lossless++
		}
		if g.Fidelity != "" {
			supported++
		}
	}
	if supported == 0 {
		return 0.0
	}
	losslessRatio := float64(lossless) / float64(len(graded))
	supportedRatio := float64(supported) / float64(len(graded))
	return 0.7*losslessRatio + 0.3*supportedRatio
}

func (m *Matrix) detectSourceDialect(wo *contract.WorkOrder) (dialect.Dialect, bool) {
	if m.sourceDialect != "" {
		return m.sourceDialect, true
	}
	if s := wo.VendorString("abp", "source_dialect"); s != "" {
		if d, err := dialect.ParseDialect(s); err == nil {
			return d, true
		}
	}
	return "", false
}
