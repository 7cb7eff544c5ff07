package dialect

import "sort"

// Mapping features the registry tracks fidelity for.
const (
	FeatureText         = "text"
	FeatureToolUse      = "tool_use"
	FeatureSystemPrompt = "system_prompt"
	FeatureImages       = "images"
	FeatureThinking     = "thinking"
)

// FeatureFidelity grades one feature of one dialect pair.
type FeatureFidelity struct {
	Feature  string   `json:"feature"`
	Fidelity Fidelity `json:"fidelity"`
}

// IsLossless reports a lossless grade.
func (f FeatureFidelity) IsLossless() bool { return f.Fidelity == Lossless }

type pairKey struct {
	source Dialect
	target Dialect
}

// MappingRegistry records, per dialect pair and feature, how faithfully the
// mapper carries that feature. The projection matrix consumes it for its
// fidelity sub-score.
type MappingRegistry struct {
	pairs map[pairKey]map[string]Fidelity
}

// NewMappingRegistry returns an empty registry.
func NewMappingRegistry() *MappingRegistry {
	return &MappingRegistry{pairs: map[pairKey]map[string]Fidelity{}}
}

// DefaultMappingRegistry grades the built-in mappers.
func DefaultMappingRegistry() *MappingRegistry {
	r := NewMappingRegistry()
	openaiLike := []Dialect{OpenAI, Codex, Kimi, Copilot}

	for _, src := range openaiLike {
		r.Register(src, Claude, FeatureText, Lossless)
		r.Register(src, Claude, FeatureToolUse, Lossless)
		r.Register(src, Claude, FeatureSystemPrompt, Degraded)
		r.Register(src, Gemini, FeatureText, Lossless)
		r.Register(src, Gemini, FeatureToolUse, Lossless)
		r.Register(src, Gemini, FeatureSystemPrompt, Degraded)
		for _, tgt := range openaiLike {
			if src == tgt {
				continue
			}
			r.Register(src, tgt, FeatureText, Lossless)
			r.Register(src, tgt, FeatureToolUse, Lossless)
			r.Register(src, tgt, FeatureSystemPrompt, Lossless)
		}
	}
	for _, tgt := range openaiLike {
		r.Register(Claude, tgt, FeatureText, Lossless)
		r.Register(Claude, tgt, FeatureToolUse, Lossless)
		r.Register(Claude, tgt, FeatureThinking, Degraded)
		r.Register(Gemini, tgt, FeatureText, Lossless)
		r.Register(Gemini, tgt, FeatureToolUse, Lossless)
	}
	r.Register(Claude, Gemini, FeatureText, Lossless)
	r.Register(Claude, Gemini, FeatureToolUse, Lossless)
	r.Register(Claude, Gemini, FeatureThinking, Degraded)
	r.Register(Gemini, Claude, FeatureText, Lossless)
	r.Register(Gemini, Claude, FeatureToolUse, Lossless)
	return r
}

// Register grades one feature of one source→target pair.
func (r *MappingRegistry) Register(source, target Dialect, feature string, fidelity Fidelity) {
	key := pairKey{source, target}
	if r.pairs[key] == nil {
		r.pairs[key] = map[string]Fidelity{}
	}
	r.pairs[key][feature] = fidelity
}

// ValidateMapping returns the grades for the requested features of a pair.
// Features the registry has no grade for are omitted.
func (r *MappingRegistry) ValidateMapping(source, target Dialect, features []string) []FeatureFidelity {
	graded := r.pairs[pairKey{source, target}]
	var out []FeatureFidelity
	for _, f := range features {
		if fid, ok := graded[f]; ok {
			out = append(out, FeatureFidelity{Feature: f, Fidelity: fid})
		}
	}
	return out
}

// KnowsPair reports whether the registry has any grade for the pair.
func (r *MappingRegistry) KnowsPair(source, target Dialect) bool {
	return len(r.pairs[pairKey{source, target}]) > 0
}

// RankTargets orders the targets reachable from source by how many of the
// given features they carry losslessly, descending, ties broken by dialect
// name ascending.
func (r *MappingRegistry) RankTargets(source Dialect, features []string) []Dialect {
	type ranked struct {
		target   Dialect
		lossless int
	}
	var rankings []ranked
	for key, graded := range r.pairs {
		if key.source != source {
			continue
		}
		count := 0
		for _, f := range features {
			if graded[f] == Lossless {
				count++
			}
		}
		rankings = append(rankings, ranked{target: key.target, lossless: count})
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].lossless != rankings[j].lossless {
			return rankings[i].lossless > rankings[j].lossless
		}
		return rankings[i].target < rankings[j].target
	})
	out := make([]Dialect, len(rankings))
	for i, rk := range rankings {
		out[i] = rk.target
	}
	return out
}
