package dialect

// ModelRow is one row of the model equivalence table: the closest peer model
// per vendor column. Empty cells mean no equivalent is published.
type ModelRow struct {
	OpenAI string
	Claude string
	Gemini string
	Codex  string
	Kimi   string
}

// ModelEquivalenceTable is the fixed cross-vendor model mapping. Rows carry
// at least the OpenAI and Claude columns.
var ModelEquivalenceTable = []ModelRow{
	{
		OpenAI: "gpt-4o",
		Claude: "claude-sonnet-4-20250514",
		Gemini: "gemini-2.5-flash",
		Codex:  "codex-mini-latest",
	},
	{
		OpenAI: "gpt-4o-mini",
		Claude: "claude-3-5-haiku-20241022",
		Gemini: "gemini-2.0-flash-lite",
	},
	{
		OpenAI: "o1",
		Claude: "claude-opus-4-20250514",
		Gemini: "gemini-2.5-pro",
	},
	{
		OpenAI: "gpt-4-turbo",
		Claude: "claude-3-7-sonnet-20250219",
		Gemini: "gemini-1.5-pro",
		Kimi:   "moonshot-v1-128k",
	},
}

func (r ModelRow) cell(d Dialect) string {
	switch d {
	case OpenAI, Copilot:
		return r.OpenAI
	case Claude:
		return r.Claude
	case Gemini:
		return r.Gemini
	case Codex:
		return r.Codex
	case Kimi:
		return r.Kimi
	default:
		return ""
	}
}

func (r ModelRow) contains(model string) bool {
	return model != "" && (r.OpenAI == model || r.Claude == model ||
		r.Gemini == model || r.Codex == model || r.Kimi == model)
}

// TranslateModelName maps a model identifier to its equivalent in the target
// dialect. Internal dialects (abp, mock) pass names through unchanged.
// Unknown names, and rows with no entry for the target, return false.
func TranslateModelName(model string, target Dialect) (string, bool) {
	if target == Abp || target == Mock {
		return model, true
	}
	for _, row := range ModelEquivalenceTable {
		if !row.contains(model) {
			continue
		}
		if cell := row.cell(target); cell != "" {
			return cell, true
		}
		return "", false
	}
	return "", false
}

// KnownModels lists the model identifiers each vendor column of the table
// publishes.
func KnownModels(d Dialect) []string {
	var out []string
	for _, row := range ModelEquivalenceTable {
		if cell := row.cell(d); cell != "" {
			out = append(out, cell)
		}
	}
	return out
}

// IsKnownModel reports whether model appears in the dialect's column of the
// equivalence table. Internal dialects accept any name.
func IsKnownModel(d Dialect, model string) bool {
	if d == Abp || d == Mock {
		return true
	}
	for _, row := range ModelEquivalenceTable {
		if row.cell(d) == model && model != "" {
			return true
		}
	}
	return false
}

// ToCanonicalModel prefixes a vendor model name with its dialect
// (e.g. openai/gpt-4o).
func ToCanonicalModel(d Dialect, vendorModel string) string {
	return string(d) + "/" + vendorModel
}

// FromCanonicalModel strips the dialect prefix when present; other names are
// returned unchanged.
func FromCanonicalModel(d Dialect, canonical string) string {
	prefix := string(d) + "/"
	if len(canonical) > len(prefix) && canonical[:len(prefix)] == prefix {
		return canonical[len(prefix):]
	}
	return canonical
}
