// Package scapeid canonicalizes scape names so registry lookups accept the
// common aliases of the built-in scapes.
package scapeid

import "strings"

const (
	Tour  = "tour"
	Chain = "chain"
)

// Normalize lowercases name, folds "_" and spaces to "-", strips a "scape"
// prefix, and maps known aliases to their canonical scape.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalScapeName(candidate); ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	trimmed := strings.Trim(strings.TrimPrefix(normalized, "scape-"), "-")
	if trimmed != "" && trimmed != normalized {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

func canonicalScapeName(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "-", "") {
	case "tour", "tsp", "travellingsalesman", "travelingsalesman":
		return Tour, true
	case "chain", "hp", "hpchain", "hpmodel", "proteinfolding", "folding":
		return Chain, true
	default:
		return "", false
	}
}
