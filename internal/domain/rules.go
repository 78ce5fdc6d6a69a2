package domain

import "strings"

// MatchingRules are the operator's substring filters. An offer must hit
// every category; within a category one pattern is enough.
type MatchingRules struct {
	Destinations []string
	Consignees   []string
	ShipModes    []string
}

func (r MatchingRules) Normalize() MatchingRules {
	return MatchingRules{
		Destinations: normalizePatterns(r.Destinations),
		Consignees:   normalizePatterns(r.Consignees),
		ShipModes:    normalizePatterns(r.ShipModes),
	}
}

func (r MatchingRules) Matches(offer LoadOffer) bool {
	return containsAny(offer.DestLocation, r.Destinations) &&
		containsAny(offer.Consignee, r.Consignees) &&
		containsAny(offer.ShipMode, r.ShipModes)
}

func containsAny(value string, patterns []string) bool {
	lowered := strings.ToLower(value)
	for _, pattern := range patterns {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func normalizePatterns(patterns []string) []string {
	result := make([]string, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
