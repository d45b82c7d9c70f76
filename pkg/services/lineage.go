package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultLineageAliases maps WHO labels to the wildcard patterns they cover.
var defaultLineageAliases = map[string][]string{
	"Alpha":   {"B.1.1.7*", "Q*"},
	"Beta":    {"B.1.351*"},
	"Gamma":   {"P.1*"},
	"Delta":   {"B.1.617.2*", "AY*"},
	"Epsilon": {"B.1.427*", "B.1.429*"},
	"Lambda":  {"C.37*"},
	"Mu":      {"B.1.621*"},
	"Omicron": {"B.1.1.529*", "BA*"},
}

// LineageService expands lineage shorthand (WHO aliases and trailing-*
// wildcards) into concrete lineage sets.
type LineageService struct {
	aliases map[string][]string
}

// NewLineageService creates a LineageService with the built-in alias table.
func NewLineageService() *LineageService {
	return &LineageService{aliases: defaultLineageAliases}
}

// NewLineageServiceFromFile creates a LineageService with the alias table
// loaded from a YAML file mapping alias names to pattern lists.
func NewLineageServiceFromFile(path string) (*LineageService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lineage aliases file: %w", err)
	}

	var aliases map[string][]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse lineage aliases file: %w", err)
	}
	return &LineageService{aliases: aliases}, nil
}

// Expand resolves the requested patterns against the known lineage set.
//
// Each pattern is reduced to its first whitespace-delimited token (UI
// strings like "BA.1* / 21K" carry annotations after the pattern). Alias
// names expand to their wildcard lists before matching. A pattern ending in
// "*" matches every known lineage equal to the prefix or starting with
// prefix+"." - so "BA.1*" matches "BA.1" and "BA.1.1" but never "BA.11".
// Non-wildcard patterns pass through verbatim without membership
// validation. The result is deduplicated and sorted.
func (s *LineageService) Expand(knownLineages []string, patterns []string) []string {
	resolved := make(map[string]bool)

	for _, pattern := range patterns {
		pattern = firstToken(pattern)
		if pattern == "" {
			continue
		}

		expanded, isAlias := s.aliases[pattern]
		if !isAlias {
			expanded = []string{pattern}
		}

		for _, p := range expanded {
			prefix, isWildcard := strings.CutSuffix(p, "*")
			if !isWildcard {
				resolved[p] = true
				continue
			}
			for _, lineage := range knownLineages {
				if lineage == prefix || strings.HasPrefix(lineage, prefix+".") {
					resolved[lineage] = true
				}
			}
		}
	}

	result := make([]string, 0, len(resolved))
	for lineage := range resolved {
		result = append(result, lineage)
	}
	sort.Strings(result)
	return result
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
