// Package analysis holds the heuristic conversation-memory modules: entity
// extraction, intent clarity scoring, state tracking with context ranking,
// and communication-style profiling/adaptation. Everything here is pure
// pattern matching over text; no I/O and no shared mutable state.
package analysis

import "regexp"

var entityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`), // proper nouns
	regexp.MustCompile(`\b\w+\.\w+\b`),                   // file names, URLs
	regexp.MustCompile(`\b\d+(?:\.\d+)?\b`),              // numbers
}

// ExtractEntities pulls candidate entities out of raw text: capitalized word
// runs, dotted tokens, and numeric literals. The result is deduplicated and
// kept in first-seen order so callers get deterministic output; order carries
// no meaning beyond that.
func ExtractEntities(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	entities := make([]string, 0, 8)
	for _, pattern := range entityPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			entities = append(entities, match)
		}
	}
	return entities
}

// entitySet returns the extracted entities as a membership set.
func entitySet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, entity := range ExtractEntities(text) {
		set[entity] = struct{}{}
	}
	return set
}
