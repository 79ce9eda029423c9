package analysis

import (
	"regexp"
	"strings"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

// ambiguityRule is one ordered heuristic: count ambiguous constructions in a
// message, charge penalty per match, and optionally propose one canned
// clarification question. Evaluation order is part of the contract — the
// first three suggested clarifications survive, in rule order.
type ambiguityRule struct {
	label         string
	penalty       float64
	count         func(message string) int
	clarification string
}

var (
	vaguePronounRe = regexp.MustCompile(`(?i)\b(this|that|it|them)\b`)
	followerWordRe = regexp.MustCompile(`^\s+\w+`)
	incompleteRe   = regexp.MustCompile(`(?i)\b(help|do|make|create|fix)\s*$`)
	hedgingRe      = regexp.MustCompile(`(?i)\b(or|maybe|perhaps|might|could)\b`)
	backRefRe      = regexp.MustCompile(`(?i)\b(again|more|another|different)\b`)
	leadingWhRe    = regexp.MustCompile(`(?i)^(when|where|why|how)\s+`)

	pronounRe      = regexp.MustCompile(`(?i)\b(it|this|that|they|them)\b`)
	historyNounsRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
)

var ambiguityRules = []ambiguityRule{
	{
		label:   "Vague reference",
		penalty: 0.45,
		// A pronoun is only vague when no word follows it to anchor the
		// reference ("fix this" vs "fix this query"). RE2 has no lookahead,
		// so the follower check runs against the tail after each match.
		count: func(message string) int {
			n := 0
			for _, loc := range vaguePronounRe.FindAllStringIndex(message, -1) {
				if !followerWordRe.MatchString(message[loc[1]:]) {
					n++
				}
			}
			return n
		},
		clarification: "Could you specify what exactly you're referring to?",
	},
	{
		label:         "Incomplete action request",
		penalty:       0.4,
		count:         func(message string) int { return len(incompleteRe.FindAllString(message, -1)) },
		clarification: "What specifically would you like help with?",
	},
	{
		label:   "Uncertain language",
		penalty: 0.2,
		count:   func(message string) int { return len(hedgingRe.FindAllString(message, -1)) },
	},
	{
		label:         "Missing context reference",
		penalty:       0.3,
		count:         func(message string) int { return len(backRefRe.FindAllString(message, -1)) },
		clarification: "Could you provide more context about what you mentioned before?",
	},
	{
		label:   "Implicit question",
		penalty: 0.3,
		count: func(message string) int {
			if leadingWhRe.MatchString(message) && !strings.Contains(message, "?") {
				return 1
			}
			return 0
		},
	},
}

type clarityBooster struct {
	pattern *regexp.Regexp
	boost   float64
}

var clarityBoosters = []clarityBooster{
	{regexp.MustCompile(`(?i)\bspecifically\b`), 0.1},
	{regexp.MustCompile(`(?i)\bexactly\b`), 0.1},
	{regexp.MustCompile(`(?i)\bprecisely\b`), 0.1},
	{regexp.MustCompile(`\d+`), 0.05},      // numbers add specificity
	{regexp.MustCompile(`\b\w+\.\w+\b`), 0.05}, // file extensions, URLs
}

// IntentAnalyzer scores how unambiguous a user message is and proposes
// clarification questions for the constructions that lowered the score.
type IntentAnalyzer struct{}

func NewIntentAnalyzer() *IntentAnalyzer {
	return &IntentAnalyzer{}
}

// Analyze is deterministic for identical inputs and always returns a result;
// an empty message scores exactly 1.0.
func (a *IntentAnalyzer) Analyze(message string, history []string) domain.IntentClarity {
	clarity := 1.0
	seenLabels := make(map[string]struct{})
	ambiguous := make([]string, 0, len(ambiguityRules))
	clarifications := make([]string, 0, 3)

	for _, rule := range ambiguityRules {
		matches := rule.count(message)
		if matches == 0 {
			continue
		}
		clarity -= rule.penalty * float64(matches)
		if _, ok := seenLabels[rule.label]; !ok {
			seenLabels[rule.label] = struct{}{}
			ambiguous = append(ambiguous, rule.label)
		}
		if rule.clarification != "" {
			clarifications = append(clarifications, rule.clarification)
		}
	}

	for _, booster := range clarityBoosters {
		clarity += booster.boost * float64(len(booster.pattern.FindAllString(message, -1)))
	}

	if len(history) > 0 {
		clarity += contextClarity(message, history)
	}

	clarity = clamp(clarity, 0.0, 1.0)

	confidence := 0.5 + float64(len(strings.Fields(message)))/100
	if confidence > 0.95 {
		confidence = 0.95
	}

	if len(clarifications) > 3 {
		clarifications = clarifications[:3]
	}

	return domain.IntentClarity{
		Message:                 message,
		ClarityScore:            clarity,
		AmbiguousElements:       ambiguous,
		SuggestedClarifications: clarifications,
		Confidence:              confidence,
	}
}

// contextClarity checks whether pronouns in the message are plausibly
// resolvable from recent history: +0.1 when capitalized nouns appear in the
// last three entries, -0.2 when a pronoun dangles with none in sight.
func contextClarity(message string, history []string) float64 {
	if !pronounRe.MatchString(message) {
		return 0.0
	}
	start := len(history) - 3
	if start < 0 {
		start = 0
	}
	recent := strings.Join(history[start:], " ")
	if historyNounsRe.MatchString(recent) {
		return 0.1
	}
	return -0.2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
