package analysis

import (
	"regexp"
	"strings"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

// styleRule is one weighted cue for a style dimension. Word and phrase cues
// match case-insensitively; capitalization cues are case-sensitive on
// purpose, since casing is the signal.
type styleRule struct {
	weight float64
	count  func(message string) int
}

func regexRule(pattern string, weight float64) styleRule {
	re := regexp.MustCompile(pattern)
	return styleRule{
		weight: weight,
		count:  func(message string) int { return len(re.FindAllString(message, -1)) },
	}
}

func lengthBucketRule(min, max int, weight float64) styleRule {
	return styleRule{
		weight: weight,
		count: func(message string) int {
			n := len(message)
			if n >= min && (max <= 0 || n <= max) {
				return 1
			}
			return 0
		},
	}
}

var styleIndicators = map[string][]styleRule{
	domain.StyleFormality: {
		regexRule(`(?i)\b(please|thank you|would you|could you)\b`, 0.2),
		regexRule(`(?i)\b(gonna|wanna|gotta|yeah)\b`, -0.2),
		regexRule(`[.!?]$`, 0.1),
		regexRule(`[A-Z][a-z]`, 0.05),
	},
	domain.StyleEnthusiasm: {
		regexRule(`!+`, 0.3),
		regexRule(`(?i)\b(awesome|great|amazing|wonderful|excellent)\b`, 0.2),
		regexRule(`[A-Z]{2,}`, 0.1),
		regexRule(`\?{2,}`, 0.1),
	},
	domain.StyleTechnicalDepth: {
		regexRule(`(?i)\b(API|SDK|JSON|XML|HTTP|database|algorithm)\b`, 0.3),
		regexRule(`(?i)\b(function|method|class|variable|parameter)\b`, 0.2),
		regexRule(`(?i)\b\w+\(\)`, 0.2),
		regexRule("```|`[^`]+`", 0.3),
	},
	domain.StyleBrevity: {
		lengthBucketRule(1, 50, 0.5),
		lengthBucketRule(51, 150, 0.0),
		lengthBucketRule(151, 0, -0.5),
	},
}

// styleDimensions fixes iteration order so profiling is deterministic.
var styleDimensions = []string{
	domain.StyleFormality,
	domain.StyleEnthusiasm,
	domain.StyleTechnicalDepth,
	domain.StyleBrevity,
}

// StyleAdapter infers a user's communication style from message history and
// rewrites draft replies to match it.
type StyleAdapter struct{}

func NewStyleAdapter() *StyleAdapter {
	return &StyleAdapter{}
}

// ProfileStyle accumulates weighted cue counts per dimension across all
// messages, averages by message count, and clamps to [-1, 1]. An empty
// message list yields an all-zero vector.
func (a *StyleAdapter) ProfileStyle(messages []string) map[string]float64 {
	scores := make(map[string]float64, len(styleDimensions))
	for _, dimension := range styleDimensions {
		scores[dimension] = 0.0
	}
	if len(messages) == 0 {
		return scores
	}

	for _, message := range messages {
		for _, dimension := range styleDimensions {
			for _, rule := range styleIndicators[dimension] {
				scores[dimension] += rule.weight * float64(rule.count(message))
			}
		}
	}

	count := float64(len(messages))
	for dimension, total := range scores {
		scores[dimension] = clamp(total/count, -1.0, 1.0)
	}
	return scores
}

type wordSwap struct {
	pattern     *regexp.Regexp
	replacement string
}

func swap(word, replacement string) wordSwap {
	return wordSwap{
		pattern:     regexp.MustCompile(`(?i)\b(?:` + word + `)\b`),
		replacement: replacement,
	}
}

var (
	formalSwaps = []wordSwap{
		swap(`can't`, "cannot"),
		swap(`won't`, "will not"),
		swap(`don't`, "do not"),
		swap(`isn't`, "is not"),
		swap(`yeah`, "yes"),
		swap(`okay`, "very well"),
	}
	casualSwaps = []wordSwap{
		swap(`cannot`, "can't"),
		swap(`will not`, "won't"),
		swap(`do not`, "don't"),
		swap(`is not`, "isn't"),
		swap(`yes`, "yeah"),
	}
	enthusiasmSwaps = []wordSwap{
		swap(`good`, "great"),
		swap(`nice`, "awesome"),
		swap(`ok`, "excellent"),
		swap(`works`, "works perfectly"),
	}
	plainLanguageSwaps = []wordSwap{
		swap(`API`, "interface"),
		swap(`parameters`, "settings"),
		swap(`function`, "feature"),
		swap(`execute`, "run"),
		swap(`implement`, "create"),
	}
	fillerSwaps = []wordSwap{
		swap(`in order to|for the purpose of`, "to"),
		swap(`at this point in time|at the present time`, "now"),
	}

	courtesyRe = regexp.MustCompile(`(?i)\b(please|thank you)\b`)
)

// AdaptResponse rewrites a draft reply to match the user's style vector and
// length preference. Rewrites apply in fixed order (formality, enthusiasm,
// technical depth, length) and are independent of each other.
func (a *StyleAdapter) AdaptResponse(base string, profile *domain.UserProfile) string {
	if profile == nil {
		return base
	}
	adapted := base

	switch {
	case profile.Style(domain.StyleFormality) > 0.3:
		adapted = increaseFormality(adapted)
	case profile.Style(domain.StyleFormality) < -0.3:
		adapted = applySwaps(adapted, casualSwaps)
	}

	if profile.Style(domain.StyleEnthusiasm) > 0.3 {
		adapted = increaseEnthusiasm(adapted)
	}

	switch {
	case profile.Style(domain.StyleTechnicalDepth) > 0.3:
		adapted += " For more technical details, please refer to the relevant documentation or API specifications."
	case profile.Style(domain.StyleTechnicalDepth) < -0.3:
		adapted = applySwaps(adapted, plainLanguageSwaps)
	}

	switch profile.PreferredResponseLength {
	case domain.ResponseLengthBrief:
		adapted = makeConcise(adapted)
	case domain.ResponseLengthDetailed:
		adapted += " Additionally, you might want to consider the various options and alternatives available for this approach."
	}

	return adapted
}

func applySwaps(text string, swaps []wordSwap) string {
	for _, s := range swaps {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	return text
}

func increaseFormality(text string) string {
	text = applySwaps(text, formalSwaps)
	if text != "" && !courtesyRe.MatchString(text) {
		text = "Please note that " + strings.ToLower(text)
	}
	return text
}

func increaseEnthusiasm(text string) string {
	if !strings.HasSuffix(text, "!") {
		text = strings.TrimRight(text, ".") + "!"
	}
	return applySwaps(text, enthusiasmSwaps)
}

func makeConcise(text string) string {
	text = applySwaps(text, fillerSwaps)
	sentences := strings.Split(text, ". ")
	if len(sentences) > 1 && len(text) > 200 {
		return sentences[0] + "."
	}
	return text
}
