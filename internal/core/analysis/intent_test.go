package analysis

import "testing"

func TestAnalyzeClearIntent(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	result := analyzer.Analyze("Please create a function that calculates the factorial of a number", nil)

	if result.ClarityScore <= 0.7 {
		t.Fatalf("expected clarity > 0.7, got %.2f", result.ClarityScore)
	}
	if len(result.SuggestedClarifications) != 0 {
		t.Fatalf("expected no clarifications, got %v", result.SuggestedClarifications)
	}
}

func TestAnalyzeAmbiguousIntent(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	result := analyzer.Analyze("Can you help me with this?", nil)

	if result.ClarityScore >= 0.6 {
		t.Fatalf("expected clarity < 0.6, got %.2f", result.ClarityScore)
	}
	if len(result.SuggestedClarifications) == 0 {
		t.Fatalf("expected at least one clarification")
	}
	if len(result.AmbiguousElements) == 0 {
		t.Fatalf("expected ambiguous elements to be recorded")
	}
}

func TestAnalyzeHistoryResolvesPronoun(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	history := []string{"I'm working on a project", "It has a web interface"}

	without := analyzer.Analyze("Can you improve it?", nil)
	with := analyzer.Analyze("Can you improve it?", history)

	if with.ClarityScore <= without.ClarityScore {
		t.Fatalf("expected history to raise clarity: %.2f <= %.2f", with.ClarityScore, without.ClarityScore)
	}
}

func TestAnalyzeDanglingPronounPenalized(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	history := []string{"ok", "sure", "go ahead"}

	without := analyzer.Analyze("Can you improve it?", nil)
	with := analyzer.Analyze("Can you improve it?", history)

	if with.ClarityScore >= without.ClarityScore {
		t.Fatalf("expected noun-free history to lower clarity: %.2f >= %.2f", with.ClarityScore, without.ClarityScore)
	}
}

func TestAnalyzeEmptyMessage(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	result := analyzer.Analyze("", nil)

	if result.ClarityScore != 1.0 {
		t.Fatalf("expected clarity 1.0 for empty message, got %.2f", result.ClarityScore)
	}
	if result.Confidence != 0.5 {
		t.Fatalf("expected base confidence 0.5, got %.2f", result.Confidence)
	}
	if len(result.AmbiguousElements) != 0 || len(result.SuggestedClarifications) != 0 {
		t.Fatalf("expected empty analysis sets for empty message")
	}
}

func TestAnalyzeClarificationsCappedAtThree(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	// Triggers the pronoun, incomplete-action, and back-reference rules, each
	// of which produces one question, in rule order.
	result := analyzer.Analyze("fix it. try more. help", nil)

	if len(result.SuggestedClarifications) != 3 {
		t.Fatalf("expected exactly 3 clarifications, got %v", result.SuggestedClarifications)
	}
	if result.SuggestedClarifications[0] != "Could you specify what exactly you're referring to?" {
		t.Fatalf("expected pronoun question first, got %q", result.SuggestedClarifications[0])
	}
	if result.ClarityScore != 0.0 {
		t.Fatalf("expected clarity clamped to 0, got %.2f", result.ClarityScore)
	}
}

func TestAnalyzeConfidenceGrowsWithLength(t *testing.T) {
	analyzer := NewIntentAnalyzer()
	short := analyzer.Analyze("fix the build", nil)
	long := analyzer.Analyze("fix the build of the payments service using the documented release procedure from yesterday", nil)

	if long.Confidence <= short.Confidence {
		t.Fatalf("expected longer message to score higher confidence: %.2f <= %.2f", long.Confidence, short.Confidence)
	}
	if long.Confidence > 0.95 {
		t.Fatalf("confidence must be capped at 0.95, got %.2f", long.Confidence)
	}
}
