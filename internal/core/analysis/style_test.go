package analysis

import (
	"strings"
	"testing"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

func TestProfileStyleFormal(t *testing.T) {
	adapter := NewStyleAdapter()
	style := adapter.ProfileStyle([]string{
		"Could you please help?",
		"Thank you for your assistance.",
	})

	if style[domain.StyleFormality] <= 0.2 {
		t.Fatalf("expected formality > 0.2, got %.2f", style[domain.StyleFormality])
	}
}

func TestProfileStyleCasual(t *testing.T) {
	adapter := NewStyleAdapter()
	style := adapter.ProfileStyle([]string{
		"hey can u help",
		"yeah that works",
		"gonna try this now",
	})

	if style[domain.StyleFormality] >= 0 {
		t.Fatalf("expected formality < 0, got %.2f", style[domain.StyleFormality])
	}
}

func TestProfileStyleTechnical(t *testing.T) {
	adapter := NewStyleAdapter()
	style := adapter.ProfileStyle([]string{
		"I need an API endpoint for the database",
		"Can you help with this function()?",
		"Here is the snippet: `SELECT 1`",
	})

	if style[domain.StyleTechnicalDepth] <= 0.3 {
		t.Fatalf("expected technical_depth > 0.3, got %.2f", style[domain.StyleTechnicalDepth])
	}
}

func TestProfileStyleBrevityBuckets(t *testing.T) {
	adapter := NewStyleAdapter()

	short := adapter.ProfileStyle([]string{"ship it"})
	long := adapter.ProfileStyle([]string{strings.Repeat("this message keeps going and going ", 6)})

	if short[domain.StyleBrevity] != 0.5 {
		t.Fatalf("expected +0.5 for short message, got %.2f", short[domain.StyleBrevity])
	}
	if long[domain.StyleBrevity] != -0.5 {
		t.Fatalf("expected -0.5 for long message, got %.2f", long[domain.StyleBrevity])
	}
}

func TestProfileStyleEmptyInput(t *testing.T) {
	adapter := NewStyleAdapter()
	style := adapter.ProfileStyle(nil)

	for _, dimension := range styleDimensions {
		if style[dimension] != 0 {
			t.Fatalf("expected zero vector for empty input, got %v", style)
		}
	}
}

func profileWith(style map[string]float64, length domain.ResponseLength) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:                  "u",
		CommunicationStyle:      style,
		PreferredResponseLength: length,
	}
}

func TestAdaptResponseFormal(t *testing.T) {
	adapter := NewStyleAdapter()
	profile := profileWith(map[string]float64{domain.StyleFormality: 0.8}, domain.ResponseLengthAdaptive)

	adapted := adapter.AdaptResponse("I can't help with that right now.", profile)

	if !strings.Contains(adapted, "cannot") {
		t.Fatalf("expected contraction expanded, got %q", adapted)
	}
	if strings.Contains(adapted, "can't") {
		t.Fatalf("expected contraction removed, got %q", adapted)
	}
	if !strings.HasPrefix(adapted, "Please note that ") {
		t.Fatalf("expected courtesy prefix, got %q", adapted)
	}
}

func TestAdaptResponseCasual(t *testing.T) {
	adapter := NewStyleAdapter()
	profile := profileWith(map[string]float64{domain.StyleFormality: -0.8}, domain.ResponseLengthAdaptive)

	adapted := adapter.AdaptResponse("I cannot do that. Yes, it is not ready.", profile)

	if !strings.Contains(adapted, "can't") || !strings.Contains(adapted, "yeah") {
		t.Fatalf("expected casual contractions, got %q", adapted)
	}
}

func TestAdaptResponseEnthusiastic(t *testing.T) {
	adapter := NewStyleAdapter()
	profile := profileWith(map[string]float64{domain.StyleEnthusiasm: 0.5}, domain.ResponseLengthAdaptive)

	adapted := adapter.AdaptResponse("That looks good.", profile)

	if adapted != "That looks great!" {
		t.Fatalf("expected enthusiastic rewrite, got %q", adapted)
	}
}

func TestAdaptResponseTechnicalDepth(t *testing.T) {
	adapter := NewStyleAdapter()

	deep := adapter.AdaptResponse("Use the migration runner.",
		profileWith(map[string]float64{domain.StyleTechnicalDepth: 0.6}, domain.ResponseLengthAdaptive))
	if !strings.Contains(deep, "documentation") {
		t.Fatalf("expected documentation pointer, got %q", deep)
	}

	plain := adapter.AdaptResponse("Call the API with the right parameters.",
		profileWith(map[string]float64{domain.StyleTechnicalDepth: -0.6}, domain.ResponseLengthAdaptive))
	if strings.Contains(plain, "API") || !strings.Contains(plain, "interface") {
		t.Fatalf("expected jargon simplified, got %q", plain)
	}
}

func TestAdaptResponseBriefTruncates(t *testing.T) {
	adapter := NewStyleAdapter()
	profile := profileWith(nil, domain.ResponseLengthBrief)

	long := strings.Repeat("This sentence pads the response well past the cutoff. ", 5)
	adapted := adapter.AdaptResponse(long, profile)

	if adapted != "This sentence pads the response well past the cutoff." {
		t.Fatalf("expected truncation to first sentence, got %q", adapted)
	}
}

func TestAdaptResponseDetailedAppends(t *testing.T) {
	adapter := NewStyleAdapter()
	profile := profileWith(nil, domain.ResponseLengthDetailed)

	adapted := adapter.AdaptResponse("Done.", profile)
	if !strings.Contains(adapted, "options and alternatives") {
		t.Fatalf("expected elaboration sentence, got %q", adapted)
	}
}

func TestAdaptResponseNilProfile(t *testing.T) {
	adapter := NewStyleAdapter()
	if got := adapter.AdaptResponse("unchanged", nil); got != "unchanged" {
		t.Fatalf("expected passthrough without profile, got %q", got)
	}
}
