package domain

import "time"

// Style dimension names used in the communication-style vector.
const (
	StyleFormality      = "formality"
	StyleEnthusiasm     = "enthusiasm"
	StyleTechnicalDepth = "technical_depth"
	StyleBrevity        = "brevity"
)

// ResponseLength is the user's preferred reply length.
type ResponseLength string

const (
	ResponseLengthBrief    ResponseLength = "brief"
	ResponseLengthDetailed ResponseLength = "detailed"
	ResponseLengthAdaptive ResponseLength = "adaptive"
)

// UserProfile is the per-user style memory. The communication-style vector is
// recomputed from recent messages on every turn, not merged incrementally.
// Scores are in [-1, 1].
type UserProfile struct {
	UserID                  string             `json:"user_id"`
	CommunicationStyle      map[string]float64 `json:"communication_style"`
	PreferredResponseLength ResponseLength     `json:"preferred_response_length"`
	TopicPreferences        map[string]float64 `json:"topic_preferences"`
	ClarificationFrequency  float64            `json:"clarification_frequency"`
	LastUpdated             time.Time          `json:"last_updated"`
}

// NewUserProfile returns the initial profile for a user's first turn.
func NewUserProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:                  userID,
		CommunicationStyle:      map[string]float64{},
		PreferredResponseLength: ResponseLengthAdaptive,
		TopicPreferences:        map[string]float64{},
		LastUpdated:             now,
	}
}

// Style returns the named style dimension, zero when unknown.
func (p *UserProfile) Style(dimension string) float64 {
	if p == nil || p.CommunicationStyle == nil {
		return 0
	}
	return p.CommunicationStyle[dimension]
}
