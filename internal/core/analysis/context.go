package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

// Stage keyword sets, checked in this order; first match wins.
var (
	openingKeywords    = []string{"hello", "hi", "start", "begin"}
	clarifyingKeywords = []string{"clarify", "explain", "what", "how", "why"}
	concludingKeywords = []string{"thanks", "bye", "done", "finish"}
)

// ContextManager tracks per-chat conversation state and ranks history for
// relevance against the current message.
type ContextManager struct {
	maxContextMessages int
	now                func() time.Time
}

func NewContextManager(maxContextMessages int) *ContextManager {
	if maxContextMessages <= 0 {
		maxContextMessages = 20
	}
	return &ContextManager{
		maxContextMessages: maxContextMessages,
		now:                time.Now,
	}
}

// UpdateState folds one new message into the chat's running state, creating
// the state when existing is nil. The returned state is the mutated input;
// persisting it is the caller's job.
func (m *ContextManager) UpdateState(chatID, userID string, msg domain.EnhancedMessage, existing *domain.ConversationState) *domain.ConversationState {
	state := existing
	if state == nil {
		state = domain.NewConversationState(chatID, userID, m.now())
	}

	entities := ExtractEntities(msg.Content)

	// Merge then keep the last 10 unique. Deliberately a set-union-and-
	// truncate, not an LRU: repeated entities collapse before truncation,
	// so ordering across duplicates is not strictly recency-correct.
	merged := make([]string, 0, len(state.KeyEntities)+len(entities))
	seen := make(map[string]struct{}, len(state.KeyEntities)+len(entities))
	for _, entity := range append(append([]string{}, state.KeyEntities...), entities...) {
		if _, ok := seen[entity]; ok {
			continue
		}
		seen[entity] = struct{}{}
		merged = append(merged, entity)
	}
	if len(merged) > domain.MaxKeyEntities {
		merged = merged[len(merged)-domain.MaxKeyEntities:]
	}
	state.KeyEntities = merged

	if state.ImportanceScores == nil {
		state.ImportanceScores = map[string]float64{}
	}
	state.ImportanceScores[msg.ID] = msg.ImportanceScore

	state.Stage = determineStage(msg.Content)
	state.TopicSummary = updateTopicSummary(state.TopicSummary, entities)
	state.LastUpdated = m.now()
	return state
}

// RankContext selects the up-to-10 prior turns most relevant to the current
// message, ordered by descending combined score. Only the most recent
// maxContextMessages entries of history are considered; ties keep their
// original relative order.
func (m *ContextManager) RankContext(state *domain.ConversationState, currentMessage string, history []domain.EnhancedMessage) []domain.EnhancedMessage {
	start := len(history) - m.maxContextMessages
	if start < 0 {
		start = 0
	}
	window := history[start:]

	type scored struct {
		msg   domain.EnhancedMessage
		score float64
	}
	now := m.now()
	currentEntities := entitySet(currentMessage)

	candidates := make([]scored, 0, len(window))
	for _, msg := range window {
		hours := now.Sub(msg.Timestamp).Hours()
		recency := 1 - hours/24
		if recency < 0 {
			recency = 0
		}

		importance := 0.5
		if state != nil {
			if stored, ok := state.ImportanceScores[msg.ID]; ok {
				importance = stored
			}
		}

		relevance := jaccardRelevance(currentEntities, entitySet(msg.Content))

		candidates = append(candidates, scored{
			msg:   msg,
			score: 0.3*recency + 0.4*importance + 0.3*relevance,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	limit := 10
	if len(candidates) < limit {
		limit = len(candidates)
	}
	out := make([]domain.EnhancedMessage, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.msg)
	}
	return out
}

// Relevance scores entity overlap between two texts via Jaccard similarity.
// Two entity-free texts score a floor of 0.1 rather than zero.
func (m *ContextManager) Relevance(currentMessage, historicalMessage string) float64 {
	return jaccardRelevance(entitySet(currentMessage), entitySet(historicalMessage))
}

func jaccardRelevance(current, historical map[string]struct{}) float64 {
	if len(current) == 0 && len(historical) == 0 {
		return 0.1
	}
	intersection := 0
	for entity := range current {
		if _, ok := historical[entity]; ok {
			intersection++
		}
	}
	union := len(current) + len(historical) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func determineStage(content string) domain.Stage {
	lowered := strings.ToLower(content)
	switch {
	case containsAny(lowered, openingKeywords):
		return domain.StageOpening
	case containsAny(lowered, clarifyingKeywords):
		return domain.StageClarifying
	case containsAny(lowered, concludingKeywords):
		return domain.StageConcluding
	default:
		return domain.StageDeveloping
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func updateTopicSummary(existing string, entities []string) string {
	if existing == "" {
		return "Discussion about: " + strings.Join(headEntities(entities, 5), ", ")
	}
	return existing + "; " + strings.Join(headEntities(entities, 3), ", ")
}

func headEntities(entities []string, n int) []string {
	if len(entities) > n {
		return entities[:n]
	}
	return entities
}
