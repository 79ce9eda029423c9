package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yavru421/llama-tail/internal/core/analysis"
	"github.com/yavru421/llama-tail/internal/core/domain"
	"github.com/yavru421/llama-tail/internal/core/ports"
)

const (
	clarityThreshold   = 0.6
	intentHistoryDepth = 5
	promptContextTurns = 5
	profileMessageCap  = 10

	clarificationFrequencyAlpha = 0.2
	topicPreferenceStep         = 0.1
)

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// TurnObserver receives turn-level measurements. Implementations must be
// safe for concurrent use.
type TurnObserver interface {
	ObserveTurn(outcome string, stage domain.Stage, duration time.Duration)
	ObserveFragments(count int)
	ObserveAdaptation(applied bool)
}

type noopObserver struct{}

func (noopObserver) ObserveTurn(string, domain.Stage, time.Duration) {}
func (noopObserver) ObserveFragments(int)                            {}
func (noopObserver) ObserveAdaptation(bool)                          {}

// ChatTurnUseCase drives one user turn through intent analysis, state
// tracking, context ranking, the streamed completion, and style adaptation.
type ChatTurnUseCase struct {
	chats    ports.ChatStore
	states   ports.StateStore
	profiles ports.ProfileStore
	provider ports.CompletionProvider
	tools    ports.ToolProvider
	events   ports.TurnEventPublisher

	intent   *analysis.IntentAnalyzer
	contexts *analysis.ContextManager
	styles   *analysis.StyleAdapter

	observer TurnObserver
	now      func() time.Time
}

func NewChatTurnUseCase(
	chats ports.ChatStore,
	states ports.StateStore,
	profiles ports.ProfileStore,
	provider ports.CompletionProvider,
	tools ports.ToolProvider,
	events ports.TurnEventPublisher,
	maxContextMessages int,
) *ChatTurnUseCase {
	return &ChatTurnUseCase{
		chats:    chats,
		states:   states,
		profiles: profiles,
		provider: provider,
		tools:    tools,
		events:   events,
		intent:   analysis.NewIntentAnalyzer(),
		contexts: analysis.NewContextManager(maxContextMessages),
		styles:   analysis.NewStyleAdapter(),
		observer: noopObserver{},
		now:      time.Now,
	}
}

// WithObserver attaches turn-level instrumentation.
func (uc *ChatTurnUseCase) WithObserver(observer TurnObserver) *ChatTurnUseCase {
	if observer != nil {
		uc.observer = observer
	}
	return uc
}

// Stream runs the turn protocol. Provider failures terminate the turn with a
// user-visible error fragment and never propagate; an emit error means the
// caller disconnected and stops both forwarding and assistant-turn
// persistence.
func (uc *ChatTurnUseCase) Stream(ctx context.Context, req domain.ChatRequest, emit func(string) error) error {
	if strings.TrimSpace(req.Message) == "" && req.Tool == "" {
		return domain.WrapError(domain.ErrInvalidInput, "chat turn", fmt.Errorf("message is required"))
	}

	start := uc.now()
	history, err := uc.loadHistory(ctx, req.Chat)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	clarity := uc.intent.Analyze(req.Message, tailContents(history, intentHistoryDepth))

	if clarity.ClarityScore < clarityThreshold && len(clarity.SuggestedClarifications) > 0 {
		// Ambiguous enough to ask back instead of answering. Nothing is
		// persisted for this turn; the user rephrases and tries again.
		if err := emit(clarity.SuggestedClarifications[0]); err != nil {
			return nil
		}
		uc.observer.ObserveTurn(domain.OutcomeClarify, "", uc.now().Sub(start))
		uc.publishEvent(ctx, req, "", domain.TurnEvent{
			Outcome:      domain.OutcomeClarify,
			ClarityScore: clarity.ClarityScore,
		})
		return nil
	}

	state, profile, err := uc.loadMemory(ctx, req)
	if err != nil {
		return err
	}

	userTurn := domain.EnhancedMessage{
		ID:              uuid.NewString(),
		Role:            domain.RoleUser,
		Content:         req.Message,
		ImageBase64:     req.ImageBase64,
		Timestamp:       uc.now(),
		ImportanceScore: importanceFromClarity(clarity.ClarityScore),
		IntentClarity:   &clarity,
	}

	if req.Chat != "" {
		state = uc.contexts.UpdateState(req.Chat, req.User, userTurn, state)
		if err := uc.states.Save(ctx, state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	if req.Tool != "" {
		return uc.dispatchTool(ctx, req, state, start, emit)
	}

	if req.Chat != "" {
		if err := uc.chats.Append(ctx, req.Chat, userTurn); err != nil {
			return fmt.Errorf("append user turn: %w", err)
		}
	}

	ranked := uc.contexts.RankContext(state, req.Message, history)
	prompt := buildPromptMessages(state, profile, ranked, userTurn)

	raw, fragments, streamErr := uc.consumeCompletion(ctx, prompt, req.Sampling(), emit)
	uc.observer.ObserveFragments(fragments)
	if streamErr != nil {
		if errors.Is(streamErr, errCallerGone) {
			return nil
		}
		// Converted to a terminal fragment for the user; state and the user
		// turn stay persisted, the assistant turn does not.
		if err := emit(providerFailureFragment(streamErr)); err != nil {
			return nil
		}
		uc.observer.ObserveTurn(domain.OutcomeProviderFail, stageOf(state), uc.now().Sub(start))
		uc.publishEvent(ctx, req, userTurn.ID, domain.TurnEvent{
			Outcome:      domain.OutcomeProviderFail,
			Stage:        stageOf(state),
			ClarityScore: clarity.ClarityScore,
		})
		slog.Warn("completion_failed", "chat", req.Chat, "error", streamErr)
		return nil
	}

	adapted := false
	if profile != nil {
		adapted = uc.emitAdaptation(raw, profile, emit)
	}
	uc.observer.ObserveAdaptation(adapted)

	if req.User != "" {
		if err := uc.updateProfile(ctx, req, profile, history, clarity.ClarityScore); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}

	if req.Chat != "" {
		assistantTurn := domain.EnhancedMessage{
			ID:              uuid.NewString(),
			Role:            domain.RoleAssistant,
			Content:         raw,
			Timestamp:       uc.now(),
			ImportanceScore: 0.5,
		}
		if err := uc.chats.Append(ctx, req.Chat, assistantTurn); err != nil {
			return fmt.Errorf("append assistant turn: %w", err)
		}
	}

	uc.observer.ObserveTurn(domain.OutcomeCompleted, stageOf(state), uc.now().Sub(start))
	uc.publishEvent(ctx, req, userTurn.ID, domain.TurnEvent{
		Outcome:      domain.OutcomeCompleted,
		Stage:        stageOf(state),
		ClarityScore: clarity.ClarityScore,
	})
	return nil
}

func (uc *ChatTurnUseCase) loadHistory(ctx context.Context, chatID string) ([]domain.EnhancedMessage, error) {
	if chatID == "" {
		return nil, nil
	}
	return uc.chats.Load(ctx, chatID)
}

func (uc *ChatTurnUseCase) loadMemory(ctx context.Context, req domain.ChatRequest) (*domain.ConversationState, *domain.UserProfile, error) {
	var state *domain.ConversationState
	var profile *domain.UserProfile

	if req.Chat != "" {
		loaded, err := uc.states.Load(ctx, req.Chat)
		if err != nil {
			return nil, nil, fmt.Errorf("load state: %w", err)
		}
		state = loaded
	}
	if req.User != "" {
		loaded, err := uc.profiles.Load(ctx, req.User)
		if err != nil {
			return nil, nil, fmt.Errorf("load profile: %w", err)
		}
		profile = loaded
	}
	return state, profile, nil
}

func (uc *ChatTurnUseCase) dispatchTool(ctx context.Context, req domain.ChatRequest, state *domain.ConversationState, start time.Time, emit func(string) error) error {
	result := uc.tools.Invoke(ctx, req.Tool, req.ToolInput)
	if err := emit(fmt.Sprintf("[Tool:%s] %s", req.Tool, result)); err != nil {
		return nil
	}

	if req.Chat != "" {
		toolTurn := domain.EnhancedMessage{
			ID:              uuid.NewString(),
			Role:            domain.RoleTool,
			Content:         result,
			Timestamp:       uc.now(),
			ImportanceScore: 0.5,
			Tool:            req.Tool,
		}
		if err := uc.chats.Append(ctx, req.Chat, toolTurn); err != nil {
			return fmt.Errorf("append tool turn: %w", err)
		}
	}

	uc.observer.ObserveTurn(domain.OutcomeTool, stageOf(state), uc.now().Sub(start))
	uc.publishEvent(ctx, req, "", domain.TurnEvent{
		Outcome: domain.OutcomeTool,
		Stage:   stageOf(state),
		Tool:    req.Tool,
	})
	return nil
}

// errCallerGone marks an emit failure: the caller stopped reading.
var errCallerGone = errors.New("caller disconnected")

func (uc *ChatTurnUseCase) consumeCompletion(ctx context.Context, prompt []domain.PromptMessage, cfg domain.SamplingConfig, emit func(string) error) (string, int, error) {
	stream, err := uc.provider.StreamCompletion(ctx, prompt, cfg)
	if err != nil {
		return "", 0, err
	}
	defer stream.Close()

	var full strings.Builder
	fragments := 0
	for {
		if ctx.Err() != nil {
			return full.String(), fragments, errCallerGone
		}
		fragment, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return full.String(), fragments, nil
			}
			return full.String(), fragments, err
		}
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		fragments++
		if err := emit(fragment); err != nil {
			return full.String(), fragments, errCallerGone
		}
	}
}

// emitAdaptation rewrites the accumulated reply for the user's style and,
// when the result differs, surfaces the differing suffix as a visible
// annotation. The raw text already streamed stays canonical.
func (uc *ChatTurnUseCase) emitAdaptation(raw string, profile *domain.UserProfile, emit func(string) error) bool {
	adapted := uc.styles.AdaptResponse(raw, profile)
	if adapted == raw {
		return false
	}
	suffix := adapted[commonPrefixLen(raw, adapted):]
	if suffix == "" {
		suffix = adapted
	}
	_ = emit("\n\n[Adapted for your style: " + suffix + "]")
	return true
}

func (uc *ChatTurnUseCase) updateProfile(ctx context.Context, req domain.ChatRequest, profile *domain.UserProfile, history []domain.EnhancedMessage, clarityScore float64) error {
	if profile == nil {
		profile = domain.NewUserProfile(req.User, uc.now())
	}

	// One side of the conversation: even-indexed prior turns plus the
	// current message, most recent 10. The vector is recomputed, not merged.
	samples := make([]string, 0, profileMessageCap)
	for i := 0; i < len(history); i += 2 {
		samples = append(samples, history[i].Content)
	}
	samples = append(samples, req.Message)
	if len(samples) > profileMessageCap {
		samples = samples[len(samples)-profileMessageCap:]
	}
	profile.CommunicationStyle = uc.styles.ProfileStyle(samples)

	indicator := 0.0
	if clarityScore < clarityThreshold {
		indicator = 1.0
	}
	profile.ClarificationFrequency = (1-clarificationFrequencyAlpha)*profile.ClarificationFrequency + clarificationFrequencyAlpha*indicator

	if profile.TopicPreferences == nil {
		profile.TopicPreferences = map[string]float64{}
	}
	for _, entity := range analysis.ExtractEntities(req.Message) {
		key := strings.ToLower(entity)
		weight := profile.TopicPreferences[key] + topicPreferenceStep
		if weight > 1.0 {
			weight = 1.0
		}
		profile.TopicPreferences[key] = weight
	}

	profile.LastUpdated = uc.now()
	return uc.profiles.Save(ctx, profile)
}

func (uc *ChatTurnUseCase) publishEvent(ctx context.Context, req domain.ChatRequest, messageID string, event domain.TurnEvent) {
	if uc.events == nil {
		return
	}
	event.ChatID = req.Chat
	event.UserID = req.User
	event.MessageID = messageID
	event.CompletedAt = uc.now()
	if err := uc.events.PublishTurnCompleted(ctx, event); err != nil {
		slog.Warn("turn_event_publish_failed", "chat", req.Chat, "error", err)
	}
}

func providerFailureFragment(err error) string {
	var coder StatusCoder
	switch {
	case domain.IsKind(err, domain.ErrProviderUnavailable):
		return "[Error: Could not connect to Llama API]"
	case errors.As(err, &coder):
		return fmt.Sprintf("[Error: Llama API returned status %d]", coder.StatusCode())
	default:
		return fmt.Sprintf("[Error: %v]", err)
	}
}

func importanceFromClarity(clarity float64) float64 {
	importance := clarity + 0.2
	if importance > 1.0 {
		importance = 1.0
	}
	return importance
}

func stageOf(state *domain.ConversationState) domain.Stage {
	if state == nil {
		return ""
	}
	return state.Stage
}

func tailContents(history []domain.EnhancedMessage, n int) []string {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	contents := make([]string, 0, n)
	for _, msg := range history[start:] {
		contents = append(contents, msg.Content)
	}
	return contents
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
