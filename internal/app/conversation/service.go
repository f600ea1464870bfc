package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/farum-chat/internal/app/tools"
	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// DefaultMaxToolRounds bounds how many times one turn may go back to the
// model with tool results.
const DefaultMaxToolRounds = 4

// ErrEmptyMessage is returned when a turn has no text.
var ErrEmptyMessage = errors.New("message text is required")

// ThreadStore persists thread pointers and the per-user thread index.
type ThreadStore interface {
	CreateIndexEntryOnce(ctx context.Context, userID domain.UserID, threadID domain.ThreadID, title string) error
	ListThreads(ctx context.Context, userID domain.UserID, limit int) ([]domain.ThreadSummary, error)
	SaveThreadPointer(ctx context.Context, userID domain.UserID, threadID domain.ThreadID, state json.RawMessage) error
	LoadThreadPointer(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) (*domain.ThreadPointer, error)
	DeleteThread(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) (domain.HistoryKey, error)
}

// HistoryStore persists the message list of each conversation.
type HistoryStore interface {
	LoadMessages(ctx context.Context, key domain.HistoryKey) []domain.Message
	AppendTurn(ctx context.Context, key domain.HistoryKey, userID domain.UserID, msgs []domain.Message) (domain.HistoryKey, error)
	Delete(ctx context.Context, key domain.HistoryKey) error
}

// Service sequences thread creation/loading, model turns and persistence.
// It holds no per-user state: every call names its user explicitly.
type Service struct {
	model   domain.ModelClient
	threads ThreadStore
	history HistoryStore
	tools   *tools.Registry
	json    docstore.Options

	now           func() time.Time
	newThreadID   func() domain.ThreadID
	maxToolRounds int
}

func NewService(
	model domain.ModelClient,
	threads ThreadStore,
	history HistoryStore,
	registry *tools.Registry,
) *Service {
	return &Service{
		model:         model,
		threads:       threads,
		history:       history,
		tools:         registry,
		json:          docstore.DefaultOptions,
		now:           time.Now,
		newThreadID:   func() domain.ThreadID { return domain.ThreadID(uuid.NewString()) },
		maxToolRounds: DefaultMaxToolRounds,
	}
}

// WithMaxToolRounds overrides DefaultMaxToolRounds.
func (s *Service) WithMaxToolRounds(n int) *Service {
	if n > 0 {
		s.maxToolRounds = n
	}
	return s
}

// WithJSONOptions sets the encoding of the stored conversation state.
func (s *Service) WithJSONOptions(opts docstore.Options) *Service {
	s.json = opts
	return s
}

// Threads returns the user's thread index, newest first.
func (s *Service) Threads(ctx context.Context, userID domain.UserID, limit int) ([]domain.ThreadSummary, error) {
	return s.threads.ListThreads(ctx, userID, limit)
}

type StartThreadInput struct {
	UserID domain.UserID
	Text   string
}

// StartThread creates a new thread from its first user message and runs the
// first turn.
//
// The thread is indexed before the model is called, so it stays visible in
// the picker when that call fails. In that case the returned conversation is
// usable (no history key yet) and the error describes the failed turn.
func (s *Service) StartThread(ctx context.Context, in StartThreadInput) (*Conversation, *TurnResult, error) {
	if in.UserID == "" {
		return nil, nil, domain.ErrMissingUserID
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, nil, ErrEmptyMessage
	}

	threadID := s.newThreadID()
	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"thread_id", threadID,
	)
	log.Info("starting new thread")

	if err := s.threads.CreateIndexEntryOnce(ctx, in.UserID, threadID, firstLine(in.Text)); err != nil {
		log.Error("failed to index thread", "error", err)
		return nil, nil, err
	}

	conv := &Conversation{
		UserID:   in.UserID,
		ThreadID: threadID,
		Title:    firstLine(in.Text),
	}

	res, err := s.Send(ctx, conv, in.Text)
	if err != nil {
		return conv, nil, err
	}
	return conv, res, nil
}

// OpenThread loads an existing thread and its message history.
//
// A thread that is indexed but has no record (its first turn never completed)
// opens as an empty conversation. Anything else without a record is
// domain.ErrThreadNotFound.
func (s *Service) OpenThread(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) (*Conversation, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user_id", userID,
		"thread_id", threadID,
	)

	ptr, err := s.threads.LoadThreadPointer(ctx, userID, threadID)
	if errors.Is(err, domain.ErrThreadNotFound) {
		summary, ok, lerr := s.findIndexed(ctx, userID, threadID)
		if lerr != nil {
			return nil, lerr
		}
		if !ok {
			log.Info("thread not found")
			return nil, err
		}
		log.Info("opened thread without completed turns")
		return &Conversation{UserID: userID, ThreadID: threadID, Title: summary.Title}, nil
	}
	if err != nil {
		log.Error("failed to load thread", "error", err)
		return nil, err
	}

	state := s.decodeState(ctx, ptr.State)
	conv := &Conversation{
		UserID:     userID,
		ThreadID:   threadID,
		Title:      state.Title,
		HistoryKey: ptr.HistoryKey,
		Messages:   s.history.LoadMessages(ctx, ptr.HistoryKey),
		Turns:      state.Turns,
	}
	log.Info("thread opened", "message_count", len(conv.Messages), "history_key", conv.HistoryKey)
	return conv, nil
}

// DeleteThread removes a thread, its index entry and its chat history.
func (s *Service) DeleteThread(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) error {
	key, err := s.threads.DeleteThread(ctx, userID, threadID)
	if err != nil {
		return err
	}
	return s.history.Delete(ctx, key)
}

// Send runs one turn on conv: the model is called with the tools active for
// this turn, tool calls are executed and fed back, and on success the turn's
// messages are appended to the history before the thread pointer is saved.
// A failed model call persists nothing and leaves conv unchanged.
func (s *Service) Send(ctx context.Context, conv *Conversation, text string) (*TurnResult, error) {
	if conv == nil || conv.UserID == "" {
		return nil, domain.ErrMissingUserID
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", conv.UserID,
		"thread_id", conv.ThreadID,
	)
	log.Info("sending message", "turn", conv.Turns+1)

	tctx := tools.ToolContext{
		UserID:    conv.UserID,
		ThreadID:  conv.ThreadID,
		RequestID: observability.RequestIDFromContext(ctx),
	}
	active := s.tools.Active(ctx, tctx)

	userMsg := domain.NewTextMessage(domain.RoleUser, text)
	userMsg.CreatedAt = s.now().UTC()

	turn, err := s.runModel(ctx, conv, tctx, active, userMsg)
	if err != nil {
		observability.ChatTurns.WithLabelValues("model_error").Inc()
		log.Error("model turn failed", "error", err)
		return nil, err
	}

	key, err := s.history.AppendTurn(ctx, conv.HistoryKey, conv.UserID, turn)
	if err != nil {
		observability.ChatTurns.WithLabelValues("storage_error").Inc()
		log.Error("failed to append turn", "error", err)
		return nil, err
	}

	conv.HistoryKey = key
	conv.Messages = append(conv.Messages, turn...)
	conv.Turns++

	state, err := s.encodeState(threadState{
		StoreState: string(key),
		Title:      conv.Title,
		Turns:      conv.Turns,
		UpdatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.threads.SaveThreadPointer(ctx, conv.UserID, conv.ThreadID, state); err != nil {
		observability.ChatTurns.WithLabelValues("storage_error").Inc()
		log.Error("failed to save thread pointer", "error", err)
		return nil, err
	}

	observability.ChatTurns.WithLabelValues("ok").Inc()
	log.Info("send message completed", "history_key", key, "messages", len(turn))

	return &TurnResult{
		UserMessage: userMsg,
		Messages:    turn,
		Reply:       lastAssistantText(turn),
	}, nil
}

// runModel calls the model until it answers without tool calls and returns
// every message of the turn in order: the user message, tool calls, tool
// results and the final response.
func (s *Service) runModel(
	ctx context.Context,
	conv *Conversation,
	tctx tools.ToolContext,
	active []tools.Tool,
	userMsg domain.Message,
) ([]domain.Message, error) {
	turn := []domain.Message{userMsg}
	specs := tools.Specs(active)

	for round := 0; ; round++ {
		resp, err := s.model.Complete(ctx, domain.ModelRequest{
			UserID:   conv.UserID,
			ThreadID: conv.ThreadID,
			History:  conv.Messages,
			Input:    turn,
			Tools:    specs,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrModel, err)
		}
		if resp == nil || len(resp.Messages) == 0 {
			return nil, fmt.Errorf("%w: empty response", domain.ErrModel)
		}

		now := s.now().UTC()
		var calls []domain.Content
		for _, m := range resp.Messages {
			if m.Role == "" {
				m.Role = domain.RoleAssistant
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			turn = append(turn, m)
			calls = append(calls, m.ToolCalls()...)
		}
		if len(calls) == 0 {
			return turn, nil
		}
		if round >= s.maxToolRounds {
			return nil, fmt.Errorf("%w: tool call limit of %d rounds reached", domain.ErrModel, s.maxToolRounds)
		}

		turn = append(turn, s.runTools(ctx, tctx, active, calls))
	}
}

// runTools executes the requested calls and returns one tool message with a
// result part per call. Tool failures are reported to the model, not to the
// caller.
func (s *Service) runTools(
	ctx context.Context,
	tctx tools.ToolContext,
	active []tools.Tool,
	calls []domain.Content,
) domain.Message {
	log := observability.LoggerFromContext(ctx)

	byName := make(map[string]tools.Tool, len(active))
	for _, t := range active {
		byName[t.Name()] = t
	}

	msg := domain.Message{Role: domain.RoleTool, CreatedAt: s.now().UTC()}
	for _, call := range calls {
		result := map[string]any{}
		tool, ok := byName[call.ToolName]
		if !ok {
			result["error"] = fmt.Sprintf("tool %q is not available", call.ToolName)
		} else {
			start := time.Now()
			out, err := tool.Call(ctx, tctx, call.Arguments)
			log.Info("tool call", "tool", call.ToolName, "elapsed_ms", time.Since(start).Milliseconds(), "ok", err == nil)
			if err != nil {
				result["error"] = err.Error()
			} else {
				result = out
			}
		}
		msg.Contents = append(msg.Contents, domain.Content{
			Type:       domain.ContentToolResult,
			ToolCallID: call.ToolCallID,
			ToolName:   call.ToolName,
			Result:     result,
		})
	}
	return msg
}

func (s *Service) findIndexed(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) (domain.ThreadSummary, bool, error) {
	threads, err := s.threads.ListThreads(ctx, userID, 0)
	if err != nil {
		return domain.ThreadSummary{}, false, err
	}
	for _, t := range threads {
		if t.ThreadID == threadID {
			return t, true, nil
		}
	}
	return domain.ThreadSummary{}, false, nil
}

func lastAssistantText(msgs []domain.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant && strings.TrimSpace(msgs[i].Text) != "" {
			return msgs[i].Text
		}
	}
	return ""
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}
