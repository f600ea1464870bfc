package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-chat/internal/app/history"
	"github.com/PabloGalante/farum-chat/internal/app/threads"
	"github.com/PabloGalante/farum-chat/internal/app/tools"
	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

// scriptedModel answers each call with the next scripted step.
type scriptedModel struct {
	steps    []func(req domain.ModelRequest) (*domain.ModelResponse, error)
	requests []domain.ModelRequest
}

func (m *scriptedModel) Complete(_ context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return nil, errors.New("no scripted response")
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step(req)
}

func (m *scriptedModel) reply(text string) *scriptedModel {
	m.steps = append(m.steps, func(domain.ModelRequest) (*domain.ModelResponse, error) {
		return &domain.ModelResponse{Messages: []domain.Message{domain.NewTextMessage(domain.RoleAssistant, text)}}, nil
	})
	return m
}

func (m *scriptedModel) fail(err error) *scriptedModel {
	m.steps = append(m.steps, func(domain.ModelRequest) (*domain.ModelResponse, error) {
		return nil, err
	})
	return m
}

func (m *scriptedModel) callTool(name string, args map[string]any) *scriptedModel {
	m.steps = append(m.steps, func(domain.ModelRequest) (*domain.ModelResponse, error) {
		return &domain.ModelResponse{Messages: []domain.Message{{
			Role: domain.RoleAssistant,
			Contents: []domain.Content{{
				Type:       domain.ContentToolCall,
				ToolCallID: "call-" + name,
				ToolName:   name,
				Arguments:  args,
			}},
		}}}, nil
	})
	return m
}

type fixture struct {
	svc     *Service
	model   *scriptedModel
	mem     *memory.DocumentStore
	threads *threads.Store
	history *history.Store
}

func newFixture(t *testing.T, registry *tools.Registry) *fixture {
	t.Helper()

	mem := memory.NewDocumentStore()
	th := threads.NewStore(mem, docstore.DefaultOptions)
	hs := history.NewStore(mem, docstore.DefaultOptions)
	model := &scriptedModel{}

	svc := NewService(model, th, hs, registry)
	n := 0
	svc.newThreadID = func() domain.ThreadID {
		n++
		return domain.ThreadID(fmt.Sprintf("t%d", n))
	}
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, model: model, mem: mem, threads: th, history: hs}
}

func TestStartThreadEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.reply("hi alice")

	conv, res, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi alice", res.Reply)
	assert.NotEmpty(t, conv.HistoryKey)

	list, err := f.svc.Threads(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ThreadID, list[0].ThreadID)
	assert.Equal(t, "hello", list[0].Title)

	ptr, err := f.threads.LoadThreadPointer(ctx, "alice", conv.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, conv.HistoryKey, ptr.HistoryKey)

	reopened, err := f.svc.OpenThread(ctx, "alice", conv.ThreadID)
	require.NoError(t, err)
	require.Len(t, reopened.Messages, 2)
	assert.Equal(t, domain.RoleUser, reopened.Messages[0].Role)
	assert.Equal(t, "hello", reopened.Messages[0].Text)
	assert.Equal(t, domain.RoleAssistant, reopened.Messages[1].Role)
	assert.Equal(t, "hi alice", reopened.Messages[1].Text)
	assert.Equal(t, 1, reopened.Turns)
	assert.Equal(t, "hello", reopened.Title)
}

func TestStartThreadModelFailureLeavesEmptyIndexedThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.fail(errors.New("quota exceeded"))

	conv, res, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModel)
	assert.Nil(t, res)
	require.NotNil(t, conv)
	assert.Empty(t, conv.HistoryKey)

	list, err := f.svc.Threads(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ThreadID, list[0].ThreadID)

	_, err = f.threads.LoadThreadPointer(ctx, "alice", conv.ThreadID)
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	assert.Empty(t, storedKeys(t, f.mem, history.KeyPrefix), "failed turns are never persisted")

	// the thread still opens, empty, and the next turn completes it
	reopened, err := f.svc.OpenThread(ctx, "alice", conv.ThreadID)
	require.NoError(t, err)
	assert.Empty(t, reopened.Messages)
	assert.Equal(t, "hello", reopened.Title)

	f.model.reply("back online")
	_, err = f.svc.Send(ctx, reopened, "hello again")
	require.NoError(t, err)

	ptr, err := f.threads.LoadThreadPointer(ctx, "alice", conv.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, reopened.HistoryKey, ptr.HistoryKey)
}

func TestSendFailureKeepsConversationUsable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.reply("one").fail(errors.New("timeout")).reply("three")

	conv, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "first"})
	require.NoError(t, err)
	key := conv.HistoryKey

	_, err = f.svc.Send(ctx, conv, "second")
	require.Error(t, err)
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, 1, conv.Turns)

	res, err := f.svc.Send(ctx, conv, "third")
	require.NoError(t, err)
	assert.Equal(t, "three", res.Reply)
	assert.Equal(t, key, conv.HistoryKey, "history key is minted once")

	var texts []string
	for _, m := range f.history.LoadMessages(ctx, key) {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "one", "third", "three"}, texts)

	last := f.model.requests[len(f.model.requests)-1]
	assert.Len(t, last.History, 2, "prior turns are sent as history")
}

func TestSendRunsToolsAndPersistsPlumbing(t *testing.T) {
	ctx := context.Background()
	clock := tools.NewCurrentTimeTool()
	f := newFixture(t, tools.NewRegistry(clock))
	f.model.callTool("current_time", nil).reply("it is noon")

	conv, res, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "what time is it?"})
	require.NoError(t, err)
	assert.Equal(t, "it is noon", res.Reply)

	require.Len(t, f.model.requests, 2)
	require.Len(t, f.model.requests[0].Tools, 1)
	assert.Equal(t, "current_time", f.model.requests[0].Tools[0].Name)
	assert.Len(t, f.model.requests[1].Input, 3)

	stored := f.history.LoadMessages(ctx, conv.HistoryKey)
	require.Len(t, stored, 4)
	assert.Equal(t, domain.ContentToolCall, stored[1].Contents[0].Type)
	assert.Equal(t, domain.RoleTool, stored[2].Role)
	assert.Equal(t, "call-current_time", stored[2].Contents[0].ToolCallID)
	assert.Contains(t, stored[2].Contents[0].Result, "time")

	assert.Len(t, conv.Transcript(), 2)
}

func TestSendReportsUnknownToolToModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tools.NewRegistry())
	f.model.callTool("launch_rockets", nil).reply("cannot do that")

	conv, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "launch"})
	require.NoError(t, err)

	stored := f.history.LoadMessages(ctx, conv.HistoryKey)
	require.Len(t, stored, 4)
	assert.Contains(t, stored[2].Contents[0].Result["error"], "not available")
}

func TestSendToolRoundLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tools.NewRegistry(tools.NewCurrentTimeTool()))
	f.svc.WithMaxToolRounds(1)
	f.model.callTool("current_time", nil).callTool("current_time", nil)

	conv, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "loop"})
	assert.ErrorIs(t, err, domain.ErrModel)
	assert.Empty(t, conv.HistoryKey)
}

func TestToolSetIsDerivedEveryTurn(t *testing.T) {
	ctx := context.Background()
	registry := tools.NewRegistry()
	f := newFixture(t, registry)
	f.model.reply("a").reply("b")

	conv, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "one"})
	require.NoError(t, err)
	assert.Empty(t, f.model.requests[0].Tools)

	registry.Register(tools.NewCurrentTimeTool())
	_, err = f.svc.Send(ctx, conv, "two")
	require.NoError(t, err)
	require.Len(t, f.model.requests[1].Tools, 1)
}

func TestOpenThreadNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.OpenThread(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestOpenThreadToleratesUndecodableState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.reply("noted")

	conv, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "remember this"})
	require.NoError(t, err)

	bad := json.RawMessage(`{"storeState":"` + string(conv.HistoryKey) + `","turns":"many"}`)
	require.NoError(t, f.threads.SaveThreadPointer(ctx, "alice", conv.ThreadID, bad))

	reopened, err := f.svc.OpenThread(ctx, "alice", conv.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, conv.HistoryKey, reopened.HistoryKey)
	assert.Len(t, reopened.Messages, 2)
	assert.Zero(t, reopened.Turns)
}

func TestUsersWithSameThreadIDAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.reply("for alice").reply("for bob")

	// both users get literal thread id "t1"
	f.svc.newThreadID = func() domain.ThreadID { return "t1" }

	alice, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "alice here"})
	require.NoError(t, err)
	bob, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "bob", Text: "bob here"})
	require.NoError(t, err)
	require.NotEqual(t, alice.HistoryKey, bob.HistoryKey)

	list, err := f.svc.Threads(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice here", list[0].Title)

	reopened, err := f.svc.OpenThread(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, alice.HistoryKey, reopened.HistoryKey)
	assert.Equal(t, "for alice", reopened.Messages[1].Text)
}

func TestDeleteThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.reply("ok")

	conv, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "bye soon"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteThread(ctx, "alice", conv.ThreadID))

	_, err = f.svc.OpenThread(ctx, "alice", conv.ThreadID)
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	assert.Empty(t, storedKeys(t, f.mem, history.KeyPrefix))
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, _, err := f.svc.StartThread(ctx, StartThreadInput{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrMissingUserID)

	_, _, err = f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.svc.Send(ctx, &Conversation{ThreadID: "t1"}, "hi")
	assert.ErrorIs(t, err, domain.ErrMissingUserID)

	assert.Zero(t, f.mem.WriteCalls())
	assert.Empty(t, f.model.requests)
}

func TestStartThreadTitleIsFirstLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.model.reply("ok")

	_, _, err := f.svc.StartThread(ctx, StartThreadInput{UserID: "alice", Text: "  summary line\nmore details"})
	require.NoError(t, err)

	list, err := f.svc.Threads(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, "summary line", list[0].Title)
}

func storedKeys(t *testing.T, mem *memory.DocumentStore, prefix string) []string {
	t.Helper()
	keys, err := mem.Keys(context.Background(), prefix)
	require.NoError(t, err)
	return keys
}
