package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-chat/internal/adapters/console"
	"github.com/PabloGalante/farum-chat/internal/adapters/llm"
	"github.com/PabloGalante/farum-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-chat/internal/app/conversation"
	"github.com/PabloGalante/farum-chat/internal/app/history"
	"github.com/PabloGalante/farum-chat/internal/app/threads"
	"github.com/PabloGalante/farum-chat/internal/app/tools"
	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

// flakyModel fails the first n calls, then behaves like the mock.
type flakyModel struct {
	failures int
	mock     *llm.MockLLM
}

func (m *flakyModel) Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("model overloaded")
	}
	return m.mock.Complete(ctx, req)
}

func newService(model domain.ModelClient) *conversation.Service {
	mem := memory.NewDocumentStore()
	th := threads.NewStore(mem, docstore.DefaultOptions)
	hs := history.NewStore(mem, docstore.DefaultOptions)
	return conversation.NewService(model, th, hs, tools.NewRegistry(tools.NewCurrentTimeTool()))
}

func run(t *testing.T, svc console.ChatService, user domain.UserID, input ...string) (*console.Session, string) {
	t.Helper()
	var out bytes.Buffer
	s := console.NewSession(svc, user, strings.NewReader(strings.Join(input, "\n")+"\n"), &out, 10)
	require.NoError(t, s.Run(context.Background()))
	return s, out.String()
}

func TestSessionNewThenReopen(t *testing.T) {
	svc := newService(llm.NewMockLLM())

	s, out := run(t, svc, "alice",
		"n", "plan my trip",
		"/back",
		"1",
		"/quit",
	)
	assert.Equal(t, console.StateExit, s.State())
	assert.Contains(t, out, "no conversations yet")
	assert.Contains(t, out, `You said "plan my trip"`)
	assert.Contains(t, out, "1) plan my trip")
	assert.Contains(t, out, "── plan my trip ──")

	list, err := svc.Threads(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSessionShowsTurnErrorsInline(t *testing.T) {
	svc := newService(&flakyModel{failures: 1, mock: llm.NewMockLLM()})

	s, out := run(t, svc, "alice",
		"n", "hello",
		"still there?",
		"/quit",
	)
	assert.Equal(t, console.StateExit, s.State())
	assert.Contains(t, out, "model overloaded")
	assert.Contains(t, out, `You said "still there?"`)

	list, err := svc.Threads(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 1, "the thread stays indexed after the failed first turn")

	conv, err := svc.OpenThread(context.Background(), "alice", list[0].ThreadID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2, "only the successful turn is persisted")
}

func TestSessionRejectsUnknownChoice(t *testing.T) {
	svc := newService(llm.NewMockLLM())

	_, out := run(t, svc, "alice", "7", "abc", "q")
	assert.Equal(t, 2, strings.Count(out, "error: no conversation"))
}

func TestSessionEmptyFirstMessageReturnsToPicker(t *testing.T) {
	svc := newService(llm.NewMockLLM())

	_, out := run(t, svc, "alice", "n", "", "q")
	assert.Equal(t, 2, strings.Count(out, "n) new conversation"))
}

func TestSessionExitsAtEndOfInput(t *testing.T) {
	svc := newService(llm.NewMockLLM())

	var out bytes.Buffer
	s := console.NewSession(svc, "alice", strings.NewReader("n\nhi"), &out, 10)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, console.StateExit, s.State())
	assert.Contains(t, out.String(), `You said "hi"`)
}

func TestSessionStopsOnCancelledContext(t *testing.T) {
	svc := newService(llm.NewMockLLM())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := console.NewSession(svc, "alice", strings.NewReader("q\n"), &bytes.Buffer{}, 10)
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "picking", console.StatePicking.String())
	assert.Equal(t, "active", console.StateActive.String())
	assert.Equal(t, "unknown", console.State(42).String())
}
