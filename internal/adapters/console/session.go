package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PabloGalante/farum-chat/internal/app/conversation"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// State is the position of a console session in its picker/chat loop.
type State int

const (
	StatePicking State = iota
	StateNew
	StateExisting
	StateActive
	StateExit
)

func (s State) String() string {
	switch s {
	case StatePicking:
		return "picking"
	case StateNew:
		return "new"
	case StateExisting:
		return "existing"
	case StateActive:
		return "active"
	case StateExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Commands recognised while chatting.
const (
	cmdBack = "/back"
	cmdQuit = "/quit"
)

// ChatService is the part of the conversation service the console drives.
type ChatService interface {
	Threads(ctx context.Context, userID domain.UserID, limit int) ([]domain.ThreadSummary, error)
	StartThread(ctx context.Context, in conversation.StartThreadInput) (*conversation.Conversation, *conversation.TurnResult, error)
	OpenThread(ctx context.Context, userID domain.UserID, threadID domain.ThreadID) (*conversation.Conversation, error)
	Send(ctx context.Context, conv *conversation.Conversation, text string) (*conversation.TurnResult, error)
}

// Session runs the interactive loop for one user:
// Picking → New|Existing → Active → Picking → … → Exit.
// Errors of a single step are shown inline and the loop goes on.
type Session struct {
	svc   ChatService
	user  domain.UserID
	in    *bufio.Scanner
	out   io.Writer
	limit int

	state    State
	threads  []domain.ThreadSummary
	selected domain.ThreadID
	conv     *conversation.Conversation
}

func NewSession(svc ChatService, user domain.UserID, in io.Reader, out io.Writer, listLimit int) *Session {
	return &Session{
		svc:   svc,
		user:  user,
		in:    bufio.NewScanner(in),
		out:   out,
		limit: listLimit,
		state: StatePicking,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Run drives the loop until the user quits, input ends or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	log := observability.LoggerFromContext(ctx).With("user_id", s.user)
	log.Info("console session started")

	for s.state != StateExit {
		if err := ctx.Err(); err != nil {
			return err
		}
		prev := s.state
		switch s.state {
		case StatePicking:
			s.pick(ctx)
		case StateNew:
			s.startNew(ctx)
		case StateExisting:
			s.openExisting(ctx)
		case StateActive:
			s.chat(ctx)
		}
		if s.state != prev {
			log.Debug("console state", "from", prev.String(), "to", s.state.String())
		}
	}

	log.Info("console session ended")
	return nil
}

func (s *Session) readLine(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *Session) pick(ctx context.Context) {
	s.conv = nil

	threads, err := s.svc.Threads(ctx, s.user, s.limit)
	if err != nil {
		renderError(s.out, err)
		threads = nil
	}
	s.threads = threads
	renderThreads(s.out, threads)

	choice, ok := s.readLine("choose> ")
	if !ok {
		s.state = StateExit
		return
	}

	switch strings.ToLower(choice) {
	case "":
		return
	case "q", "quit", cmdQuit:
		s.state = StateExit
	case "n", "new":
		s.state = StateNew
	default:
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(s.threads) {
			renderError(s.out, fmt.Errorf("no conversation %q", choice))
			return
		}
		s.selected = s.threads[n-1].ThreadID
		s.state = StateExisting
	}
}

func (s *Session) startNew(ctx context.Context) {
	text, ok := s.readLine("first message> ")
	if !ok {
		s.state = StateExit
		return
	}
	if text == "" {
		s.state = StatePicking
		return
	}

	conv, res, err := s.svc.StartThread(ctx, conversation.StartThreadInput{UserID: s.user, Text: text})
	if err != nil {
		renderError(s.out, err)
		if conv == nil {
			s.state = StatePicking
			return
		}
		// The thread is indexed; keep chatting in it.
		s.conv = conv
		s.state = StateActive
		return
	}

	s.conv = conv
	s.renderTurn(res)
	s.state = StateActive
}

func (s *Session) openExisting(ctx context.Context) {
	conv, err := s.svc.OpenThread(ctx, s.user, s.selected)
	if err != nil {
		renderError(s.out, err)
		s.state = StatePicking
		return
	}

	s.conv = conv
	if conv.Title != "" {
		fmt.Fprintln(s.out, mutedStyle.Render("── "+conv.Title+" ──"))
	}
	for _, m := range conv.Transcript() {
		renderMessage(s.out, m)
	}
	s.state = StateActive
}

func (s *Session) chat(ctx context.Context) {
	text, ok := s.readLine("> ")
	if !ok {
		s.state = StateExit
		return
	}

	switch text {
	case "":
		return
	case cmdBack:
		s.state = StatePicking
		return
	case cmdQuit:
		s.state = StateExit
		return
	}

	res, err := s.svc.Send(ctx, s.conv, text)
	if err != nil {
		renderError(s.out, err)
		return
	}
	s.renderTurn(res)
}

// renderTurn prints what the turn added after the user's own line.
func (s *Session) renderTurn(res *conversation.TurnResult) {
	if res == nil {
		return
	}
	for _, m := range res.Messages {
		if m.Role == domain.RoleUser {
			continue
		}
		renderMessage(s.out, m)
	}
}
