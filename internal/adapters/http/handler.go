package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/farum-chat/internal/app/conversation"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

type Server struct {
	svc   *conversation.Service
	limit int
}

// NewServer builds the JSON API over the conversation service. listLimit is
// the default page size of thread listings (0 = unlimited).
func NewServer(svc *conversation.Service, listLimit int) http.Handler {
	s := &Server{svc: svc, limit: listLimit}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	// /users/{user}/threads                     → GET: list, POST: start
	// /users/{user}/threads/{thread}            → GET: transcript, DELETE
	// /users/{user}/threads/{thread}/messages   → POST: send message
	mux.HandleFunc("/users/", s.handleUsers)

	return chainMiddlewares(mux, withLogging, withRequestID, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type textRequest struct {
	Text string `json:"text"`
}

type threadSummaryResponse struct {
	ThreadID  string    `json:"thread_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type listThreadsResponse struct {
	UserID  string                  `json:"user_id"`
	Threads []threadSummaryResponse `json:"threads"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type threadResponse struct {
	UserID     string            `json:"user_id"`
	ThreadID   string            `json:"thread_id"`
	Title      string            `json:"title,omitempty"`
	HistoryKey string            `json:"history_key,omitempty"`
	Turns      int               `json:"turns"`
	Messages   []messageResponse `json:"messages"`
}

type turnResponse struct {
	ThreadID string            `json:"thread_id"`
	Reply    string            `json:"reply"`
	Messages []messageResponse `json:"messages"`
}

type errorResponse struct {
	Error    string `json:"error"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /users/{user}/threads[/{thread}[/messages]]
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "threads" {
		http.NotFound(w, r)
		return
	}
	userID := domain.UserID(parts[0])

	switch len(parts) {
	case 2:
		switch r.Method {
		case http.MethodGet:
			s.handleListThreads(w, r, userID)
		case http.MethodPost:
			s.handleStartThread(w, r, userID)
		default:
			methodNotAllowed(w)
		}
	case 3:
		threadID := domain.ThreadID(parts[2])
		switch r.Method {
		case http.MethodGet:
			s.handleGetThread(w, r, userID, threadID)
		case http.MethodDelete:
			s.handleDeleteThread(w, r, userID, threadID)
		default:
			methodNotAllowed(w)
		}
	case 4:
		if parts[3] != "messages" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleSendMessage(w, r, userID, domain.ThreadID(parts[2]))
	default:
		http.NotFound(w, r)
	}
}

// routeOf collapses ids out of a path for metric labels.
func routeOf(path string) string {
	switch {
	case path == "/healthz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/users/"):
		parts := strings.Split(strings.Trim(path, "/"), "/")
		switch len(parts) {
		case 3:
			return "/users/{user}/threads"
		case 4:
			return "/users/{user}/threads/{thread}"
		case 5:
			return "/users/{user}/threads/{thread}/messages"
		}
	}
	return "other"
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	limit := s.limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	threads, err := s.svc.Threads(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	resp := listThreadsResponse{
		UserID:  string(userID),
		Threads: make([]threadSummaryResponse, 0, len(threads)),
	}
	for _, t := range threads {
		resp.Threads = append(resp.Threads, threadSummaryResponse{
			ThreadID:  string(t.ThreadID),
			Title:     t.Title,
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartThread(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	conv, res, err := s.svc.StartThread(r.Context(), conversation.StartThreadInput{
		UserID: userID,
		Text:   req.Text,
	})
	if err != nil {
		threadID := ""
		if conv != nil {
			threadID = string(conv.ThreadID)
		}
		writeError(w, r, err, threadID)
		return
	}

	writeJSON(w, http.StatusCreated, toTurnResponse(conv.ThreadID, res))
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request, userID domain.UserID, threadID domain.ThreadID) {
	conv, err := s.svc.OpenThread(r.Context(), userID, threadID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, threadResponse{
		UserID:     string(conv.UserID),
		ThreadID:   string(conv.ThreadID),
		Title:      conv.Title,
		HistoryKey: string(conv.HistoryKey),
		Turns:      conv.Turns,
		Messages:   toMessagesResponse(conv.Transcript()),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, userID domain.UserID, threadID domain.ThreadID) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	conv, err := s.svc.OpenThread(r.Context(), userID, threadID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	res, err := s.svc.Send(r.Context(), conv, req.Text)
	if err != nil {
		writeError(w, r, err, string(threadID))
		return
	}

	writeJSON(w, http.StatusOK, toTurnResponse(threadID, res))
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request, userID domain.UserID, threadID domain.ThreadID) {
	if err := s.svc.DeleteThread(r.Context(), userID, threadID); err != nil {
		writeError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toMessagesResponse(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsRenderable() {
			continue
		}
		out = append(out, messageResponse{
			Role:      string(m.Role),
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

func toTurnResponse(threadID domain.ThreadID, res *conversation.TurnResult) turnResponse {
	return turnResponse{
		ThreadID: string(threadID),
		Reply:    res.Reply,
		Messages: toMessagesResponse(res.Messages),
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingUserID),
		errors.Is(err, domain.ErrMissingThreadID),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, conversation.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrModel):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, threadID string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg, ThreadID: threadID})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
