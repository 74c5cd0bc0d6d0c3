package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mcpbridge/gateway/internal/domain/envelope"
	"github.com/mcpbridge/gateway/internal/domain/session"
	"github.com/mcpbridge/gateway/internal/service"
)

// mountSessions registers the /sessions/* chat routes (spec.md §6).
func (s *Server) mountSessions(r chi.Router) {
	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", s.handleCreateSession)
		sr.Get("/models", s.handleListModels)
		sr.Get("/favorites", s.handleListFavorites)
		sr.Post("/favorites", s.handleSetFavorite)

		sr.Get("/{id}", s.handleGetSession)
		sr.Delete("/{id}", s.handleDeleteSession)
		sr.Post("/{id}/reset", s.handleResetSession)
		sr.Post("/{id}/messages", s.handlePostMessage)
	})
}

type createSessionRequest struct {
	Model        string   `json:"model"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Allowlist    []string `json:"allowlist,omitempty"`
}

type sessionDetail struct {
	ID       string            `json:"id"`
	Model    string            `json:"model"`
	Messages []session.Message `json:"messages"`
	Steps    []session.Step    `json:"steps"`
}

func toSessionDetail(sess *session.ChatSession) sessionDetail {
	return sessionDetail{
		ID:       sess.ID(),
		Model:    sess.Model(),
		Messages: sess.Messages(),
		Steps:    sess.Steps(),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err.Error(), envelope.CodeInvalidJSON, nil)
		return
	}
	if req.Model == "" {
		writeFail(w, "model is required", envelope.CodeInvalid, nil)
		return
	}

	var extra []session.CatalogEntry
	if s.deps.Management != nil {
		extra = s.deps.Management.CatalogEntries()
	}
	catalog := s.deps.Catalog.Build(req.Allowlist, extra...)
	sess, err := s.deps.Sessions.Create(req.Model, req.SystemPrompt, catalog, req.Allowlist)
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeUnexpected, nil)
		return
	}
	writeOK(w, toSessionDetail(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	writeOK(w, toSessionDetail(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Sessions.Delete(id); err != nil {
		writeSessionErr(w, err)
		return
	}
	writeOK(w, map[string]any{"deleted": true})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.deps.Sessions.Reset(id)
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	writeOK(w, toSessionDetail(sess))
}

type postMessageRequest struct {
	Message string `json:"message"`
	Stream  bool   `json:"stream,omitempty"`
}

// handlePostMessage drives one user turn through the Agentic Chat
// Orchestrator (spec.md §4.4 "Exchange loop"). Non-streaming requests get
// the final assistant message back as a plain envelope; streaming
// requests get an SSE frame per Orchestrator.Event (spec.md §4.4
// "Streaming model").
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		writeSessionErr(w, err)
		return
	}

	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err.Error(), envelope.CodeInvalidJSON, nil)
		return
	}

	if !req.Stream {
		if err := s.deps.Orchestrator.Run(r.Context(), sess, req.Message); err != nil {
			writeFail(w, err.Error(), envelope.CodeUnexpected, nil)
			return
		}
		writeOK(w, toSessionDetail(sess))
		return
	}

	s.streamMessage(w, r, sess, req.Message)
}

func (s *Server) streamMessage(w http.ResponseWriter, r *http.Request, sess *session.ChatSession, message string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFail(w, "streaming unsupported by this response writer", envelope.CodeUnexpected, nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := s.deps.Orchestrator.Stream(r.Context(), sess, message)
	for ev := range events {
		writeSSE(w, ev)
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, ev service.Event) {
	payload := sseFrame{
		StepIndex:  ev.StepIndex,
		Delta:      ev.Delta,
		ToolCallID: ev.ToolCallID,
		ToolName:   ev.ToolName,
		Result:     ev.Result,
		Message:    ev.Message,
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	if ev.Reasoning.Text != "" || ev.Reasoning.ID != "" {
		payload.Reasoning = &ev.Reasoning
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"error":"encode failure"}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
}

// sseFrame is the JSON body of one SSE "data:" line.
type sseFrame struct {
	StepIndex  int                      `json:"stepIndex,omitempty"`
	Delta      string                   `json:"delta,omitempty"`
	Reasoning  *session.ReasoningDetail `json:"reasoning,omitempty"`
	ToolCallID string                   `json:"toolCallId,omitempty"`
	ToolName   string                   `json:"toolName,omitempty"`
	Result     any                      `json:"result,omitempty"`
	Message    *session.Message         `json:"message,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

func writeSessionErr(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeFail(w, err.Error(), envelope.CodeNotFound, nil)
		return
	}
	writeFail(w, err.Error(), envelope.CodeUnexpected, nil)
}

// modelEntry is one entry of GET /sessions/models: a well-known model id
// alongside its provider's current enable bit, so a chat UI can grey out
// a model whose provider an admin disabled.
type modelEntry struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
}

// knownModels is a small, static catalog of well-known model ids per
// provider (spec.md leaves the exact model-catalog source unspecified;
// the gateway otherwise routes any "vendor/model"-shaped id through
// resolveProviderKind, so this list is advisory, not exhaustive).
var knownModels = []modelEntry{
	{ID: "gpt-4o", Provider: "openai"},
	{ID: "gpt-4o-mini", Provider: "openai"},
	{ID: "claude-sonnet-4-5", Provider: "anthropic"},
	{ID: "claude-opus-4-1", Provider: "anthropic"},
	{ID: "gemini-2.5-pro", Provider: "google"},
	{ID: "gemini-2.5-flash", Provider: "google"},
	{ID: "minimax/minimax-m1", Provider: "minimax"},
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	out := make([]modelEntry, len(knownModels))
	for i, m := range knownModels {
		out[i] = m
		out[i].Enabled = s.deps.State.IsProviderEnabled(m.Provider) && s.deps.State.IsModelEnabled(m.ID)
	}
	writeOK(w, out)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.deps.State.Favorites())
}

type setFavoriteRequest struct {
	ID     string `json:"id"`
	Remove bool   `json:"remove,omitempty"`
}

func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	var req setFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err.Error(), envelope.CodeInvalidJSON, nil)
		return
	}
	if req.ID == "" {
		writeFail(w, "id is required", envelope.CodeInvalid, nil)
		return
	}

	var err error
	if req.Remove {
		err = s.deps.State.RemoveFavorite(req.ID)
	} else {
		err = s.deps.State.AddFavorite(req.ID)
	}
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeIOError, nil)
		return
	}
	writeOK(w, s.deps.State.Favorites())
}
