package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mcpbridge/gateway/internal/domain/envelope"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// serverSummary is one entry of GET /_meta/servers.
type serverSummary struct {
	Name      string             `json:"name"`
	Type      upstream.Transport `json:"type"`
	Connected bool               `json:"connected"`
	Enabled   bool               `json:"enabled"`
	ToolCount int                `json:"toolCount"`
	LastError string             `json:"lastError,omitempty"`
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	out := make([]serverSummary, 0)
	for _, sess := range s.deps.Supervisor.Sessions() {
		summary := serverSummary{
			Name:      sess.Name(),
			Type:      sess.Config().Transport,
			Connected: sess.Connected(),
			Enabled:   s.deps.State.IsServerEnabled(sess.Name()),
			ToolCount: len(sess.Tools()),
		}
		if err := sess.LastError(); err != nil {
			summary.LastError = err.Error()
		}
		out = append(out, summary)
	}
	writeOK(w, out)
}

// toolSummary is one entry of GET /_meta/servers/{name}/tools.
type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) handleListServerTools(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sess, ok := s.deps.Supervisor.Session(name)
	if !ok {
		writeFail(w, "unknown upstream \""+name+"\"", envelope.CodeNotFound, nil)
		return
	}

	out := make([]toolSummary, 0)
	for _, t := range sess.Tools() {
		key := upstream.Key(name, t.Name)
		out = append(out, toolSummary{
			Name:        t.Name,
			Description: t.Description,
			Enabled:     s.deps.State.IsToolEnabled(key),
		})
	}
	writeOK(w, out)
}

func (s *Server) handleSetServerEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.requireWritable(w) {
			return
		}
		name := chi.URLParam(r, "name")
		if _, ok := s.deps.Supervisor.Session(name); !ok {
			writeFail(w, "unknown upstream \""+name+"\"", envelope.CodeNotFound, nil)
			return
		}
		if err := s.deps.State.SetServerEnabled(name, enabled); err != nil {
			writeFail(w, err.Error(), envelope.CodeIOError, nil)
			return
		}
		writeOK(w, map[string]any{"enabled": enabled})
	}
}

func (s *Server) handleSetToolEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.requireWritable(w) {
			return
		}
		name := chi.URLParam(r, "name")
		toolName := chi.URLParam(r, "tool")
		sess, ok := s.deps.Supervisor.Session(name)
		if !ok {
			writeFail(w, "unknown upstream \""+name+"\"", envelope.CodeNotFound, nil)
			return
		}
		found := false
		for _, t := range sess.Tools() {
			if t.Name == toolName {
				found = true
				break
			}
		}
		if !found {
			writeFail(w, "unknown tool \""+toolName+"\" on upstream \""+name+"\"", envelope.CodeNotFound, nil)
			return
		}
		key := upstream.Key(name, toolName)
		if err := s.deps.State.SetToolEnabled(key, enabled); err != nil {
			writeFail(w, err.Error(), envelope.CodeIOError, nil)
			return
		}
		writeOK(w, map[string]any{"enabled": enabled})
	}
}
