package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mcpbridge/gateway/internal/domain/logbus"
)

// handleListLogs serves GET /_meta/logs?source=&category=&cursor=&limit=.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := logbus.Source(q.Get("source"))
	category := logbus.Category(q.Get("category"))

	var cursor uint64
	if raw := q.Get("cursor"); raw != "" {
		cursor, _ = strconv.ParseUint(raw, 10, 64)
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, next := s.deps.Logs.Read(source, category, cursor, limit)
	writeOK(w, map[string]any{"entries": entries, "nextCursor": next})
}

func (s *Server) handleLogSources(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.deps.Logs.Sources())
}

func (s *Server) handleLogsCategorized(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.deps.Logs.Categorized())
}

// handleClearLogs serves POST /_meta/logs/clear/{category|all}; "all"
// clears every category, matching Buffer.Clear("")'s empty-category
// convention.
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if s.requireWritable(w) {
		return
	}
	category := chi.URLParam(r, "category")
	if category == "all" {
		category = ""
	}
	s.deps.Logs.Clear(logbus.Category(category))
	writeOK(w, map[string]any{"cleared": true})
}
