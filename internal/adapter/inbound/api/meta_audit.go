package api

import (
	"net/http"
	"strconv"

	"github.com/mcpbridge/gateway/internal/domain/envelope"
)

// handleListAudit serves GET /_meta/audit?limit=, the durable alternative
// to the in-memory log ring buffer's "audit" category. Returns
// not_implemented when no audit sink is configured.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeFail(w, "the audit trail is not enabled", envelope.CodeNotImplemented, nil)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	writeOK(w, map[string]any{"entries": s.deps.Audit.GetRecent(limit)})
}
