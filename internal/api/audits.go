package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/engine"
)

func (s *Server) auditRoutes(r chi.Router) {
	if s.auditor == nil {
		return
	}
	r.Get("/audits/access", s.handleAccessAudits)
}

// handleAccessAudits lists recent permission decisions:
// ?type=&actor=&operation=&denied=true&since=RFC3339&limit=
func (s *Server) handleAccessAudits(w http.ResponseWriter, r *http.Request) {
	if actor, _ := acl.FromContext(r.Context()); !actor.IsSuper() {
		s.writeMessage(w, r, newWebMessage(http.StatusForbidden, "ERROR", "Access audits are restricted to superusers"))
		return
	}

	q := r.URL.Query()
	dq := acl.DecisionQuery{
		Actor:     q.Get("actor"),
		Type:      q.Get("type"),
		Operation: acl.Operation(q.Get("operation")),
		Denied:    q.Get("denied") == "true",
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, engine.ErrBadRequest(err, "Invalid since"))
			return
		}
		dq.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, r, engine.ErrBadRequest(err, "Invalid limit"))
			return
		}
		dq.Limit = limit
	}

	resp := map[string]any{
		"retained":  s.auditor.Len(),
		"decisions": s.auditor.Query(dq),
	}
	if dq.Type != "" {
		resp["stats"] = s.auditor.Stats(dq.Type)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
