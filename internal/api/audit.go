package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-protocols/internal/audit"
)

// handleListAudit returns the audit trail, newest first.
//
// Query parameters: action, entity_type, entity_id, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit trail is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// recordAudit writes an audit entry. Failures are logged, never returned:
// the audited action has already happened.
func (s *Server) recordAudit(ctx context.Context, r *http.Request, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	entry.Source = audit.SourceAPI
	if entry.Actor == "" {
		entry.Actor = r.RemoteAddr
	}
	if err := s.audit.Create(ctx, &entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			"action", entry.Action,
			"request_id", requestID(r),
			"error", err,
		)
	}
}
