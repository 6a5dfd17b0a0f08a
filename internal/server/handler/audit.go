package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// AuditHandler exposes the audit log read-only.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logHandler(logger, "audit")}
}

// List returns audit entries, newest first.
// GET /api/audit?limit=50&offset=0&since=2025-01-01T00:00:00Z&event=deploy.&tx=0x...
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	q := domain.AuditQuery{
		ListOpts:    opts,
		EventPrefix: r.URL.Query().Get("event"),
		TxHash:      r.URL.Query().Get("tx"),
	}
	entries, err := h.audit.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}
