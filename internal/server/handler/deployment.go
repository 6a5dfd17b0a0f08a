package handler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// DeploymentHandler serves the deployment history. Without a store it falls
// back to the record file the deploy command writes.
type DeploymentHandler struct {
	store      domain.DeploymentStore
	recordPath string
	logger     *slog.Logger
}

// NewDeploymentHandler creates a DeploymentHandler. store may be nil.
func NewDeploymentHandler(store domain.DeploymentStore, recordPath string, logger *slog.Logger) *DeploymentHandler {
	return &DeploymentHandler{store: store, recordPath: recordPath, logger: logHandler(logger, "deployment")}
}

// Latest returns the most recent deployment for a network.
// GET /api/deployments/latest?network=studio
func (h *DeploymentHandler) Latest(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = "studio"
	}

	if h.store != nil {
		rec, err := h.store.Latest(r.Context(), network)
		if err == nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			writeServiceError(w, r, h.logger, "latest deployment", err)
			return
		}
	}

	rec, err := h.readRecord()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "no deployment recorded")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: read deployment record failed",
			slog.String("path", h.recordPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read deployment record")
	case rec.Network != network:
		writeError(w, http.StatusNotFound, "no deployment recorded")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// List returns the deployment history.
// GET /api/deployments?limit=50&offset=0
func (h *DeploymentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "deployment history is not enabled")
		return
	}
	opts := parseListOpts(r)
	recs, err := h.store.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list deployments", err)
		return
	}
	if recs == nil {
		recs = []domain.DeploymentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deployments": recs,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

func (h *DeploymentHandler) readRecord() (domain.DeploymentRecord, error) {
	var rec domain.DeploymentRecord
	if h.recordPath == "" {
		return rec, fs.ErrNotExist
	}
	data, err := os.ReadFile(h.recordPath)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}
