package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports which network and contract the server is bound to.
type StatusHandler struct {
	Network   string
	ChainID   int64
	RPCURL    string
	Contract  string
	StartedAt time.Time
}

// GetStatus responds with the binding and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"network":        h.Network,
		"chain_id":       h.ChainID,
		"rpc_url":        h.RPCURL,
		"contract":       h.Contract,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
