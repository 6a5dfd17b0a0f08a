package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// PositionService defines what the position handler needs.
type PositionService interface {
	GetUserPositions(ctx context.Context, addr string) ([]domain.Position, error)
	GetUserBalance(ctx context.Context, addr string) (string, error)
	WithdrawBalance(ctx context.Context) (common.Hash, error)
}

// PositionHandler serves position and balance endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logHandler(logger, "position"),
	}
}

// addressParam returns the optional ?address= value; empty means the caller's
// own account.
func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr := r.URL.Query().Get("address")
	if addr != "" && !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return "", false
	}
	return addr, true
}

// ListPositions returns the positions of an address.
// GET /api/positions?address=0x...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	positions, err := h.positions.GetUserPositions(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "list positions", err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// GetBalance returns the withdrawable balance of an address in wei.
// GET /api/balance?address=0x...
func (h *PositionHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	balance, err := h.positions.GetUserBalance(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance})
}

// Withdraw submits withdraw_balance.
// POST /api/balance/withdraw
func (h *PositionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	hash, err := h.positions.WithdrawBalance(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "withdraw", err)
		return
	}
	writeTx(w, hash)
}
