package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// BetService covers the football-bet contract methods. Results are passed
// through as the contract returned them.
type BetService interface {
	CreateBet(ctx context.Context, gameDate, team1, team2, predictedWinner string) (common.Hash, error)
	ResolveBet(ctx context.Context, betID string) (common.Hash, error)
	GetBets(ctx context.Context) (json.RawMessage, error)
	GetPoints(ctx context.Context) (json.RawMessage, error)
	GetPlayerPoints(ctx context.Context, addr string) (json.RawMessage, error)
}

// BetHandler serves the legacy bet and points endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logHandler(logger, "bet")}
}

type createBetRequest struct {
	GameDate        string `json:"game_date"`
	Team1           string `json:"team1"`
	Team2           string `json:"team2"`
	PredictedWinner string `json:"predicted_winner"`
}

// CreateBet submits create_bet.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req createBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := h.bets.CreateBet(r.Context(), req.GameDate, req.Team1, req.Team2, req.PredictedWinner)
	if err != nil {
		writeServiceError(w, r, h.logger, "create bet", err)
		return
	}
	writeTx(w, hash)
}

// ResolveBet submits resolve_bet.
// POST /api/bets/{id}/resolve
func (h *BetHandler) ResolveBet(w http.ResponseWriter, r *http.Request) {
	hash, err := h.bets.ResolveBet(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve bet", err)
		return
	}
	writeTx(w, hash)
}

// ListBets returns get_bets.
// GET /api/bets
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	h.raw(w, r, "list bets", h.bets.GetBets)
}

// Points returns get_points.
// GET /api/points
func (h *BetHandler) Points(w http.ResponseWriter, r *http.Request) {
	h.raw(w, r, "points", h.bets.GetPoints)
}

// PlayerPoints returns get_player_points for one address.
// GET /api/points/{address}
func (h *BetHandler) PlayerPoints(w http.ResponseWriter, r *http.Request) {
	addr := pathParam(r, "address")
	h.raw(w, r, "player points", func(ctx context.Context) (json.RawMessage, error) {
		return h.bets.GetPlayerPoints(ctx, addr)
	})
}

func (h *BetHandler) raw(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context) (json.RawMessage, error)) {
	res, err := fn(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
