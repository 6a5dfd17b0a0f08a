package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, in domain.MarketInput) (common.Hash, error)
	PlaceBet(ctx context.Context, marketID, outcomeID string, amount domain.Wei) (common.Hash, error)
	ResolveMarket(ctx context.Context, marketID string) (common.Hash, error)
	GetMarkets(ctx context.Context, category, status string) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetTrendingMarkets(ctx context.Context) ([]domain.TrendingMarket, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// ListMarkets returns markets, optionally filtered by category and status.
// GET /api/markets?category=sports&status=active
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, status := q.Get("category"), q.Get("status")
	if err := domain.ValidateMarketFilter(category, status); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	markets, err := h.markets.GetMarkets(r.Context(), category, status)
	if err != nil {
		writeServiceError(w, r, h.logger, "list markets", err)
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// Trending returns the contract's trending markets.
// GET /api/markets/trending
func (h *MarketHandler) Trending(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.GetTrendingMarkets(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "trending markets", err)
		return
	}
	if markets == nil {
		markets = []domain.TrendingMarket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// CreateMarket submits create_market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var in domain.MarketInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := h.markets.CreateMarket(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "create market", err)
		return
	}
	writeTx(w, hash)
}

// placeBetRequest carries the stake either in wei or in ether.
type placeBetRequest struct {
	OutcomeID string `json:"outcome_id"`
	Amount    string `json:"amount"`
	AmountEth string `json:"amount_eth"`
}

// wei returns the stake, which must be positive.
func (req placeBetRequest) wei() (domain.Wei, error) {
	var (
		w   domain.Wei
		err error
	)
	switch {
	case req.Amount != "" && req.AmountEth != "":
		return domain.Wei{}, fmt.Errorf("set only one of amount and amount_eth: %w", domain.ErrInvalidAmount)
	case req.Amount != "":
		w, err = domain.ParseWei(req.Amount)
	case req.AmountEth != "":
		w, err = domain.ParseEther(req.AmountEth)
	default:
		return domain.Wei{}, fmt.Errorf("amount is required: %w", domain.ErrInvalidAmount)
	}
	if err != nil {
		return domain.Wei{}, err
	}
	if w.Sign() <= 0 {
		return domain.Wei{}, fmt.Errorf("amount must be positive: %w", domain.ErrInvalidAmount)
	}
	return w, nil
}

// PlaceBet submits place_bet with the stake as the transaction value.
// POST /api/markets/{id}/bets
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.OutcomeID) == "" {
		writeError(w, http.StatusBadRequest, "outcome_id is required")
		return
	}
	amount, err := req.wei()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := h.markets.PlaceBet(r.Context(), pathParam(r, "id"), req.OutcomeID, amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "place bet", err)
		return
	}
	writeTx(w, hash)
}

// ResolveMarket submits resolve_market.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	hash, err := h.markets.ResolveMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve market", err)
		return
	}
	writeTx(w, hash)
}
