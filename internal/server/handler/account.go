package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/genmarket/internal/crypto"
)

// AccountStore is the account slot as seen by the HTTP layer.
type AccountStore interface {
	GetOrNull(ctx context.Context) (*crypto.Signer, error)
	Create(ctx context.Context) (*crypto.Signer, error)
	Remove(ctx context.Context) error
}

// AccountHandler serves the server-side account slot. Private keys never
// leave the server.
type AccountHandler struct {
	accounts AccountStore
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logHandler(logger, "account")}
}

type accountResponse struct {
	Address string `json:"address"`
}

// GetAccount returns the stored account address.
// GET /api/account
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.GetOrNull(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get account", err)
		return
	}
	if acct == nil {
		writeError(w, http.StatusNotFound, "no account")
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Address: acct.Address().Hex()})
}

// CreateAccount generates a new account, replacing any stored one.
// POST /api/account
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Create(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{Address: acct.Address().Hex()})
}

// RemoveAccount clears the account slot.
// DELETE /api/account
func (h *AccountHandler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Remove(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, "remove account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
