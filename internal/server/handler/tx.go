package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

// Bounds on client-supplied wait parameters.
const (
	maxWaitRetries  = 100
	minWaitInterval = 250 * time.Millisecond
	maxWaitInterval = 10 * time.Second
)

// TxService defines what the transaction handler needs.
type TxService interface {
	Status(ctx context.Context, hash common.Hash) (*domain.Receipt, error)
	Wait(ctx context.Context, opts genlayer.WaitOptions) (*domain.Receipt, error)
}

// TxHandler serves transaction lookups and the recent-events feed.
type TxHandler struct {
	txs    TxService
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewTxHandler creates a TxHandler. bus may be nil, in which case the events
// feed is empty.
func NewTxHandler(txs TxService, bus domain.SignalBus, logger *slog.Logger) *TxHandler {
	return &TxHandler{txs: txs, bus: bus, logger: logHandler(logger, "tx")}
}

func parseHash(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	raw := pathParam(r, "hash")
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		writeError(w, http.StatusBadRequest, "invalid transaction hash")
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// GetTransaction returns the node's current view of a transaction.
// GET /api/tx/{hash}
func (h *TxHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHash(w, r)
	if !ok {
		return
	}
	receipt, err := h.txs.Status(r.Context(), hash)
	if err != nil {
		writeServiceError(w, r, h.logger, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// WaitTransaction blocks until the transaction reaches a status.
// GET /api/tx/{hash}/wait?status=ACCEPTED&retries=10&interval=3s
func (h *TxHandler) WaitTransaction(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHash(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	opts := genlayer.WaitOptions{Hash: hash, Status: domain.TxStatusAccepted}
	if v := q.Get("status"); v != "" {
		st, err := domain.ParseTransactionStatus(strings.ToUpper(v))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Status = st
	}
	if v := q.Get("retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "retries must be a positive integer")
			return
		}
		opts.Retries = min(n, maxWaitRetries)
	}
	if v := q.Get("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid interval")
			return
		}
		opts.Poll.Interval = min(max(d, minWaitInterval), maxWaitInterval)
	}

	receipt, err := h.txs.Wait(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "wait transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type txEventsResponse struct {
	Events []json.RawMessage `json:"events"`
	// Next is the cursor to pass as ?after= to continue the feed.
	Next string `json:"next"`
}

// Events returns submitted-transaction events after a cursor, oldest first.
// GET /api/tx/events?after=0&count=50
func (h *TxHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after := q.Get("after")
	if after == "" {
		after = "0"
	}
	count := 50
	if v := q.Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = min(n, 500)
		}
	}

	resp := txEventsResponse{Events: []json.RawMessage{}, Next: after}
	if h.bus != nil {
		msgs, err := h.bus.StreamRead(r.Context(), domain.TxStream, after, count)
		if err != nil {
			writeServiceError(w, r, h.logger, "tx events", err)
			return
		}
		for _, m := range msgs {
			resp.Events = append(resp.Events, json.RawMessage(m.Payload))
			resp.Next = m.ID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
