package service

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

// TxService looks up and waits on submitted transactions.
type TxService struct {
	chain  genlayer.Chain
	dial   Dialer
	logger *slog.Logger
}

// NewTxService creates a TxService for chain.
func NewTxService(chain genlayer.Chain, dial Dialer, logger *slog.Logger) *TxService {
	return &TxService{
		chain:  chain,
		dial:   dial,
		logger: logger.With(slog.String("component", "tx_service")),
	}
}

// Status fetches the transaction once. It returns domain.ErrTransactionNotFound
// for hashes the node does not know.
func (s *TxService) Status(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	client, err := s.dial(ctx, s.chain, nil)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.GetTransaction(ctx, hash)
}

// Wait polls until the transaction reaches opts.Status or the retry budget
// runs out.
func (s *TxService) Wait(ctx context.Context, opts genlayer.WaitOptions) (*domain.Receipt, error) {
	client, err := s.dial(ctx, s.chain, nil)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	s.logger.DebugContext(ctx, "waiting for transaction",
		slog.String("hash", opts.Hash.Hex()),
		slog.String("status", string(opts.Status)),
		slog.Int("retries", opts.Retries),
	)
	return client.WaitForTransactionReceipt(ctx, opts)
}
