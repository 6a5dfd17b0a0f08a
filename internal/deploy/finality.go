package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
	"github.com/alanyoungcy/genmarket/internal/metrics"
)

// Tier is one stage of the finality wait: poll until Status is reached or
// Retries polls are spent.
type Tier struct {
	Status  domain.TransactionStatus
	Retries int
	Poll    genlayer.PollPolicy
}

func (t Tier) String() string {
	return fmt.Sprintf("%s x%d", t.Status, t.Retries)
}

// FinalityPolicy is the ordered list of tiers tried after submission.
type FinalityPolicy struct {
	Tiers []Tier
}

// DefaultFinality waits up to 600 polls for FINALIZED, then up to 100 for
// ACCEPTED, polling every second.
func DefaultFinality() FinalityPolicy {
	poll := genlayer.PollPolicy{Interval: time.Second}
	return FinalityPolicy{Tiers: []Tier{
		{Status: domain.TxStatusFinalized, Retries: 600, Poll: poll},
		{Status: domain.TxStatusAccepted, Retries: 100, Poll: poll},
	}}
}

// Budget is the longest Await can spend sleeping between polls when no tier
// is reached.
func (p FinalityPolicy) Budget() time.Duration {
	var total time.Duration
	for _, t := range p.Tiers {
		total += t.Poll.Span(t.Retries)
	}
	return total
}

// Waiter is the part of the network client the finality machine needs.
type Waiter interface {
	GetTransaction(ctx context.Context, hash common.Hash) (*domain.Receipt, error)
	WaitForTransactionReceipt(ctx context.Context, opts genlayer.WaitOptions) (*domain.Receipt, error)
}

// FinalityError reports that no tier was reached. Receipt is the best-effort
// lookup made afterwards and may be nil.
type FinalityError struct {
	Hash    common.Hash
	Last    error
	Receipt *domain.Receipt
}

func (e *FinalityError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("deploy: %s: no finality tier configured", e.Hash.Hex())
	}
	return e.Last.Error()
}

func (e *FinalityError) Unwrap() error {
	if e.Last == nil {
		return domain.ErrFinalityTimeout
	}
	return e.Last
}

// Await walks the tiers in order and returns the receipt from the first tier
// that is reached. Every tier error other than context cancellation moves on
// to the next tier.
func (p FinalityPolicy) Await(ctx context.Context, w Waiter, hash common.Hash, logger *slog.Logger) (*domain.Receipt, error) {
	var last error
	for i, tier := range p.Tiers {
		logger.InfoContext(ctx, "awaiting finality tier",
			slog.Int("tier", i),
			slog.String("status", string(tier.Status)),
			slog.Int("retries", tier.Retries),
			slog.Duration("interval", tier.Poll.Interval),
		)

		r, err := w.WaitForTransactionReceipt(ctx, genlayer.WaitOptions{
			Hash:    hash,
			Status:  tier.Status,
			Retries: tier.Retries,
			Poll:    tier.Poll,
		})
		metrics.RecordFinalityTier(string(tier.Status), err == nil)
		if err == nil {
			return r, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		logger.WarnContext(ctx, "finality tier not reached",
			slog.String("status", string(tier.Status)),
			slog.String("error", err.Error()),
		)
		last = err
	}

	ferr := &FinalityError{Hash: hash, Last: last}
	r, err := w.GetTransaction(ctx, hash)
	switch {
	case err == nil:
		ferr.Receipt = r
	case errors.Is(err, domain.ErrTransactionNotFound):
	default:
		logger.WarnContext(ctx, "final receipt lookup failed", slog.String("error", err.Error()))
	}
	return nil, ferr
}
