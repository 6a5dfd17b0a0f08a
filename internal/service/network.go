package service

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

// Binding is the network and contract every façade call is issued against.
// It is passed in explicitly; there is no package-level client state.
type Binding struct {
	Chain    genlayer.Chain
	Contract common.Address
	// ReadState selects the state reads observe. Empty means latest-nonfinal.
	ReadState string
}

// Network is the slice of the GenLayer client the services use.
type Network interface {
	ReadContract(ctx context.Context, req genlayer.ReadRequest) (any, error)
	WriteContract(ctx context.Context, req genlayer.WriteRequest) (common.Hash, error)
	GetTransaction(ctx context.Context, hash common.Hash) (*domain.Receipt, error)
	WaitForTransactionReceipt(ctx context.Context, opts genlayer.WaitOptions) (*domain.Receipt, error)
	Close()
}

// Dialer builds a Network bound to chain and account. account may be nil for
// read-only use.
type Dialer func(ctx context.Context, chain genlayer.Chain, account *crypto.Signer) (Network, error)

// DialGenLayer returns a Dialer producing genlayer.Client instances.
func DialGenLayer(logger *slog.Logger) Dialer {
	return func(ctx context.Context, chain genlayer.Chain, account *crypto.Signer) (Network, error) {
		return genlayer.Dial(ctx, chain, account, genlayer.WithLogger(logger))
	}
}

// AccountResolver selects the account a call acts as.
type AccountResolver interface {
	Resolve(ctx context.Context) (*crypto.Signer, error)
	Create(ctx context.Context) (*crypto.Signer, error)
}
