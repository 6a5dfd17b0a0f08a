// Package app wires configuration into the GenLayer client, the market façade,
// the deploy runner and the HTTP server, and owns their lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/config"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
	"github.com/alanyoungcy/genmarket/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	deps    *Dependencies
	closers []func()
}

// New creates a new App. out receives human-readable command output.
func New(cfg *config.Config, logger *slog.Logger, out io.Writer) *App {
	if out == nil {
		out = io.Discard
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    out,
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Dependencies wires the backing services on first use.
func (a *App) Dependencies(ctx context.Context) (*Dependencies, error) {
	if a.deps != nil {
		return a.deps, nil
	}
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.deps = deps
	return deps, nil
}

// Chain resolves the configured network.
func (a *App) Chain() (genlayer.Chain, error) {
	return ResolveChain(a.cfg.Network)
}

// Binding resolves the network and contract the market façade targets. A
// missing contract address is not an error here; calls fail with
// domain.ErrNoContract instead.
func (a *App) Binding() (service.Binding, error) {
	chain, err := a.Chain()
	if err != nil {
		return service.Binding{}, err
	}
	addr, err := ContractAddress(a.cfg.Contract, a.cfg.Deploy.RecordPath)
	if err != nil {
		return service.Binding{}, err
	}
	return service.Binding{Chain: chain, Contract: addr, ReadState: a.cfg.Contract.ReadState}, nil
}

// MarketService builds the contract façade. extra receives tx events in
// addition to the notifier.
func (a *App) MarketService(ctx context.Context, extra ...domain.TxEventPublisher) (*service.MarketService, error) {
	deps, err := a.Dependencies(ctx)
	if err != nil {
		return nil, err
	}
	binding, err := a.Binding()
	if err != nil {
		return nil, err
	}

	opts := []service.MarketServiceOption{}
	publishers := append(txFanout{}, extra...)
	if deps.Notifier.Enabled() {
		publishers = append(publishers, deps.Notifier)
	}
	if len(publishers) > 0 {
		opts = append(opts, service.WithTxEvents(publishers))
	}
	if deps.AuditStore != nil {
		opts = append(opts, service.WithAudit(deps.AuditStore))
	}
	return service.NewMarketService(binding, deps.Accounts, service.DialGenLayer(a.logger), a.logger, opts...), nil
}

// TxService builds the transaction lookup service.
func (a *App) TxService() (*service.TxService, error) {
	chain, err := a.Chain()
	if err != nil {
		return nil, err
	}
	return service.NewTxService(chain, service.DialGenLayer(a.logger), a.logger), nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.deps = nil
}

// ResolveChain maps the network section onto a built-in chain and applies
// overrides. Unknown names need rpc_url and chain_id.
func ResolveChain(nc config.NetworkConfig) (genlayer.Chain, error) {
	chain, ok := genlayer.ChainByName(nc.Name)
	if !ok {
		if nc.RPCURL == "" || nc.ChainID == 0 {
			return genlayer.Chain{}, fmt.Errorf("app: network %q is not built in and needs rpc_url and chain_id", nc.Name)
		}
		chain = genlayer.Chain{
			Name:                nc.Name,
			Studio:              true,
			DefaultValidators:   genlayer.Studionet.DefaultValidators,
			DefaultMaxRotations: genlayer.Studionet.DefaultMaxRotations,
			DefaultGasLimit:     genlayer.Studionet.DefaultGasLimit,
		}
	}

	if nc.RPCURL != "" {
		chain.RPCURL = nc.RPCURL
	}
	if nc.ChainID != 0 {
		chain.ID = nc.ChainID
	}
	if nc.ExplorerURL != "" {
		chain.ExplorerURL = nc.ExplorerURL
	}
	if nc.Validators > 0 {
		chain.DefaultValidators = nc.Validators
	}
	if nc.MaxRotations > 0 {
		chain.DefaultMaxRotations = nc.MaxRotations
	}
	if nc.GasLimit > 0 {
		chain.DefaultGasLimit = nc.GasLimit
	}
	if nc.ConsensusAddress != "" {
		if !common.IsHexAddress(nc.ConsensusAddress) {
			return genlayer.Chain{}, fmt.Errorf("app: consensus_address %q: %w", nc.ConsensusAddress, domain.ErrInvalidAddress)
		}
		chain.ConsensusMainAddress = common.HexToAddress(nc.ConsensusAddress)
	}
	return chain, nil
}

// ContractAddress returns the configured contract address, falling back to
// the deployment record when allowed. It returns the zero address when
// neither is available.
func ContractAddress(cc config.ContractConfig, recordPath string) (common.Address, error) {
	raw := strings.TrimSpace(cc.Address)
	if raw == "" && cc.AddressFromRecord && recordPath != "" {
		rec, err := readRecord(recordPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return common.Address{}, err
		default:
			raw = rec.ContractAddress
		}
	}
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("app: contract address %q: %w", raw, domain.ErrInvalidAddress)
	}
	return common.HexToAddress(raw), nil
}

func readRecord(path string) (domain.DeploymentRecord, error) {
	var rec domain.DeploymentRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("app: parse %s: %w", path, err)
	}
	return rec, nil
}

// txFanout forwards tx events to several publishers.
type txFanout []domain.TxEventPublisher

func (f txFanout) PublishTx(ctx context.Context, ev domain.TxEvent) {
	for _, p := range f {
		p.PublishTx(ctx, ev)
	}
}
