package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/genmarket/internal/config"
	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/deploy"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
	"github.com/alanyoungcy/genmarket/internal/server"
	"github.com/alanyoungcy/genmarket/internal/server/handler"
	"github.com/alanyoungcy/genmarket/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// DeployMode deploys the contract with the configured deployer key and
// writes the deployment record. The returned error maps to the exit code via
// deploy.ExitCode.
func (a *App) DeployMode(ctx context.Context) (*deploy.Result, error) {
	a.logger.InfoContext(ctx, "starting deploy mode",
		slog.String("network", a.cfg.Network.Name),
		slog.String("contract_path", a.cfg.Deploy.ContractPath),
	)

	signer, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey:    a.cfg.Account.PrivateKey,
		EncryptedKeyPath: a.cfg.Account.KeyFile,
		KeyPassword:      a.cfg.Account.Password,
	})
	if errors.Is(err, crypto.ErrNoKeySource) {
		return nil, fmt.Errorf("app: deploy: GENLAYER_PRIVATE_KEY is not set: %w", domain.ErrNoAccount)
	}
	if err != nil {
		return nil, fmt.Errorf("app: deploy: %w", err)
	}
	chain, err := a.Chain()
	if err != nil {
		return nil, err
	}
	finality, err := FinalityPolicy(a.cfg.Deploy.Finality)
	if err != nil {
		return nil, err
	}
	deps, err := a.Dependencies(ctx)
	if err != nil {
		return nil, err
	}

	client, err := genlayer.Dial(ctx, chain, signer, genlayer.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	cfg := deploy.Config{
		ContractPath:      a.cfg.Deploy.ContractPath,
		RecordPath:        a.cfg.Deploy.RecordPath,
		SnapshotPath:      a.cfg.Deploy.SnapshotPath,
		FailedReceiptPath: a.cfg.Deploy.FailedReceiptPath,
		NetworkName:       a.cfg.Deploy.NetworkName,
		StudioURL:         a.cfg.Deploy.StudioURL,
		TxURL:             a.cfg.Deploy.TxURL,
		Args:              a.cfg.Deploy.Args,
		Kwargs:            a.cfg.Deploy.Kwargs,
		LeaderOnly:        a.cfg.Deploy.LeaderOnly,
		Finality:          finality,
		LockTTL:           a.cfg.Deploy.LockTTL.Duration,
	}

	runner := deploy.NewRunner(client, chain, signer.Address(), cfg, a.logger, a.deployOptions(deps)...)
	return runner.Run(ctx)
}

func (a *App) deployOptions(deps *Dependencies) []deploy.Option {
	opts := []deploy.Option{deploy.WithOutput(a.out)}
	if deps.LockManager != nil {
		opts = append(opts, deploy.WithLock(deps.LockManager))
	}

	var failures []deploy.FailureNotifier
	if deps.Notifier.Enabled() {
		failures = append(failures, deps.Notifier)
	}
	if deps.AuditStore != nil {
		failures = append(failures, deploy.NewAuditPublisher(deps.AuditStore))
	}
	opts = append(opts, deploy.WithFailureNotifiers(failures...))

	if !a.cfg.Deploy.Publish {
		return opts
	}
	var pubs []deploy.Publisher
	if deps.DeploymentStore != nil {
		pubs = append(pubs, deploy.NewHistoryPublisher(deps.DeploymentStore))
	}
	if deps.Archiver != nil {
		pubs = append(pubs, deploy.NewArchivePublisher(deps.Archiver, a.logger))
	}
	if deps.Notifier.Enabled() {
		pubs = append(pubs, deploy.NewNotifyPublisher(deps.Notifier))
	}
	if deps.AuditStore != nil {
		pubs = append(pubs, deploy.NewAuditPublisher(deps.AuditStore))
	}
	return append(opts, deploy.WithPublishers(pubs...))
}

// FinalityPolicy converts the configured tiers. An empty list keeps the
// default FINALIZED then ACCEPTED ladder.
func FinalityPolicy(tiers []config.TierConfig) (deploy.FinalityPolicy, error) {
	if len(tiers) == 0 {
		return deploy.DefaultFinality(), nil
	}
	var p deploy.FinalityPolicy
	for i, t := range tiers {
		st, err := domain.ParseTransactionStatus(t.Status)
		if err != nil {
			return deploy.FinalityPolicy{}, fmt.Errorf("app: deploy.finality[%d]: %w", i, err)
		}
		p.Tiers = append(p.Tiers, deploy.Tier{
			Status:  st,
			Retries: t.Retries,
			Poll: genlayer.PollPolicy{
				Interval:    t.Interval.Duration,
				Multiplier:  t.Multiplier,
				MaxInterval: t.MaxInterval.Duration,
			},
		})
	}
	return p, nil
}

// ServeMode runs the HTTP API and the websocket hub until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.String("network", a.cfg.Network.Name),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, err := a.Dependencies(ctx)
	if err != nil {
		return err
	}
	binding, err := a.Binding()
	if err != nil {
		return err
	}
	if binding.Contract == (common.Address{}) {
		a.logger.WarnContext(ctx, "no contract address configured; market endpoints will fail until one is set")
	}

	startedAt := time.Now().UTC()
	hub := ws.NewHub(deps.SignalBus, ws.Info{
		Network:   binding.Chain.Name,
		ChainID:   binding.Chain.ID,
		Contract:  binding.Contract.Hex(),
		StartedAt: startedAt,
	}, a.cfg.Server.CORSOrigins, a.logger)

	markets, err := a.MarketService(ctx, hub)
	if err != nil {
		return err
	}
	txs, err := a.TxService()
	if err != nil {
		return err
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status: &handler.StatusHandler{
			Network:   binding.Chain.Name,
			ChainID:   binding.Chain.ID,
			RPCURL:    binding.Chain.RPCURL,
			Contract:  binding.Contract.Hex(),
			StartedAt: startedAt,
		},
		Account:     handler.NewAccountHandler(deps.Accounts, a.logger),
		Markets:     handler.NewMarketHandler(markets, a.logger),
		Positions:   handler.NewPositionHandler(markets, a.logger),
		Bets:        handler.NewBetHandler(markets, a.logger),
		Tx:          handler.NewTxHandler(txs, deps.SignalBus, a.logger),
		Deployments: handler.NewDeploymentHandler(deps.DeploymentStore, a.cfg.Deploy.RecordPath, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimit:      a.cfg.Server.RateLimit,
		TrustedProxies: a.cfg.Server.TrustedProxies,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}
