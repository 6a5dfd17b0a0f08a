// Package deploy runs a one-shot contract deployment: read the contract
// source, submit the deployment, wait for finality and write the result.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
	"github.com/alanyoungcy/genmarket/internal/metrics"
)

// Run states, logged as state=<name>.
const (
	StateReadBytecode  = "read-bytecode"
	StateInitConsensus = "init-consensus"
	StateSubmitDeploy  = "submit-deploy"
	StateAwaitFinality = "await-finality"
	StatePersistResult = "persist-result"
	StatePublish       = "publish"
)

const noReceiptNote = "no receipt available (timed out)"

// Network is the part of the GenLayer client used by a deployment.
type Network interface {
	Waiter
	InitializeConsensusSmartContract(ctx context.Context, force bool) error
	DeployContract(ctx context.Context, req genlayer.DeployRequest) (common.Hash, error)
}

// Config controls file locations and the deployment record.
type Config struct {
	ContractPath string
	// RecordPath receives the deployment record on success.
	RecordPath string
	// SnapshotPath receives {error, receipt} when no tier is reached.
	SnapshotPath string
	// FailedReceiptPath receives the raw receipt when it is not accepted.
	FailedReceiptPath string

	NetworkName string
	StudioURL   string
	TxURL       string

	Args       []any
	Kwargs     map[string]any
	LeaderOnly bool

	Finality FinalityPolicy
	// LockTTL is the minimum lock lifetime. The lock is always held for at
	// least the finality budget plus lockGrace so it cannot lapse mid-wait.
	LockTTL time.Duration
}

// lockGrace covers reading, submitting and per-poll round trips on top of
// the finality budget.
const lockGrace = 5 * time.Minute

func (c Config) lockTTL() time.Duration {
	return max(c.LockTTL, c.Finality.Budget()+lockGrace)
}

// DefaultConfig matches the conventional project layout.
func DefaultConfig() Config {
	return Config{
		ContractPath:      "contracts/prediction_market.py",
		RecordPath:        "deployed_contract.json",
		SnapshotPath:      "tx_receipt.json",
		FailedReceiptPath: "tx_receipt.json",
		NetworkName:       "studio",
		StudioURL:         "https://studio.genlayer.com",
		TxURL:             "https://studio.genlayer.com",
		Args:              []any{},
		Finality:          DefaultFinality(),
		LockTTL:           30 * time.Minute,
	}
}

// Result is a successful deployment.
type Result struct {
	Record  domain.DeploymentRecord
	Receipt *domain.Receipt
	Source  []byte
}

// Publisher forwards a successful deployment somewhere (history, archive,
// chat). Publish errors are logged and never fail the run.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, res *Result) error
}

// FailureNotifier is told about failed runs. hash is empty when the run
// failed before submission.
type FailureNotifier interface {
	DeploymentFailed(ctx context.Context, hash string, cause error) error
}

// Runner executes deployments against one chain with one deployer account.
type Runner struct {
	cfg      Config
	net      Network
	chain    genlayer.Chain
	deployer common.Address

	locks      domain.LockManager
	publishers []Publisher
	onFailure  []FailureNotifier
	out        io.Writer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLock serialises runs for the same network across processes.
func WithLock(lm domain.LockManager) Option {
	return func(r *Runner) { r.locks = lm }
}

// WithPublishers adds post-deployment publishers.
func WithPublishers(p ...Publisher) Option {
	return func(r *Runner) { r.publishers = append(r.publishers, p...) }
}

// WithFailureNotifiers adds receivers for failed runs.
func WithFailureNotifiers(n ...FailureNotifier) Option {
	return func(r *Runner) { r.onFailure = append(r.onFailure, n...) }
}

// WithOutput sets where progress lines are printed. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithClock overrides the time source for deployedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner. net must be bound to the deployer's account.
func NewRunner(net Network, chain genlayer.Chain, deployer common.Address, cfg Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		net:      net,
		chain:    chain,
		deployer: deployer,
		out:      io.Discard,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "deploy")),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ExitCode maps a Run error to the process exit status.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// Run performs one deployment. Any error aborts the run; files already
// written for diagnosis (snapshot or raw receipt) are left in place.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	logger := r.logger.With(slog.String("run_id", uuid.NewString()))
	var hash common.Hash

	defer func() {
		metrics.RecordDeployment(time.Since(start), err)
		if err != nil {
			r.notifyFailure(ctx, logger, hash, err)
		}
	}()

	if r.locks != nil {
		unlock, lerr := r.locks.Acquire(ctx, domain.DeployLockKey(r.cfg.NetworkName), r.cfg.lockTTL())
		if lerr != nil {
			return nil, fmt.Errorf("deploy: acquire lock: %w", lerr)
		}
		defer unlock()
	}

	logger.InfoContext(ctx, "deploy state", slog.String("state", StateReadBytecode))
	r.printf("Reading contract from %s\n", r.cfg.ContractPath)
	code, err := os.ReadFile(r.cfg.ContractPath)
	if err != nil {
		return nil, fmt.Errorf("deploy: read contract: %w", err)
	}

	logger.InfoContext(ctx, "deploy state", slog.String("state", StateInitConsensus))
	r.printf("Deploying from %s to %s\n", r.deployer.Hex(), r.chain.Name)
	if err := r.net.InitializeConsensusSmartContract(ctx, false); err != nil {
		return nil, fmt.Errorf("deploy: initialize consensus: %w", err)
	}

	logger.InfoContext(ctx, "deploy state", slog.String("state", StateSubmitDeploy))
	hash, err = r.net.DeployContract(ctx, genlayer.DeployRequest{
		Code:       code,
		Args:       r.cfg.Args,
		Kwargs:     r.cfg.Kwargs,
		LeaderOnly: r.cfg.LeaderOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("deploy: submit: %w", err)
	}
	r.printf("Transaction hash: %s\n", hash.Hex())
	logger = logger.With(slog.String("tx_hash", hash.Hex()))

	logger.InfoContext(ctx, "deploy state", slog.String("state", StateAwaitFinality))
	r.printf("Waiting for finality (%v)\n", r.cfg.Finality.Tiers)
	receipt, err := r.cfg.Finality.Await(ctx, r.net, hash, logger)
	if err != nil {
		var ferr *FinalityError
		if errors.As(err, &ferr) {
			r.writeSnapshot(logger, hash, ferr)
		}
		return nil, fmt.Errorf("deploy: %s: %w", hash.Hex(), err)
	}

	logger.InfoContext(ctx, "deploy state", slog.String("state", StatePersistResult))
	if !receipt.StatusName.Settled() {
		if werr := writeJSON(r.cfg.FailedReceiptPath, receipt); werr != nil {
			logger.ErrorContext(ctx, "write failed receipt", slog.String("error", werr.Error()))
		}
		return nil, fmt.Errorf("deploy: %s is %s: %w", hash.Hex(), receipt.StatusName, domain.ErrTransactionNotAccepted)
	}

	address := receipt.ContractAddress()
	if address == "" {
		logger.WarnContext(ctx, "receipt carries no contract address")
	}
	rec := domain.DeploymentRecord{
		Network:         r.cfg.NetworkName,
		ChainID:         r.chain.ID,
		ContractAddress: address,
		Deployer:        r.deployer.Hex(),
		TransactionHash: hash.Hex(),
		DeployedAt:      r.now().UTC().Truncate(time.Millisecond),
		StudioURL:       r.cfg.StudioURL,
		TxURL:           r.cfg.TxURL,
	}
	if err := writeJSON(r.cfg.RecordPath, rec); err != nil {
		return nil, fmt.Errorf("deploy: write record: %w", err)
	}
	r.printf("Contract deployed at %s\n", address)
	r.printf("Deployment info saved to %s\n", r.cfg.RecordPath)

	res = &Result{Record: rec, Receipt: receipt, Source: code}
	r.publish(ctx, logger, res)

	logger.InfoContext(ctx, "deployment complete",
		slog.String("contract", address),
		slog.String("status", string(receipt.StatusName)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (r *Runner) writeSnapshot(logger *slog.Logger, hash common.Hash, ferr *FinalityError) {
	snap := domain.ReceiptSnapshot{Error: ferr.Error()}
	if ferr.Receipt != nil {
		snap.Receipt = ferr.Receipt
	} else {
		snap.Receipt = domain.PendingReceipt{TxHash: hash.Hex(), Note: noReceiptNote}
	}
	if err := writeJSON(r.cfg.SnapshotPath, snap); err != nil {
		logger.Error("write receipt snapshot", slog.String("error", err.Error()))
		return
	}
	r.printf("Receipt snapshot saved to %s\n", r.cfg.SnapshotPath)
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, res *Result) {
	if len(r.publishers) == 0 {
		return
	}
	logger.InfoContext(ctx, "deploy state", slog.String("state", StatePublish))
	for _, p := range r.publishers {
		if err := p.Publish(ctx, res); err != nil {
			logger.WarnContext(ctx, "publish failed",
				slog.String("publisher", p.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Runner) notifyFailure(ctx context.Context, logger *slog.Logger, hash common.Hash, cause error) {
	var h string
	if hash != (common.Hash{}) {
		h = hash.Hex()
	}
	for _, n := range r.onFailure {
		if err := n.DeploymentFailed(ctx, h, cause); err != nil {
			logger.WarnContext(ctx, "failure notification failed", slog.String("error", err.Error()))
		}
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// writeJSON writes v with two-space indentation, replacing path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
