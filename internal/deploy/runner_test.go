package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

var (
	testHash     = common.HexToHash("0xabc1")
	testDeployer = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	testNow      = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeNetwork struct {
	// outcomes by awaited status; missing entries time out
	outcomes  map[domain.TransactionStatus]*domain.Receipt
	final     *domain.Receipt
	deployErr error

	waits    []genlayer.WaitOptions
	deployed []genlayer.DeployRequest
	inits    int
}

func (f *fakeNetwork) InitializeConsensusSmartContract(context.Context, bool) error {
	f.inits++
	return nil
}

func (f *fakeNetwork) DeployContract(_ context.Context, req genlayer.DeployRequest) (common.Hash, error) {
	f.deployed = append(f.deployed, req)
	if f.deployErr != nil {
		return common.Hash{}, f.deployErr
	}
	return testHash, nil
}

func (f *fakeNetwork) GetTransaction(context.Context, common.Hash) (*domain.Receipt, error) {
	if f.final == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return f.final, nil
}

func (f *fakeNetwork) WaitForTransactionReceipt(_ context.Context, opts genlayer.WaitOptions) (*domain.Receipt, error) {
	f.waits = append(f.waits, opts)
	if r, ok := f.outcomes[opts.Status]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%s not reached after %d retries: %w", opts.Status, opts.Retries, domain.ErrFinalityTimeout)
}

func (f *fakeNetwork) waitedFor() []domain.TransactionStatus {
	out := make([]domain.TransactionStatus, len(f.waits))
	for i, w := range f.waits {
		out[i] = w.Status
	}
	return out
}

type recordingPublisher struct {
	published []*Result
	failures  []string
	err       error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, res *Result) error {
	p.published = append(p.published, res)
	return p.err
}

func (p *recordingPublisher) DeploymentFailed(_ context.Context, hash string, cause error) error {
	p.failures = append(p.failures, hash)
	return nil
}

type fakeLocks struct {
	err      error
	keys     []string
	ttls     []time.Duration
	released int
}

func (l *fakeLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	if l.err != nil {
		return nil, l.err
	}
	return func() { l.released++ }, nil
}

func receipt(t *testing.T, doc string) *domain.Receipt {
	t.Helper()
	var r domain.Receipt
	require.NoError(t, json.Unmarshal([]byte(doc), &r))
	return &r
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	contract := filepath.Join(dir, "contracts", "prediction_market.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(contract), 0o755))
	require.NoError(t, os.WriteFile(contract, []byte("# contract\n"), 0o644))

	cfg := DefaultConfig()
	cfg.ContractPath = contract
	cfg.RecordPath = filepath.Join(dir, "deployed_contract.json")
	cfg.SnapshotPath = filepath.Join(dir, "tx_receipt.json")
	cfg.FailedReceiptPath = filepath.Join(dir, "tx_receipt.json")
	return cfg
}

func newTestRunner(net Network, cfg Config, opts ...Option) (*Runner, *bytes.Buffer) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithOutput(&out), WithClock(func() time.Time { return testNow })}, opts...)
	return NewRunner(net, genlayer.Studionet, testDeployer, cfg, logger, opts...), &out
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRunFinalizedSkipsAcceptedTier(t *testing.T) {
	cfg := testConfig(t)
	net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
		domain.TxStatusFinalized: receipt(t, `{"hash":"0xabc1","statusName":"FINALIZED","data":{"contract_address":"0xc0ffee"}}`),
		domain.TxStatusAccepted:  receipt(t, `{"hash":"0xabc1","statusName":"ACCEPTED"}`),
	}}
	pub := &recordingPublisher{}
	r, out := newTestRunner(net, cfg, WithPublishers(pub))

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))

	assert.Equal(t, []domain.TransactionStatus{domain.TxStatusFinalized}, net.waitedFor())
	assert.Equal(t, 600, net.waits[0].Retries)
	assert.Equal(t, time.Second, net.waits[0].Poll.Interval)
	assert.Equal(t, 1, net.inits)
	require.Len(t, net.deployed, 1)
	assert.Equal(t, []byte("# contract\n"), net.deployed[0].Code)
	assert.Equal(t, []any{}, net.deployed[0].Args)

	rec := readJSON(t, cfg.RecordPath)
	assert.Equal(t, "studio", rec["network"])
	assert.Equal(t, float64(61999), rec["chainId"])
	assert.Equal(t, "0xc0ffee", rec["contractAddress"])
	assert.Equal(t, testDeployer.Hex(), rec["deployer"])
	assert.Equal(t, testHash.Hex(), rec["transactionHash"])
	assert.Equal(t, "2025-03-01T12:00:00Z", rec["deployedAt"])
	assert.Equal(t, "https://studio.genlayer.com", rec["studioUrl"])
	assert.Equal(t, "https://studio.genlayer.com", rec["txUrl"])

	require.Len(t, pub.published, 1)
	assert.Equal(t, res.Record, pub.published[0].Record)
	assert.Contains(t, out.String(), "Contract deployed at 0xc0ffee")

	_, err = os.Stat(cfg.SnapshotPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunFallsBackToAccepted(t *testing.T) {
	cfg := testConfig(t)
	net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
		domain.TxStatusAccepted: receipt(t, `{"hash":"0xabc1","statusName":"ACCEPTED","txDataDecoded":{"contractAddress":"0xbeef"}}`),
	}}
	r, _ := newTestRunner(net, cfg)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.TransactionStatus{domain.TxStatusFinalized, domain.TxStatusAccepted}, net.waitedFor())
	assert.Equal(t, 100, net.waits[1].Retries)
	assert.Equal(t, "0xbeef", res.Record.ContractAddress)
	assert.Equal(t, "0xbeef", readJSON(t, cfg.RecordPath)["contractAddress"])
}

func TestRunNeverReachedWritesSnapshot(t *testing.T) {
	t.Run("no receipt", func(t *testing.T) {
		cfg := testConfig(t)
		net := &fakeNetwork{}
		pub := &recordingPublisher{}
		r, _ := newTestRunner(net, cfg, WithPublishers(pub), WithFailureNotifiers(pub))

		_, err := r.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, ExitCode(err))
		assert.ErrorIs(t, err, domain.ErrFinalityTimeout)
		var ferr *FinalityError
		require.ErrorAs(t, err, &ferr)
		assert.Nil(t, ferr.Receipt)

		snap := readJSON(t, cfg.SnapshotPath)
		assert.Contains(t, snap["error"], "ACCEPTED not reached")
		assert.Equal(t, map[string]any{
			"txHash": testHash.Hex(),
			"note":   "no receipt available (timed out)",
		}, snap["receipt"])

		_, statErr := os.Stat(cfg.RecordPath)
		assert.True(t, os.IsNotExist(statErr))
		assert.Empty(t, pub.published)
		assert.Equal(t, []string{testHash.Hex()}, pub.failures)
	})

	t.Run("pending receipt", func(t *testing.T) {
		cfg := testConfig(t)
		net := &fakeNetwork{final: receipt(t, `{"hash":"0xabc1","statusName":"PROPOSING","extra":1}`)}
		r, _ := newTestRunner(net, cfg)

		_, err := r.Run(context.Background())
		require.Error(t, err)

		snap := readJSON(t, cfg.SnapshotPath)
		got := snap["receipt"].(map[string]any)
		assert.Equal(t, "PROPOSING", got["statusName"])
		assert.Equal(t, float64(1), got["extra"])
	})
}

func TestRunNotAcceptedWritesRawReceipt(t *testing.T) {
	cfg := testConfig(t)
	cfg.FailedReceiptPath = filepath.Join(filepath.Dir(cfg.RecordPath), "failed.json")
	net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
		domain.TxStatusFinalized: receipt(t, `{"hash":"0xabc1","statusName":"UNDETERMINED","consensus_data":{"votes":[]}}`),
	}}
	r, _ := newTestRunner(net, cfg)

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrTransactionNotAccepted)
	assert.Equal(t, 1, ExitCode(err))

	raw := readJSON(t, cfg.FailedReceiptPath)
	assert.Equal(t, "UNDETERMINED", raw["statusName"])
	assert.Contains(t, raw, "consensus_data")
	_, statErr := os.Stat(cfg.RecordPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecordAddressPrecedence(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"data wins", `{"statusName":"FINALIZED","data":{"contract_address":"0xdata"},"txDataDecoded":{"contractAddress":"0xdecoded"}}`, "0xdata"},
		{"decoded fallback", `{"statusName":"FINALIZED","data":"0x00","txDataDecoded":{"contractAddress":"0xdecoded"}}`, "0xdecoded"},
		{"neither", `{"statusName":"FINALIZED"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
				domain.TxStatusFinalized: receipt(t, tc.doc),
			}}
			r, _ := newTestRunner(net, cfg)
			res, err := r.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Record.ContractAddress)
		})
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("missing contract file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ContractPath = filepath.Join(t.TempDir(), "missing.py")
		net := &fakeNetwork{}
		pub := &recordingPublisher{}
		r, _ := newTestRunner(net, cfg, WithFailureNotifiers(pub))

		_, err := r.Run(context.Background())
		require.ErrorIs(t, err, os.ErrNotExist)
		assert.Empty(t, net.deployed)
		assert.Equal(t, []string{""}, pub.failures)
	})

	t.Run("submit fails", func(t *testing.T) {
		cfg := testConfig(t)
		net := &fakeNetwork{deployErr: errors.New("insufficient funds")}
		r, _ := newTestRunner(net, cfg)

		_, err := r.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient funds")
		assert.Empty(t, net.waits)
	})

	t.Run("lock held", func(t *testing.T) {
		cfg := testConfig(t)
		net := &fakeNetwork{}
		locks := &fakeLocks{err: domain.ErrLockHeld}
		r, _ := newTestRunner(net, cfg, WithLock(locks))

		_, err := r.Run(context.Background())
		require.ErrorIs(t, err, domain.ErrLockHeld)
		assert.Equal(t, []string{"deploy:studio"}, locks.keys)
		assert.Empty(t, net.deployed)
	})
}

func TestRunReleasesLockAndToleratesPublishErrors(t *testing.T) {
	cfg := testConfig(t)
	net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
		domain.TxStatusFinalized: receipt(t, `{"statusName":"FINALIZED","data":{"contract_address":"0x1"}}`),
	}}
	locks := &fakeLocks{}
	pub := &recordingPublisher{err: errors.New("s3 down")}
	r, _ := newTestRunner(net, cfg, WithLock(locks), WithPublishers(pub))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locks.released)
	assert.Len(t, pub.published, 1)
}

func TestRunLockOutlivesFinalityBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.LockTTL = time.Minute
	cfg.Finality = FinalityPolicy{Tiers: []Tier{
		{Status: domain.TxStatusFinalized, Retries: 3600, Poll: genlayer.PollPolicy{Interval: time.Second}},
	}}
	net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
		domain.TxStatusFinalized: receipt(t, `{"statusName":"FINALIZED","data":{"contract_address":"0x1"}}`),
	}}
	locks := &fakeLocks{}
	r, _ := newTestRunner(net, cfg, WithLock(locks))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, locks.ttls, 1)
	assert.Equal(t, time.Hour+lockGrace, locks.ttls[0])

	cfg.LockTTL = 3 * time.Hour
	assert.Equal(t, 3*time.Hour, cfg.lockTTL())
}

func TestFinalityBudget(t *testing.T) {
	assert.Equal(t, 700*time.Second, DefaultFinality().Budget())
	assert.Zero(t, FinalityPolicy{}.Budget())
}

func TestFinalityAwaitCustomTiers(t *testing.T) {
	net := &fakeNetwork{outcomes: map[domain.TransactionStatus]*domain.Receipt{
		domain.TxStatusAccepted: receipt(t, `{"statusName":"ACCEPTED"}`),
	}}
	policy := FinalityPolicy{Tiers: []Tier{
		{Status: domain.TxStatusFinalized, Retries: 3, Poll: genlayer.PollPolicy{Interval: time.Millisecond, Multiplier: 2, MaxInterval: 8 * time.Millisecond}},
		{Status: domain.TxStatusAccepted, Retries: 1},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := policy.Await(context.Background(), net, testHash, logger)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusAccepted, r.StatusName)
	require.Len(t, net.waits, 2)
	assert.Equal(t, 2.0, net.waits[0].Poll.Multiplier)
	assert.Equal(t, testHash, net.waits[1].Hash)
}

func TestFinalityAwaitNoTiers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := FinalityPolicy{}.Await(context.Background(), &fakeNetwork{}, testHash, logger)
	assert.ErrorIs(t, err, domain.ErrFinalityTimeout)
}

func TestFinalityAwaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := DefaultFinality().Await(ctx, &fakeNetwork{}, testHash, logger)
	require.ErrorIs(t, err, context.Canceled)
}
