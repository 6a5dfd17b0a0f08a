package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/genmarket/internal/config"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveChain(t *testing.T) {
	chain, err := ResolveChain(config.NetworkConfig{Name: "studionet"})
	require.NoError(t, err)
	assert.Equal(t, genlayer.Studionet, chain)

	chain, err = ResolveChain(config.NetworkConfig{
		Name:             "localnet",
		RPCURL:           "http://10.0.0.5:4000/api",
		ConsensusAddress: "0x00000000000000000000000000000000000000c5",
		GasLimit:         1_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:4000/api", chain.RPCURL)
	assert.Equal(t, int64(61999), chain.ID)
	assert.Equal(t, uint64(1_000_000), chain.DefaultGasLimit)
	assert.Equal(t, common.HexToAddress("0xc5"), chain.ConsensusMainAddress)

	chain, err = ResolveChain(config.NetworkConfig{Name: "bradbury", RPCURL: "https://rpc.example/api", ChainID: 4221})
	require.NoError(t, err)
	assert.Equal(t, "bradbury", chain.Name)
	assert.Equal(t, int64(4221), chain.ID)
	assert.True(t, chain.Studio)

	_, err = ResolveChain(config.NetworkConfig{Name: "bradbury"})
	assert.Error(t, err)

	_, err = ResolveChain(config.NetworkConfig{Name: "studio", ConsensusAddress: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestContractAddress(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "deployed_contract.json")
	require.NoError(t, os.WriteFile(record,
		[]byte(`{"network":"studio","contractAddress":"0x00000000000000000000000000000000000000aa"}`), 0o644))

	t.Run("configured address wins", func(t *testing.T) {
		addr, err := ContractAddress(config.ContractConfig{
			Address:           "0x00000000000000000000000000000000000000bb",
			AddressFromRecord: true,
		}, record)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xbb"), addr)
	})

	t.Run("falls back to record", func(t *testing.T) {
		addr, err := ContractAddress(config.ContractConfig{AddressFromRecord: true}, record)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xaa"), addr)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		addr, err := ContractAddress(config.ContractConfig{}, record)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, addr)
	})

	t.Run("missing record", func(t *testing.T) {
		addr, err := ContractAddress(config.ContractConfig{AddressFromRecord: true}, filepath.Join(dir, "none.json"))
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, addr)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ContractAddress(config.ContractConfig{Address: "0x12"}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	})
}

func TestFinalityPolicy(t *testing.T) {
	p, err := FinalityPolicy(nil)
	require.NoError(t, err)
	assert.Len(t, p.Tiers, 2)

	p, err = FinalityPolicy([]config.TierConfig{
		{Status: "ACCEPTED", Retries: 5, Interval: config.Duration(2 * time.Second), Multiplier: 2, MaxInterval: config.Duration(8 * time.Second)},
	})
	require.NoError(t, err)
	require.Len(t, p.Tiers, 1)
	assert.Equal(t, domain.TxStatusAccepted, p.Tiers[0].Status)
	assert.Equal(t, 5, p.Tiers[0].Retries)
	assert.Equal(t, genlayer.PollPolicy{Interval: 2 * time.Second, Multiplier: 2, MaxInterval: 8 * time.Second}, p.Tiers[0].Poll)

	_, err = FinalityPolicy([]config.TierConfig{{Status: "DONE"}})
	assert.Error(t, err)
}

type recordingPublisher struct{ events []domain.TxEvent }

func (r *recordingPublisher) PublishTx(_ context.Context, ev domain.TxEvent) {
	r.events = append(r.events, ev)
}

func TestTxFanout(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	txFanout{a, b}.PublishTx(context.Background(), domain.TxEvent{Function: "place_bet"})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Account.Path = filepath.Join(t.TempDir(), "account")
	cfg.Deploy.RecordPath = filepath.Join(t.TempDir(), "deployed_contract.json")
	return &cfg
}

func TestWireLocalOnly(t *testing.T) {
	cfg := localConfig(t)
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.DeploymentStore)
	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.HealthChecks)
	assert.False(t, deps.Notifier.Enabled())

	ctx := context.Background()
	acct, err := deps.Accounts.Resolve(ctx)
	require.NoError(t, err)
	again, err := deps.Accounts.GetOrNull(ctx)
	require.NoError(t, err)
	assert.Equal(t, acct.Address(), again.Address())
}

func TestWireRejectsUnavailableAccountStore(t *testing.T) {
	cfg := localConfig(t)
	cfg.Account.Store = "redis"
	_, _, err := Wire(context.Background(), cfg, testLogger())
	assert.Error(t, err)

	cfg.Account.Store = "etcd"
	_, _, err = Wire(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestMarketServiceWithoutContract(t *testing.T) {
	cfg := localConfig(t)
	a := New(cfg, testLogger(), nil)
	defer a.Close()

	svc, err := a.MarketService(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, svc.Binding().Contract)

	_, err = svc.GetMarkets(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrNoContract)
}

func TestDeployModeNeedsKey(t *testing.T) {
	cfg := localConfig(t)
	a := New(cfg, testLogger(), nil)
	defer a.Close()

	_, err := a.DeployMode(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoAccount)
}

func TestDeployModeBadKeyFile(t *testing.T) {
	cfg := localConfig(t)
	cfg.Account.KeyFile = filepath.Join(t.TempDir(), "missing.json")
	a := New(cfg, testLogger(), nil)
	defer a.Close()

	_, err := a.DeployMode(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoAccount)
}
