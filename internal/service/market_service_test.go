package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")

type fakeNetwork struct {
	reads   []genlayer.ReadRequest
	writes  []genlayer.WriteRequest
	result  any
	err     error
	closed  int
	account *crypto.Signer
}

func (f *fakeNetwork) ReadContract(_ context.Context, req genlayer.ReadRequest) (any, error) {
	f.reads = append(f.reads, req)
	return f.result, f.err
}

func (f *fakeNetwork) WriteContract(_ context.Context, req genlayer.WriteRequest) (common.Hash, error) {
	f.writes = append(f.writes, req)
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return common.HexToHash("0xbeef"), nil
}

func (f *fakeNetwork) GetTransaction(context.Context, common.Hash) (*domain.Receipt, error) {
	return nil, errors.New("not used")
}

func (f *fakeNetwork) WaitForTransactionReceipt(context.Context, genlayer.WaitOptions) (*domain.Receipt, error) {
	return nil, errors.New("not used")
}

func (f *fakeNetwork) Close() { f.closed++ }

type fakeAccounts struct {
	acct    *crypto.Signer
	err     error
	created int
}

func (f *fakeAccounts) Resolve(context.Context) (*crypto.Signer, error) { return f.acct, f.err }

func (f *fakeAccounts) Create(context.Context) (*crypto.Signer, error) {
	f.created++
	return f.acct, f.err
}

type recordingPublisher struct{ events []domain.TxEvent }

func (r *recordingPublisher) PublishTx(_ context.Context, ev domain.TxEvent) {
	r.events = append(r.events, ev)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestService(t *testing.T, net *fakeNetwork, opts ...MarketServiceOption) (*MarketService, *fakeAccounts) {
	t.Helper()
	acct, err := crypto.NewSigner("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	accounts := &fakeAccounts{acct: acct}
	dial := func(_ context.Context, chain genlayer.Chain, a *crypto.Signer) (Network, error) {
		assert.Equal(t, genlayer.Studionet.ID, chain.ID)
		net.account = a
		return net, nil
	}
	binding := Binding{Chain: genlayer.Studionet, Contract: testContract}
	return NewMarketService(binding, accounts, dial, discard(), opts...), accounts
}

func TestWriteCalls(t *testing.T) {
	tests := []struct {
		name     string
		call     func(context.Context, *MarketService) (common.Hash, error)
		function string
		args     []any
		value    *big.Int
	}{
		{
			name: "create market",
			call: func(ctx context.Context, s *MarketService) (common.Hash, error) {
				return s.CreateMarket(ctx, domain.MarketInput{
					Title:            "Will it rain?",
					Description:      "Rain in Lisbon",
					Category:         "other",
					ResolutionDate:   "2026-12-01",
					ResolutionSource: "https://weather.example",
					Outcomes:         []string{"Yes", "No"},
				})
			},
			function: "create_market",
			args: []any{"Will it rain?", "Rain in Lisbon", "other", "2026-12-01",
				"https://weather.example", []string{"Yes", "No"}, "0.01"},
		},
		{
			name: "place bet",
			call: func(ctx context.Context, s *MarketService) (common.Hash, error) {
				amt, err := domain.ParseEther("0.5")
				require.NoError(t, err)
				return s.PlaceBet(ctx, "market_1", "outcome_2", amt)
			},
			function: "place_bet",
			args:     []any{"market_1", "outcome_2"},
			value:    new(big.Int).Mul(big.NewInt(5), big.NewInt(1e17)),
		},
		{
			name: "resolve market",
			call: func(ctx context.Context, s *MarketService) (common.Hash, error) {
				return s.ResolveMarket(ctx, "market_1")
			},
			function: "resolve_market",
			args:     []any{"market_1"},
		},
		{
			name: "withdraw balance",
			call: func(ctx context.Context, s *MarketService) (common.Hash, error) {
				return s.WithdrawBalance(ctx)
			},
			function: "withdraw_balance",
		},
		{
			name: "create bet",
			call: func(ctx context.Context, s *MarketService) (common.Hash, error) {
				return s.CreateBet(ctx, "2026-05-01", "Lions", "Tigers", "Lions")
			},
			function: "create_bet",
			args:     []any{"2026-05-01", "Lions", "Tigers", "Lions"},
		},
		{
			name: "resolve bet",
			call: func(ctx context.Context, s *MarketService) (common.Hash, error) {
				return s.ResolveBet(ctx, "bet_3")
			},
			function: "resolve_bet",
			args:     []any{"bet_3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := &fakeNetwork{}
			pub := &recordingPublisher{}
			s, _ := newTestService(t, net, WithTxEvents(pub))

			hash, err := tt.call(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, common.HexToHash("0xbeef"), hash)

			require.Len(t, net.writes, 1)
			assert.Empty(t, net.reads)
			assert.Equal(t, 1, net.closed)

			req := net.writes[0]
			assert.Equal(t, testContract, req.Address)
			assert.Equal(t, tt.function, req.Function)
			assert.Equal(t, tt.args, req.Args)
			if tt.value == nil {
				assert.Nil(t, req.Value)
			} else {
				require.NotNil(t, req.Value)
				assert.Zero(t, tt.value.Cmp(req.Value))
			}

			require.Len(t, pub.events, 1)
			assert.Equal(t, tt.function, pub.events[0].Function)
			assert.Equal(t, hash.Hex(), pub.events[0].Hash)
		})
	}
}

func TestReadCalls(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		call     func(context.Context, *MarketService) (any, error)
		function string
		args     []any
		check    func(t *testing.T, got any)
	}{
		{
			name: "get markets",
			result: []any{map[string]any{
				"id": "market_1", "title": "T", "status": "active",
				"total_volume": "250",
				"outcomes": []any{map[string]any{
					"id": "outcome_1", "description": "Yes",
					"total_stakes": "250", "share_price": "500000000000000000",
				}},
			}},
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetMarkets(ctx, "", "")
			},
			function: "get_markets",
			args:     []any{"", ""},
			check: func(t *testing.T, got any) {
				ms := got.([]domain.Market)
				require.Len(t, ms, 1)
				assert.Equal(t, domain.MarketStatusActive, ms[0].Status)
				assert.Equal(t, "250", ms[0].TotalVolume.String())
				assert.Equal(t, "0.5", ms[0].Outcomes[0].SharePrice.Ether())
			},
		},
		{
			name:   "get market",
			result: map[string]any{"id": "market_7", "min_stake": "10000000000000000", "resolution_source": "src"},
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetMarket(ctx, "market_7")
			},
			function: "get_market",
			args:     []any{"market_7"},
			check: func(t *testing.T, got any) {
				m := got.(domain.Market)
				assert.Equal(t, "market_7", m.ID)
				assert.Equal(t, "0.01", m.MinStake.Ether())
				assert.Equal(t, "src", m.ResolutionSource)
			},
		},
		{
			name:   "get user positions",
			result: []any{map[string]any{"market_id": "market_1", "shares": "3", "market_status": "resolved"}},
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetUserPositions(ctx, "")
			},
			function: "get_user_positions",
			args:     []any{""},
			check: func(t *testing.T, got any) {
				ps := got.([]domain.Position)
				require.Len(t, ps, 1)
				assert.Equal(t, "3", ps[0].Shares.String())
				assert.Equal(t, domain.MarketStatusResolved, ps[0].MarketStatus)
			},
		},
		{
			name:   "get user balance",
			result: "1200",
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetUserBalance(ctx, "0xabc")
			},
			function: "get_user_balance",
			args:     []any{"0xabc"},
			check: func(t *testing.T, got any) {
				assert.Equal(t, "1200", got)
			},
		},
		{
			name: "get trending markets",
			result: []any{map[string]any{
				"id": "market_2", "total_volume": big.NewInt(900), "outcomes_count": big.NewInt(3),
			}},
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetTrendingMarkets(ctx)
			},
			function: "get_trending_markets",
			check: func(t *testing.T, got any) {
				tm := got.([]domain.TrendingMarket)
				require.Len(t, tm, 1)
				assert.Equal(t, "900", tm[0].TotalVolume.String())
				assert.Equal(t, 3, tm[0].OutcomesCount)
			},
		},
		{
			name:   "get bets",
			result: []any{map[string]any{"id": "bet_1"}},
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetBets(ctx)
			},
			function: "get_bets",
			check: func(t *testing.T, got any) {
				assert.JSONEq(t, `[{"id":"bet_1"}]`, string(got.(json.RawMessage)))
			},
		},
		{
			name:   "get points",
			result: map[string]any{"0xabc": big.NewInt(3)},
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetPoints(ctx)
			},
			function: "get_points",
			check: func(t *testing.T, got any) {
				assert.JSONEq(t, `{"0xabc":3}`, string(got.(json.RawMessage)))
			},
		},
		{
			name:   "get player points",
			result: big.NewInt(5),
			call: func(ctx context.Context, s *MarketService) (any, error) {
				return s.GetPlayerPoints(ctx, "0xabc")
			},
			function: "get_player_points",
			args:     []any{"0xabc"},
			check: func(t *testing.T, got any) {
				assert.JSONEq(t, `5`, string(got.(json.RawMessage)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := &fakeNetwork{result: tt.result}
			s, _ := newTestService(t, net)

			got, err := tt.call(context.Background(), s)
			require.NoError(t, err)

			require.Len(t, net.reads, 1)
			assert.Empty(t, net.writes)
			req := net.reads[0]
			assert.Equal(t, testContract, req.Address)
			assert.Equal(t, tt.function, req.Function)
			assert.Equal(t, tt.args, req.Args)
			tt.check(t, got)
		})
	}
}

func TestRemoteErrorPropagates(t *testing.T) {
	remote := errors.New("execution reverted: Market not found")
	net := &fakeNetwork{err: remote}
	s, _ := newTestService(t, net)

	_, err := s.GetMarket(context.Background(), "market_404")
	assert.ErrorIs(t, err, remote)
	_, err = s.ResolveMarket(context.Background(), "market_404")
	assert.ErrorIs(t, err, remote)
	assert.Len(t, net.reads, 1)
	assert.Len(t, net.writes, 1)
}

func TestPlaceBetRejectsNegativeAmount(t *testing.T) {
	net := &fakeNetwork{}
	s, _ := newTestService(t, net)

	_, err := s.PlaceBet(context.Background(), "market_1", "outcome_1", domain.NewWei(big.NewInt(-1)))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Empty(t, net.writes)
}

func TestMarketInputValidation(t *testing.T) {
	net := &fakeNetwork{result: []any{}}
	s, _ := newTestService(t, net)
	ctx := context.Background()

	_, err := s.CreateMarket(ctx, domain.MarketInput{Title: "T", Outcomes: []string{"Yes", "No"}})
	require.NoError(t, err)
	require.Len(t, net.writes, 1)
	assert.Equal(t, domain.DefaultCategory, net.writes[0].Args[2])

	_, err = s.CreateMarket(ctx, domain.MarketInput{Title: "T", Category: "general"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Len(t, net.writes, 1)

	_, err = s.GetMarkets(ctx, "", "closed")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = s.GetMarkets(ctx, "", "RESOLVED")
	require.NoError(t, err)
	require.Len(t, net.reads, 1)
	assert.Equal(t, []any{"", "resolved"}, net.reads[0].Args)
}

func TestNoAccount(t *testing.T) {
	net := &fakeNetwork{result: []any{}}
	s, accounts := newTestService(t, net)
	accounts.acct = nil
	accounts.err = domain.ErrNoAccount

	_, err := s.WithdrawBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoAccount)
	assert.Empty(t, net.writes)

	// reads proceed without a sender
	ms, err := s.GetMarkets(context.Background(), "crypto", "active")
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.Nil(t, net.account)
}

func TestNoContract(t *testing.T) {
	net := &fakeNetwork{}
	s, _ := newTestService(t, net)
	s.binding.Contract = common.Address{}

	_, err := s.GetTrendingMarkets(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoContract)
	_, err = s.WithdrawBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoContract)
}

func TestCreateAccount(t *testing.T) {
	s, accounts := newTestService(t, &fakeNetwork{})
	addr, err := s.CreateAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts.acct.Address(), addr)
	assert.Equal(t, 1, accounts.created)
}
