package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
	"github.com/alanyoungcy/genmarket/internal/metrics"
)

// DefaultMinStakeEth is create_market's default minimum stake.
const DefaultMinStakeEth = "0.01"

// MarketService is the contract call façade. Every method resolves an
// account, dials a fresh client for the binding and issues exactly one
// remote call. Nothing is cached, batched or retried, and remote errors are
// returned as they come.
type MarketService struct {
	binding  Binding
	accounts AccountResolver
	dial     Dialer
	events   domain.TxEventPublisher
	audit    domain.AuditStore
	logger   *slog.Logger
}

// MarketServiceOption configures optional MarketService collaborators.
type MarketServiceOption func(*MarketService)

// WithTxEvents publishes a TxEvent after every submitted write.
func WithTxEvents(p domain.TxEventPublisher) MarketServiceOption {
	return func(s *MarketService) { s.events = p }
}

// WithAudit records every submitted write in the audit log.
func WithAudit(a domain.AuditStore) MarketServiceOption {
	return func(s *MarketService) { s.audit = a }
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	binding Binding,
	accounts AccountResolver,
	dial Dialer,
	logger *slog.Logger,
	opts ...MarketServiceOption,
) *MarketService {
	s := &MarketService{
		binding:  binding,
		accounts: accounts,
		dial:     dial,
		logger:   logger.With(slog.String("component", "market_service")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Binding returns the network and contract the service targets.
func (s *MarketService) Binding() Binding {
	return s.binding
}

// CreateAccount generates and persists a new account and returns its
// address.
func (s *MarketService) CreateAccount(ctx context.Context) (common.Address, error) {
	acct, err := s.accounts.Create(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return acct.Address(), nil
}

// CreateMarket submits create_market. An empty MinStakeEth uses the
// contract default of 0.01 and an empty Category becomes "other".
func (s *MarketService) CreateMarket(ctx context.Context, in domain.MarketInput) (common.Hash, error) {
	minStake := in.MinStakeEth
	if minStake == "" {
		minStake = DefaultMinStakeEth
	}
	category := in.Category
	if category == "" {
		category = domain.DefaultCategory
	}
	if !domain.ValidCategory(category) {
		return common.Hash{}, fmt.Errorf("market_service: create_market: %w: unknown category %q", domain.ErrInvalidInput, category)
	}
	outcomes := in.Outcomes
	if outcomes == nil {
		outcomes = []string{}
	}
	return s.write(ctx, "create_market", []any{
		in.Title,
		in.Description,
		category,
		in.ResolutionDate,
		in.ResolutionSource,
		outcomes,
		minStake,
	}, nil)
}

// PlaceBet stakes amount on outcomeID. The amount travels as the
// transaction value, not as an argument.
func (s *MarketService) PlaceBet(ctx context.Context, marketID, outcomeID string, amount domain.Wei) (common.Hash, error) {
	if amount.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("market_service: place_bet: %w: negative amount", domain.ErrInvalidAmount)
	}
	return s.write(ctx, "place_bet", []any{marketID, outcomeID}, amount.BigInt())
}

// ResolveMarket asks the contract to resolve marketID.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID string) (common.Hash, error) {
	return s.write(ctx, "resolve_market", []any{marketID}, nil)
}

// WithdrawBalance withdraws the caller's winnings.
func (s *MarketService) WithdrawBalance(ctx context.Context) (common.Hash, error) {
	return s.write(ctx, "withdraw_balance", nil, nil)
}

// GetMarkets lists markets, optionally filtered. Empty filters match all.
func (s *MarketService) GetMarkets(ctx context.Context, category, status string) ([]domain.Market, error) {
	if err := domain.ValidateMarketFilter(category, status); err != nil {
		return nil, fmt.Errorf("market_service: get_markets: %w", err)
	}
	var out []domain.Market
	if err := s.readInto(ctx, "get_markets", []any{category, strings.ToLower(status)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMarket returns one market.
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	var out domain.Market
	if err := s.readInto(ctx, "get_market", []any{marketID}, &out); err != nil {
		return domain.Market{}, err
	}
	return out, nil
}

// GetUserPositions returns the positions of addr, or of the caller when addr
// is empty.
func (s *MarketService) GetUserPositions(ctx context.Context, addr string) ([]domain.Position, error) {
	var out []domain.Position
	if err := s.readInto(ctx, "get_user_positions", []any{addr}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserBalance returns the withdrawable balance of addr (the caller when
// empty) in wei, as the contract's decimal string.
func (s *MarketService) GetUserBalance(ctx context.Context, addr string) (string, error) {
	v, err := s.read(ctx, "get_user_balance", []any{addr})
	if err != nil {
		return "", err
	}
	switch b := v.(type) {
	case string:
		return b, nil
	case *big.Int:
		return b.String(), nil
	default:
		return "", fmt.Errorf("market_service: get_user_balance: unexpected result %T", v)
	}
}

// GetTrendingMarkets returns the contract's top active markets by volume.
func (s *MarketService) GetTrendingMarkets(ctx context.Context) ([]domain.TrendingMarket, error) {
	var out []domain.TrendingMarket
	if err := s.readInto(ctx, "get_trending_markets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBet submits the legacy create_bet.
func (s *MarketService) CreateBet(ctx context.Context, gameDate, team1, team2, predictedWinner string) (common.Hash, error) {
	return s.write(ctx, "create_bet", []any{gameDate, team1, team2, predictedWinner}, nil)
}

// ResolveBet submits the legacy resolve_bet.
func (s *MarketService) ResolveBet(ctx context.Context, betID string) (common.Hash, error) {
	return s.write(ctx, "resolve_bet", []any{betID}, nil)
}

// GetBets returns the legacy bets view as JSON.
func (s *MarketService) GetBets(ctx context.Context) (json.RawMessage, error) {
	return s.readRaw(ctx, "get_bets", nil)
}

// GetPoints returns the legacy points table as JSON.
func (s *MarketService) GetPoints(ctx context.Context) (json.RawMessage, error) {
	return s.readRaw(ctx, "get_points", nil)
}

// GetPlayerPoints returns the legacy points of addr as JSON.
func (s *MarketService) GetPlayerPoints(ctx context.Context, addr string) (json.RawMessage, error) {
	return s.readRaw(ctx, "get_player_points", []any{addr})
}

func (s *MarketService) contract() (common.Address, error) {
	if s.binding.Contract == (common.Address{}) {
		return common.Address{}, fmt.Errorf("market_service: %w", domain.ErrNoContract)
	}
	return s.binding.Contract, nil
}

func (s *MarketService) write(ctx context.Context, function string, args []any, value *big.Int) (common.Hash, error) {
	contract, err := s.contract()
	if err != nil {
		return common.Hash{}, err
	}
	acct, err := s.accounts.Resolve(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	client, err := s.dial(ctx, s.binding.Chain, acct)
	if err != nil {
		return common.Hash{}, err
	}
	defer client.Close()

	start := time.Now()
	hash, err := client.WriteContract(ctx, genlayer.WriteRequest{
		Address:  contract,
		Function: function,
		Args:     args,
		Value:    value,
	})
	metrics.RecordContractCall(function, "write", time.Since(start), err)
	if err != nil {
		return common.Hash{}, err
	}

	s.logger.InfoContext(ctx, "transaction submitted",
		slog.String("function", function),
		slog.String("hash", hash.Hex()),
		slog.String("sender", acct.Address().Hex()),
	)
	s.recordWrite(ctx, function, hash, acct, value)
	return hash, nil
}

// recordWrite publishes and audits a submitted write. Both are best-effort.
func (s *MarketService) recordWrite(ctx context.Context, function string, hash common.Hash, acct *crypto.Signer, value *big.Int) {
	ev := domain.TxEvent{
		Function: function,
		Hash:     hash.Hex(),
		Sender:   acct.Address().Hex(),
		Contract: s.binding.Contract.Hex(),
		At:       time.Now().UTC(),
	}
	if s.events != nil {
		s.events.PublishTx(ctx, ev)
	}
	if s.audit != nil {
		detail := map[string]any{
			"function": ev.Function,
			"hash":     ev.Hash,
			"sender":   ev.Sender,
			"contract": ev.Contract,
		}
		if value != nil {
			detail["value"] = value.String()
		}
		if err := s.audit.Log(ctx, "tx.submitted", detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("hash", ev.Hash),
				slog.String("error", err.Error()),
			)
		}
	}
}

// read issues a view call. Reads fall back to the zero sender when no
// account is stored and auto-provisioning is off.
func (s *MarketService) read(ctx context.Context, function string, args []any) (any, error) {
	contract, err := s.contract()
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.Resolve(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoAccount) {
		return nil, err
	}
	client, err := s.dial(ctx, s.binding.Chain, acct)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	start := time.Now()
	v, err := client.ReadContract(ctx, genlayer.ReadRequest{
		Address:  contract,
		Function: function,
		Args:     args,
		State:    s.binding.ReadState,
	})
	metrics.RecordContractCall(function, "read", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *MarketService) readRaw(ctx context.Context, function string, args []any) (json.RawMessage, error) {
	v, err := s.read(ctx, function, args)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("market_service: %s: encode result: %w", function, err)
	}
	return b, nil
}

// readInto decodes a view result into out through its JSON form. Integers
// decoded from calldata become JSON numbers and addresses hex strings, which
// domain.Wei and string fields accept.
func (s *MarketService) readInto(ctx context.Context, function string, args []any, out any) error {
	raw, err := s.readRaw(ctx, function, args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("market_service: %s: decode result: %w", function, err)
	}
	return nil
}
