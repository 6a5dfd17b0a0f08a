package genlayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer/calldata"
)

// ErrNoAccount is returned by write operations on a client without account.
var ErrNoAccount = fmt.Errorf("genlayer: %w", domain.ErrNoAccount)

// State variants accepted by gen_call.
const (
	StateLatestNonFinal = "latest-nonfinal"
	StateLatestFinal    = "latest-final"
)

// Polling defaults used when WaitOptions leaves them unset.
const (
	DefaultWaitInterval = 3 * time.Second
	DefaultWaitRetries  = 10
)

// Client talks to one chain on behalf of an optional account.
type Client struct {
	chain   Chain
	rpc     *rpc.Client
	account *crypto.Signer
	logger  *slog.Logger

	mu        sync.Mutex
	consensus *ConsensusContract
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Dial creates a client for chain. HTTP endpoints connect lazily, so Dial is
// cheap enough to call per operation.
func Dial(ctx context.Context, chain Chain, account *crypto.Signer, opts ...Option) (*Client, error) {
	rc, err := rpc.DialOptions(ctx, chain.RPCURL, rpc.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("genlayer: dial %s: %w", chain.RPCURL, err)
	}
	return NewClient(rc, chain, account, opts...), nil
}

// NewClient wraps an existing RPC client.
func NewClient(rc *rpc.Client, chain Chain, account *crypto.Signer, opts ...Option) *Client {
	c := &Client{
		chain:   chain,
		rpc:     rc,
		account: account,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(slog.String("component", "genlayer"))
	if chain.ConsensusMainAddress != (common.Address{}) {
		c.consensus = &ConsensusContract{Address: chain.ConsensusMainAddress, ABI: defaultConsensusABI()}
	}
	return c
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Chain returns the chain the client is bound to.
func (c *Client) Chain() Chain {
	return c.chain
}

func (c *Client) consensusContract() *ConsensusContract {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consensus
}

// InitializeConsensusSmartContract discovers the consensus contract address
// and ABI. It is a no-op when already known unless force is set.
func (c *Client) InitializeConsensusSmartContract(ctx context.Context, force bool) error {
	c.mu.Lock()
	known := c.consensus != nil
	c.mu.Unlock()
	if known && !force {
		return nil
	}
	if !c.chain.Studio {
		if known {
			return nil
		}
		return fmt.Errorf("genlayer: chain %q has no consensus contract address", c.chain.Name)
	}

	var res struct {
		Address common.Address  `json:"address"`
		ABI     json.RawMessage `json:"abi"`
	}
	if err := c.rpc.CallContext(ctx, &res, "sim_getConsensusContract", "ConsensusMain"); err != nil {
		return fmt.Errorf("genlayer: get consensus contract: %w", err)
	}

	parsed := defaultConsensusABI()
	if len(res.ABI) > 0 && !bytes.Equal(res.ABI, []byte("null")) {
		a, err := abi.JSON(bytes.NewReader(res.ABI))
		if err != nil {
			return fmt.Errorf("genlayer: parse consensus ABI: %w", err)
		}
		if _, ok := a.Methods["addTransaction"]; ok {
			parsed = a
		}
	}

	c.mu.Lock()
	c.consensus = &ConsensusContract{Address: res.Address, ABI: parsed}
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "consensus contract initialized",
		slog.String("address", res.Address.Hex()),
	)
	return nil
}

// ReadRequest describes a view call.
type ReadRequest struct {
	Address  common.Address
	Function string
	Args     []any
	Kwargs   map[string]any
	// State selects latest-nonfinal (default) or latest-final state.
	State      string
	LeaderOnly bool
}

// ReadContract calls a view method and returns the decoded result.
func (c *Client) ReadContract(ctx context.Context, req ReadRequest) (any, error) {
	enc, err := encodeCall(req.Function, req.Args, req.Kwargs)
	if err != nil {
		return nil, err
	}
	data, err := serialize(enc, req.LeaderOnly)
	if err != nil {
		return nil, err
	}

	var from common.Address
	if c.account != nil {
		from = c.account.Address()
	}
	state := req.State
	if state == "" {
		state = StateLatestNonFinal
	}

	params := map[string]any{
		"type":                     "read",
		"to":                       req.Address,
		"from":                     from,
		"data":                     hexutil.Encode(data),
		"transaction_hash_variant": state,
	}

	var result string
	if err := c.rpc.CallContext(ctx, &result, "gen_call", params); err != nil {
		return nil, fmt.Errorf("genlayer: %s: %w", req.Function, err)
	}

	raw, err := hexutil.Decode("0x" + strings.TrimPrefix(result, "0x"))
	if err != nil {
		return nil, fmt.Errorf("genlayer: %s: decode result hex: %w", req.Function, err)
	}
	v, err := calldata.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("genlayer: %s: %w", req.Function, err)
	}
	return v, nil
}

// WriteRequest describes a state-mutating call.
type WriteRequest struct {
	Address    common.Address
	Function   string
	Args       []any
	Kwargs     map[string]any
	Value      *big.Int
	LeaderOnly bool
}

// WriteContract submits a signed transaction invoking a contract method and
// returns its hash.
func (c *Client) WriteContract(ctx context.Context, req WriteRequest) (common.Hash, error) {
	enc, err := encodeCall(req.Function, req.Args, req.Kwargs)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := serialize(enc, req.LeaderOnly)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := c.addTransaction(ctx, req.Address, data, req.Value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("genlayer: %s: %w", req.Function, err)
	}
	return hash, nil
}

// DeployRequest describes a contract deployment.
type DeployRequest struct {
	Code       []byte
	Args       []any
	Kwargs     map[string]any
	LeaderOnly bool
}

// DeployContract submits a deployment transaction and returns its hash.
func (c *Client) DeployContract(ctx context.Context, req DeployRequest) (common.Hash, error) {
	enc, err := encodeCall("", req.Args, req.Kwargs)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := serialize(req.Code, enc, req.LeaderOnly)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := c.addTransaction(ctx, common.Address{}, data, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("genlayer: deploy: %w", err)
	}
	return hash, nil
}

// GetTransaction fetches a transaction by hash. It returns
// domain.ErrTransactionNotFound when the node does not know the hash yet.
func (c *Client) GetTransaction(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("genlayer: get transaction %s: %w", hash.Hex(), err)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("genlayer: %s: %w", hash.Hex(), domain.ErrTransactionNotFound)
	}

	var r domain.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("genlayer: get transaction %s: %w", hash.Hex(), err)
	}
	if r.Hash == "" {
		r.Hash = hash.Hex()
	}
	return &r, nil
}

// PollPolicy controls the spacing of status polls. A zero Multiplier keeps
// the interval fixed.
type PollPolicy struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
}

func (p PollPolicy) next(cur time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return cur
	}
	n := time.Duration(float64(cur) * p.Multiplier)
	if p.MaxInterval > 0 {
		n = min(n, p.MaxInterval)
	}
	return n
}

// Span is the total time WaitForTransactionReceipt sleeps between polls when
// all retries are spent. Unset fields take the client defaults.
func (p PollPolicy) Span(retries int) time.Duration {
	if retries <= 0 {
		retries = DefaultWaitRetries
	}
	d := p.Interval
	if d <= 0 {
		d = DefaultWaitInterval
	}
	var total time.Duration
	for i := 0; i < retries; i++ {
		total += d
		d = p.next(d)
	}
	return total
}

// WaitOptions configures WaitForTransactionReceipt.
type WaitOptions struct {
	Hash    common.Hash
	Status  domain.TransactionStatus
	Retries int
	Poll    PollPolicy
}

// WaitForTransactionReceipt polls until the transaction reaches opts.Status,
// performing at most Retries polls after the first. A hash the node does not
// know yet, or a status this client does not recognise, counts as not
// reached. Transport errors abort the wait.
func (c *Client) WaitForTransactionReceipt(ctx context.Context, opts WaitOptions) (*domain.Receipt, error) {
	want := opts.Status
	if want == "" {
		want = domain.TxStatusAccepted
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultWaitRetries
	}
	interval := opts.Poll.Interval
	if interval <= 0 {
		interval = DefaultWaitInterval
	}

	var last domain.TransactionStatus
	for attempt := 0; ; attempt++ {
		r, err := c.GetTransaction(ctx, opts.Hash)
		switch {
		case err == nil:
			last = r.StatusName
			if r.StatusName.Satisfies(want) {
				return r, nil
			}
			if !r.StatusName.Known() {
				c.logger.Debug("unrecognised transaction status",
					slog.String("hash", opts.Hash.Hex()),
					slog.String("status", string(r.StatusName)))
			}
		case errors.Is(err, domain.ErrTransactionNotFound):
		default:
			return nil, err
		}

		if attempt >= retries {
			if last == "" {
				last = "unknown"
			}
			return nil, fmt.Errorf("genlayer: %s is %s, wanted %s after %d retries: %w",
				opts.Hash.Hex(), last, want, retries, domain.ErrFinalityTimeout)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		interval = opts.Poll.next(interval)
	}
}
