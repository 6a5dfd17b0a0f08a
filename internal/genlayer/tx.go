package genlayer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/alanyoungcy/genmarket/internal/genlayer/calldata"
)

// consensusMainABI is used when the node does not return the consensus
// contract ABI.
const consensusMainABI = `[{
	"type": "function",
	"name": "addTransaction",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "_sender", "type": "address"},
		{"name": "_recipient", "type": "address"},
		{"name": "_numOfInitialValidators", "type": "uint256"},
		{"name": "_maxRotations", "type": "uint256"},
		{"name": "_txData", "type": "bytes"}
	],
	"outputs": []
}]`

// ConsensusContract is the contract every GenLayer transaction is routed
// through.
type ConsensusContract struct {
	Address common.Address
	ABI     abi.ABI
}

func defaultConsensusABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(consensusMainABI))
	if err != nil {
		panic(fmt.Sprintf("genlayer: parse built-in consensus ABI: %v", err))
	}
	return parsed
}

// serialize RLP-encodes the invocation payload. Booleans are encoded as a
// single 0x00/0x01 byte.
func serialize(parts ...any) ([]byte, error) {
	items := make([][]byte, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			items = append(items, v)
		case bool:
			if v {
				items = append(items, []byte{0x01})
			} else {
				items = append(items, []byte{0x00})
			}
		default:
			return nil, fmt.Errorf("genlayer: cannot serialize %T", p)
		}
	}
	return rlp.EncodeToBytes(items)
}

func encodeCall(method string, args []any, kwargs map[string]any) ([]byte, error) {
	enc, err := calldata.Encode(calldata.MakeCalldataObject(method, args, kwargs))
	if err != nil {
		return nil, fmt.Errorf("genlayer: encode calldata: %w", err)
	}
	return enc, nil
}

// packAddTransaction ABI-encodes the consensus call. Newer consensus
// contracts take a trailing validUntil argument, which is left at zero.
func (c *Client) packAddTransaction(cc *ConsensusContract, sender, recipient common.Address, txData []byte) ([]byte, error) {
	method, ok := cc.ABI.Methods["addTransaction"]
	if !ok {
		return nil, fmt.Errorf("genlayer: consensus ABI has no addTransaction")
	}

	args := []any{
		sender,
		recipient,
		big.NewInt(c.chain.DefaultValidators),
		big.NewInt(c.chain.DefaultMaxRotations),
		txData,
	}
	if len(method.Inputs) == 6 {
		args = append(args, big.NewInt(0))
	}

	input, err := cc.ABI.Pack("addTransaction", args...)
	if err != nil {
		return nil, fmt.Errorf("genlayer: pack addTransaction: %w", err)
	}
	return input, nil
}

// addTransaction submits txData to the consensus contract and returns the
// transaction hash reported by the node.
func (c *Client) addTransaction(ctx context.Context, recipient common.Address, txData []byte, value *big.Int) (common.Hash, error) {
	if c.account == nil {
		return common.Hash{}, ErrNoAccount
	}
	if err := c.InitializeConsensusSmartContract(ctx, false); err != nil {
		return common.Hash{}, err
	}
	cc := c.consensusContract()

	sender := c.account.Address()
	input, err := c.packAddTransaction(cc, sender, recipient, txData)
	if err != nil {
		return common.Hash{}, err
	}
	if value == nil {
		value = new(big.Int)
	}

	var nonce hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &nonce, "eth_getTransactionCount", sender, "pending"); err != nil {
		return common.Hash{}, fmt.Errorf("genlayer: get nonce: %w", err)
	}

	var gasPrice hexutil.Big
	if err := c.rpc.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return common.Hash{}, fmt.Errorf("genlayer: gas price: %w", err)
	}

	to := cc.Address
	gas := c.chain.DefaultGasLimit
	var estimated hexutil.Uint64
	msg := toCallArg(ethereum.CallMsg{From: sender, To: &to, Value: value, Data: input})
	if err := c.rpc.CallContext(ctx, &estimated, "eth_estimateGas", msg); err != nil {
		c.logger.DebugContext(ctx, "gas estimation failed, using default",
			slog.Uint64("gas", gas),
			slog.String("error", err.Error()),
		)
	} else if estimated > 0 {
		gas = uint64(estimated)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    uint64(nonce),
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice.ToInt(),
		Data:     input,
	})
	signed, err := c.account.SignTx(tx, big.NewInt(c.chain.ID))
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("genlayer: encode transaction: %w", err)
	}

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, fmt.Errorf("genlayer: send transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction submitted",
		slog.String("hash", hash.Hex()),
		slog.String("sender", sender.Hex()),
		slog.String("recipient", recipient.Hex()),
		slog.Uint64("nonce", uint64(nonce)),
	)
	return hash, nil
}

func toCallArg(msg ethereum.CallMsg) map[string]any {
	arg := map[string]any{
		"from": msg.From,
		"to":   msg.To,
	}
	if len(msg.Data) > 0 {
		arg["data"] = hexutil.Bytes(msg.Data)
	}
	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	return arg
}
