package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// weiPerEther is 10^18.
var weiPerEther = decimal.New(1, 18)

// Wei is an integer amount in the chain's smallest unit. Contract views render
// u256 values as decimal strings in some places and as raw integers in others,
// so Wei accepts both on decode and always encodes as a decimal string.
type Wei struct {
	v *big.Int
}

// NewWei wraps x. A nil x is treated as zero.
func NewWei(x *big.Int) Wei {
	if x == nil {
		return Wei{}
	}
	return Wei{v: new(big.Int).Set(x)}
}

// BigInt returns a copy of the underlying integer.
func (w Wei) BigInt() *big.Int {
	if w.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(w.v)
}

func (w Wei) String() string {
	if w.v == nil {
		return "0"
	}
	return w.v.String()
}

// IsZero reports whether the amount is zero.
func (w Wei) IsZero() bool {
	return w.v == nil || w.v.Sign() == 0
}

func (w Wei) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *Wei) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		w.v = nil
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("wei: %w", err)
		}
		s = unq
	}
	if s == "" {
		w.v = nil
		return nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("wei: %w: %q", ErrInvalidAmount, s)
	}
	w.v = n
	return nil
}

// Sign returns -1, 0 or +1.
func (w Wei) Sign() int {
	if w.v == nil {
		return 0
	}
	return w.v.Sign()
}

// Ether renders the amount in ether, trimming trailing zeros.
func (w Wei) Ether() string {
	return decimal.NewFromBigInt(w.BigInt(), 0).Div(weiPerEther).String()
}

// ParseWei parses a non-negative integer amount of wei.
func ParseWei(s string) (Wei, error) {
	s = strings.TrimSpace(s)
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return Wei{}, fmt.Errorf("%w: %q is not a non-negative integer wei amount", ErrInvalidAmount, s)
	}
	return Wei{v: n}, nil
}

// ParseEther converts a decimal ether amount such as "0.25" to wei. Amounts
// finer than one wei are rejected.
func ParseEther(s string) (Wei, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Wei{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return Wei{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	wei := d.Mul(weiPerEther)
	if !wei.Equal(wei.Truncate(0)) {
		return Wei{}, fmt.Errorf("%w: %q has more than 18 decimals", ErrInvalidAmount, s)
	}
	return Wei{v: wei.BigInt()}, nil
}
