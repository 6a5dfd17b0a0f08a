package calldata

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name string
		in   any
		want []byte
	}{
		{"null", nil, []byte{0x00}},
		{"false", false, []byte{0x08}},
		{"true", true, []byte{0x10}},
		{"zero", 0, []byte{0x01}},
		{"small int", 1, []byte{0x09}},
		{"multi byte int", 16, []byte{0x81, 0x01}},
		{"minus one", -1, []byte{0x02}},
		{"minus two", int64(-2), []byte{0x0a}},
		{"big int", big.NewInt(1), []byte{0x09}},
		{"string", "ab", []byte{0x14, 'a', 'b'}},
		{"empty string", "", []byte{0x04}},
		{"bytes", []byte{1, 2}, []byte{0x13, 1, 2}},
		{"empty array", []any{}, []byte{0x05}},
		{"string slice", []string{"a"}, []byte{0x0d, 0x0c, 'a'}},
		{"address", addr, append([]byte{0x18}, addr.Bytes()...)},
		{
			"map keys sorted",
			map[string]any{"b": 1, "a": true},
			[]byte{0x16, 0x01, 'a', 0x10, 0x01, 'b', 0x09},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(map[int]string{1: "x"})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Encode(3.5)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestMakeCalldataObject(t *testing.T) {
	t.Run("method with args", func(t *testing.T) {
		obj := MakeCalldataObject("place_bet", []any{"m1", "o1"}, nil)
		assert.Equal(t, map[string]any{
			"method": "place_bet",
			"args":   []any{"m1", "o1"},
		}, obj)
	})

	t.Run("no args omits key", func(t *testing.T) {
		obj := MakeCalldataObject("withdraw_balance", []any{}, nil)
		assert.Equal(t, map[string]any{"method": "withdraw_balance"}, obj)
	})

	t.Run("deployment has no method", func(t *testing.T) {
		obj := MakeCalldataObject("", nil, map[string]any{"x": 1})
		_, hasMethod := obj["method"]
		assert.False(t, hasMethod)
		assert.Contains(t, obj, "kwargs")
	})
}

func TestDecodeRoundTrip(t *testing.T) {
	obj := MakeCalldataObject("create_market", []any{
		"Will it rain?",
		[]string{"Yes", "No"},
		"0.01",
		int64(-5),
		nil,
	}, nil)

	enc, err := Encode(obj)
	require.NoError(t, err)

	dec, err := Decode(enc)
	require.NoError(t, err)

	m, ok := dec.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "create_market", m["method"])

	args, ok := m["args"].([]any)
	require.True(t, ok)
	require.Len(t, args, 5)
	assert.Equal(t, "Will it rain?", args[0])
	assert.Equal(t, []any{"Yes", "No"}, args[1])
	assert.Equal(t, "0.01", args[2])
	assert.Equal(t, 0, big.NewInt(-5).Cmp(args[3].(*big.Int)))
	assert.Nil(t, args[4])
}

func TestDecodeAddressAndBytes(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	enc, err := Encode([]any{addr, []byte{9, 8, 7}, true})
	require.NoError(t, err)

	dec, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, []any{addr, []byte{9, 8, 7}, true}, dec)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("truncated string", func(t *testing.T) {
		_, err := Decode([]byte{0x14, 'a'})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("truncated uleb", func(t *testing.T) {
		_, err := Decode([]byte{0x81})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := Decode([]byte{0x09, 0x09})
		assert.ErrorIs(t, err, ErrTrailing)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := Decode([]byte{0x07})
		assert.Error(t, err)
	})
}
