package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func TestNewSigner(t *testing.T) {
	for _, in := range []string{testKey, "0x" + testKey, " 0x" + testKey + "\n"} {
		s, err := NewSigner(in)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), s.Address())
		assert.Equal(t, "0x"+testKey, s.PrivateKeyHex())
	}

	_, err := NewSigner("not-hex")
	assert.Error(t, err)
}

func TestGenerateSigner(t *testing.T) {
	a, err := GenerateSigner()
	require.NoError(t, err)
	b, err := GenerateSigner()
	require.NoError(t, err)
	assert.NotEqual(t, a.Address(), b.Address())

	restored, err := NewSigner(a.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, a.Address(), restored.Address())
}

func TestSignTx(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(61999)
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    7,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(0),
	})

	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewEIP155Signer(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
	assert.Zero(t, chainID.Cmp(signed.ChainId()))
}

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(blob))
	assert.False(t, IsEncrypted([]byte("0x"+testKey)))

	key, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "0x"+testKey, key)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)

	_, err = EncryptKey(testKey, "")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	t.Run("raw key without prefix", func(t *testing.T) {
		s, err := LoadKey(KeySource{RawPrivateKey: testKey})
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), s.Address())
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptKey(testKey, "pw")
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		s, err := LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "pw"})
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), s.Address())
	})

	t.Run("no source", func(t *testing.T) {
		_, err := LoadKey(KeySource{})
		assert.ErrorIs(t, err, ErrNoKeySource)
	})
}
