package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GENMARKET_ACCOUNT_PATH", filepath.Join(dir, "account"))
	t.Setenv("GENMARKET_DEPLOY_RECORD_PATH", filepath.Join(dir, "deployed_contract.json"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "missing.toml"), "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestParseTxHash(t *testing.T) {
	h, err := parseTxHash("0x" + common.Bytes2Hex(common.HexToHash("0x01").Bytes()))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x01"), h)

	_, err = parseTxHash("0x01")
	assert.Error(t, err)
}

func TestAccountCommands(t *testing.T) {
	out, err := execute(t, "account", "import", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.Contains(t, out, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
}

func TestTxStatusRejectsBadHash(t *testing.T) {
	_, err := execute(t, "tx", "status", "0x12")
	assert.ErrorContains(t, err, "invalid transaction hash")
}

func TestBetNeedsAmount(t *testing.T) {
	_, err := execute(t, "market", "bet", "market_1", "outcome_1")
	assert.Error(t, err)
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	t.Setenv("GENLAYER_PRIVATE_KEY", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, `"PrivateKey": "***"`)
	assert.NotContains(t, out, "4c0883a6")
}

func TestRunExitStatus(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GENMARKET_ACCOUNT_PATH", filepath.Join(dir, "account"))
	base := []string{"--config", filepath.Join(dir, "missing.toml"), "--log-level", "error"}

	var stderr bytes.Buffer
	rootCmd.SetOut(&bytes.Buffer{})
	code := run(context.Background(), append(base, "tx", "status", "0x12"), &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "error: ")
	assert.Contains(t, stderr.String(), "invalid transaction hash")

	stderr.Reset()
	code = run(context.Background(), append(base, "account", "create"), &stderr)
	assert.Equal(t, 0, code)
	assert.Empty(t, stderr.String())
}
