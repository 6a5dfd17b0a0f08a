package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage")

	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.GetItem(ctx, "accountPrivateKey")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.SetItem(ctx, "accountPrivateKey", "0xabc"))
	require.NoError(t, s.SetItem(ctx, "accountPrivateKey", "0xdef"))
	v, err := s.GetItem(ctx, "accountPrivateKey")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", v)
	require.NoError(t, s.Close())

	// survives reopen
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, err = s.GetItem(ctx, "accountPrivateKey")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", v)

	require.NoError(t, s.RemoveItem(ctx, "accountPrivateKey"))
	require.NoError(t, s.RemoveItem(ctx, "accountPrivateKey"))
	_, err = s.GetItem(ctx, "accountPrivateKey")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
