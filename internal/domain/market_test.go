package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCategory(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, ValidCategory(c), c)
	}
	assert.True(t, ValidCategory(DefaultCategory))
	assert.False(t, ValidCategory("general"))
	assert.False(t, ValidCategory("Sports"))
}

func TestParseMarketStatus(t *testing.T) {
	st, err := ParseMarketStatus("Resolved")
	require.NoError(t, err)
	assert.Equal(t, MarketStatusResolved, st)

	st, err = ParseMarketStatus("active")
	require.NoError(t, err)
	assert.Equal(t, MarketStatusActive, st)

	_, err = ParseMarketStatus("closed")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidateMarketFilter(t *testing.T) {
	assert.NoError(t, ValidateMarketFilter("", ""))
	assert.NoError(t, ValidateMarketFilter("crypto", "resolved"))
	assert.ErrorIs(t, ValidateMarketFilter("weather", ""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateMarketFilter("", "pending"), ErrInvalidInput)
}
