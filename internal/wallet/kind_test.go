package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/wallet"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  wallet.Kind
	}{
		{"injected", wallet.KindInjected},
		{"MetaMask", wallet.KindInjected},
		{" walletconnect ", wallet.KindWalletConnect},
		{"coinbase", wallet.KindCoinbase},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := wallet.ParseKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind_Unknown(t *testing.T) {
	t.Parallel()

	_, err := wallet.ParseKind("metamsk")
	require.ErrorIs(t, err, linkerr.ErrInvalidInput)
	assert.Equal(t, `Invalid input: unsupported wallet kind "metamsk". Did you mean metamask?`, linkerr.UserMessage(err))

	_, err = wallet.ParseKind("ledger-hardware")
	require.ErrorIs(t, err, linkerr.ErrInvalidInput)
	assert.NotContains(t, linkerr.UserMessage(err), "Did you mean")
}

func TestKind_Supported(t *testing.T) {
	t.Parallel()
	assert.True(t, wallet.KindInjected.Supported())
	assert.False(t, wallet.KindWalletConnect.Supported())
	assert.False(t, wallet.KindCoinbase.Supported())
	assert.Len(t, wallet.KnownKinds(), 3)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	candidates := []string{"mainnet", "sepolia", "localhost"}
	assert.Equal(t, "sepolia", wallet.Suggest("sepolai", candidates))
	assert.Equal(t, "localhost", wallet.Suggest("LOCALHST", candidates))
	assert.Empty(t, wallet.Suggest("arbitrum-one", candidates))
	assert.Empty(t, wallet.Suggest("", candidates))
}
