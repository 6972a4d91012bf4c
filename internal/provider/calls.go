package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// RequestAccounts asks the provider to expose its accounts, prompting the user when needed.
func RequestAccounts(ctx context.Context, p Provider) ([]string, error) {
	return accounts(ctx, p, MethodRequestAccounts)
}

// Accounts returns the accounts the provider currently exposes without prompting.
func Accounts(ctx context.Context, p Provider) ([]string, error) {
	return accounts(ctx, p, MethodAccounts)
}

func accounts(ctx context.Context, p Provider, method string) ([]string, error) {
	raw, err := p.Request(ctx, RequestArguments{Method: method})
	if err != nil {
		return nil, err
	}
	return DecodeAccounts(raw)
}

// DecodeAccounts parses an accounts result and validates every address.
// A null result decodes to an empty list.
func DecodeAccounts(raw json.RawMessage) ([]string, error) {
	var list []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("parsing accounts: %w", err)
		}
	}

	for _, a := range list {
		if !common.IsHexAddress(a) {
			return nil, linkerr.WithDetails(linkerr.ErrInvalidAddress, map[string]string{"address": a})
		}
	}
	return list, nil
}

// ChainID returns the provider's current chain ID in canonical hex form.
func ChainID(ctx context.Context, p Provider) (string, error) {
	raw, err := p.Request(ctx, RequestArguments{Method: MethodChainID})
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("parsing chain ID: %w", err)
	}
	return NormalizeChainID(id)
}

// NormalizeChainID parses a hex chain ID and re-encodes it without leading zeros.
func NormalizeChainID(id string) (string, error) {
	n, err := hexutil.DecodeUint64(strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return "", linkerr.WithDetails(linkerr.ErrInvalidChainID, map[string]string{"chain_id": id})
	}
	return hexutil.EncodeUint64(n), nil
}

// SwitchChain asks the provider to switch to chainID.
func SwitchChain(ctx context.Context, p Provider, chainID string) error {
	_, err := p.Request(ctx, RequestArguments{
		Method: MethodSwitchChain,
		Params: []any{map[string]string{"chainId": chainID}},
	})
	return err
}

// NativeCurrency is the currency of a chain added to a wallet.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Ether is the native currency of Ethereum networks.
var Ether = NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: 18} //nolint:gochecknoglobals // read-only value

// ChainParameters describes a chain the wallet does not know yet (EIP-3085).
type ChainParameters struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// AddChain asks the provider to add the chain described by params.
func AddChain(ctx context.Context, p Provider, params ChainParameters) error {
	_, err := p.Request(ctx, RequestArguments{
		Method: MethodAddChain,
		Params: []any{params},
	})
	return err
}

// IsUnrecognizedChain reports whether err says the wallet does not know the chain (4902).
func IsUnrecognizedChain(err error) bool {
	rerr, ok := AsRPCError(err)
	return ok && rerr.Code == CodeUnrecognizedChain
}

// RevokePermissions asks the provider to forget the account permission granted to this client.
func RevokePermissions(ctx context.Context, p Provider) error {
	_, err := p.Request(ctx, RequestArguments{
		Method: MethodRevokePermissions,
		Params: []any{map[string]any{"eth_accounts": map[string]any{}}},
	})
	return err
}
