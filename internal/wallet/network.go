package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/walletlink/internal/provider"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Network is a chain the wallet can be switched to.
type Network struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	ChainID       string `json:"chain_id"`
	RPCURL        string `json:"rpc_url,omitempty"`
	BlockExplorer string `json:"block_explorer,omitempty"`
}

// ID returns the numeric chain ID.
func (n Network) ID() uint64 {
	id, _ := hexutil.DecodeUint64(n.ChainID)
	return id
}

// AddChainParameters describes n to a wallet that does not know the chain.
func (n Network) AddChainParameters() provider.ChainParameters {
	params := provider.ChainParameters{
		ChainID:        n.ChainID,
		ChainName:      n.Name,
		NativeCurrency: provider.Ether,
		RPCURLs:        []string{},
	}
	if n.RPCURL != "" {
		params.RPCURLs = append(params.RPCURLs, n.RPCURL)
	}
	if n.BlockExplorer != "" {
		params.BlockExplorerURLs = []string{n.BlockExplorer}
	}
	return params
}

// Network preset keys.
const (
	NetworkMainnet   = "mainnet"
	NetworkSepolia   = "sepolia"
	NetworkLocalhost = "localhost"
)

// DefaultNetworks returns the built-in network presets.
func DefaultNetworks() []Network {
	return []Network{
		{Key: NetworkMainnet, Name: "Ethereum Mainnet", ChainID: "0x1", RPCURL: "https://mainnet.infura.io/v3/", BlockExplorer: "https://etherscan.io"},
		{Key: NetworkSepolia, Name: "Sepolia Testnet", ChainID: "0xaa36a7", RPCURL: "https://sepolia.infura.io/v3/", BlockExplorer: "https://sepolia.etherscan.io"},
		{Key: NetworkLocalhost, Name: "Localhost 8545", ChainID: "0x7a69", RPCURL: "http://localhost:8545"},
	}
}

// Networks is an ordered set of known networks, addressable by key or chain ID.
type Networks struct {
	list []Network
}

// NewNetworks returns the presets followed by extra. An extra network
// replaces a preset with the same key.
func NewNetworks(extra ...Network) (*Networks, error) {
	n := &Networks{}
	for _, net := range append(DefaultNetworks(), extra...) {
		if err := n.add(net); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Networks) add(net Network) error {
	net.Key = strings.ToLower(strings.TrimSpace(net.Key))
	if net.Key == "" {
		return linkerr.WithDetails(linkerr.ErrInvalidInput, map[string]string{"network": "empty key"})
	}
	id, err := provider.NormalizeChainID(net.ChainID)
	if err != nil {
		return err
	}
	net.ChainID = id
	if net.Name == "" {
		net.Name = net.Key
	}

	for i, existing := range n.list {
		if existing.Key == net.Key {
			n.list[i] = net
			return nil
		}
	}
	n.list = append(n.list, net)
	return nil
}

// All returns every known network in registration order.
func (n *Networks) All() []Network {
	out := make([]Network, len(n.list))
	copy(out, n.list)
	return out
}

// ByChainID returns the network with the given chain ID.
func (n *Networks) ByChainID(chainID string) (Network, bool) {
	id, err := provider.NormalizeChainID(chainID)
	if err != nil {
		return Network{}, false
	}
	for _, net := range n.list {
		if net.ChainID == id {
			return net, true
		}
	}
	return Network{}, false
}

// Resolve accepts a network key or a hex chain ID and returns the chain ID to
// request. Unknown hex IDs are passed through so the wallet can decide.
func (n *Networks) Resolve(nameOrID string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(nameOrID))
	if strings.HasPrefix(in, "0x") {
		return provider.NormalizeChainID(in)
	}

	keys := make([]string, 0, len(n.list))
	for _, net := range n.list {
		if net.Key == in {
			return net.ChainID, nil
		}
		keys = append(keys, net.Key)
	}

	err := linkerr.WithCause(linkerr.ErrUnknownNetwork, fmt.Errorf("%q", nameOrID)) //nolint:err113 // carries the rejected value
	if s := Suggest(in, keys); s != "" {
		return "", linkerr.WithSuggestion(err, "Did you mean "+s+"?")
	}
	return "", err
}

// DisplayName returns the network name for chainID, or the ID itself when unknown.
func (n *Networks) DisplayName(chainID string) string {
	if net, ok := n.ByChainID(chainID); ok {
		return net.Name
	}
	return chainID
}
