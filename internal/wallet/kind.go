package wallet

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Kind identifies a wallet adapter family.
type Kind string

// Adapter families. Only KindInjected has an implementation.
const (
	KindInjected      Kind = "injected"
	KindWalletConnect Kind = "walletconnect"
	KindCoinbase      Kind = "coinbase"
)

// MaxTypoDistance is the largest edit distance for which a suggestion is offered.
const MaxTypoDistance = 3

// kindNames maps accepted spellings to kinds; "metamask" is the common name
// of the injected provider.
var kindNames = map[string]Kind{
	"injected":      KindInjected,
	"metamask":      KindInjected,
	"walletconnect": KindWalletConnect,
	"coinbase":      KindCoinbase,
}

// KnownKinds returns every recognized adapter family.
func KnownKinds() []Kind {
	return []Kind{KindInjected, KindWalletConnect, KindCoinbase}
}

// ParseKind resolves a wallet kind name. Unknown names fail with
// ErrInvalidInput and a did-you-mean suggestion when one is close.
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if k, ok := kindNames[key]; ok {
		return k, nil
	}

	err := linkerr.WithCause(linkerr.ErrInvalidInput, fmt.Errorf("unsupported wallet kind %q", name)) //nolint:err113 // carries the rejected value
	candidates := make([]string, 0, len(kindNames))
	for n := range kindNames {
		candidates = append(candidates, n)
	}
	if s := Suggest(key, candidates); s != "" {
		return "", linkerr.WithSuggestion(err, "Did you mean "+s+"?")
	}
	return "", err
}

// Supported reports whether an adapter exists for k.
func (k Kind) Supported() bool {
	return k == KindInjected
}

// Suggest returns the candidate closest to input by Levenshtein distance,
// or "" when none is within MaxTypoDistance. Ties resolve to the
// lexicographically smallest candidate.
func Suggest(input string, candidates []string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	minDist := math.MaxInt
	var suggestion string
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(input, strings.ToLower(c))
		if dist < minDist || (dist == minDist && c < suggestion) {
			minDist = dist
			suggestion = c
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}
