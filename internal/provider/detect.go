package provider

import (
	"context"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Detector locates the wallet provider available to this process.
type Detector interface {
	Detect(ctx context.Context) (Provider, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context) (Provider, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context) (Provider, error) {
	return f(ctx)
}

// NodeDetector detects a provider by dialing a JSON-RPC node.
type NodeDetector struct {
	Config NodeConfig
}

// Detect dials the configured node. Any failure is reported as ErrProviderNotDetected.
func (d NodeDetector) Detect(ctx context.Context) (Provider, error) {
	p, err := DialNode(ctx, d.Config)
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrProviderNotDetected, err)
	}
	return p, nil
}

// Release closes p when it holds resources.
func Release(p Provider) error {
	if c, ok := p.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
