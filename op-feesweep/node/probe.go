package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-resty/resty/v2"
)

// Probe reports whether a freshly started node serves requests. A nil error means ready.
type Probe interface {
	Ready(ctx context.Context) error
}

// ProbeFunc adapts a function to a Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Ready(ctx context.Context) error {
	return f(ctx)
}

type ChainIDer interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// ReadinessProbe checks the optional healthcheck endpoint, then the JSON-RPC API.
type ReadinessProbe struct {
	rpc       ChainIDer
	healthURL string
	http      *resty.Client
}

var _ Probe = (*ReadinessProbe)(nil)

func NewReadinessProbe(rpc ChainIDer, healthURL string) *ReadinessProbe {
	return &ReadinessProbe{
		rpc:       rpc,
		healthURL: healthURL,
		http:      resty.New().SetTimeout(5 * time.Second),
	}
}

func (p *ReadinessProbe) Ready(ctx context.Context) error {
	if p.healthURL != "" {
		resp, err := p.http.R().SetContext(ctx).Get(p.healthURL)
		if err != nil {
			return fmt.Errorf("healthcheck: %w", err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("healthcheck: status %d", resp.StatusCode())
		}
	}
	if p.rpc == nil {
		return nil
	}
	id, err := p.rpc.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if id == nil || id.Sign() == 0 {
		return errors.New("rpc: empty chain id")
	}
	return nil
}
