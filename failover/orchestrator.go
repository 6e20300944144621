// Package failover switches network operations onto the VPN tunnel
// when the direct path trips its circuit breaker.
package failover

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
	"github.com/Njanja2025/SecondBrainApp-sub001/resilience"
)

// TunnelControl is the slice of the tunnel supervisor the orchestrator
// needs.
type TunnelControl interface {
	Connect(ctx context.Context, profileID string) error
	Disconnect() error
	IsConnected() bool
}

// Orchestrator runs operations on the direct path guarded by a circuit
// breaker. Once the breaker opens, it brings the tunnel up and routes
// the operation through it instead.
type Orchestrator struct {
	breaker   *resilience.CircuitBreaker
	tunnel    TunnelControl
	profileID string

	group singleflight.Group

	mu      sync.Mutex
	engaged bool
}

// NewOrchestrator wires a breaker-guarded direct path to a tunnel
// fallback connecting the given profile.
func NewOrchestrator(tunnel TunnelControl, profileID string, breaker *resilience.CircuitBreaker) *Orchestrator {
	return &Orchestrator{
		breaker:   breaker,
		tunnel:    tunnel,
		profileID: profileID,
	}
}

// Run executes op through the circuit breaker. When the breaker
// rejects the call, the orchestrator ensures the tunnel is up, exactly
// one caller performing the connect while the rest wait for it, and
// then runs op directly. The tunnel path carries no breaker: once
// switched, operations run unguarded until the circuit closes again.
// Errors other than the breaker rejection propagate unchanged.
func (o *Orchestrator) Run(ctx context.Context, op func(ctx context.Context) error) error {
	err := o.breaker.Execute(func() error { return op(ctx) })

	var openErr *common.CircuitOpenError
	if !errors.As(err, &openErr) {
		return err
	}

	common.LogInfo("Direct path unavailable, failing over to tunnel")
	if err := o.ensureTunnel(ctx); err != nil {
		return common.WrapError(err, "failover connect")
	}
	return op(ctx)
}

// ensureTunnel brings the tunnel up at most once across concurrent
// callers. Callers arriving mid-connect share the first caller's
// outcome.
func (o *Orchestrator) ensureTunnel(ctx context.Context) error {
	_, err, _ := o.group.Do("connect", func() (interface{}, error) {
		if o.tunnel.IsConnected() {
			return nil, nil
		}

		if err := o.tunnel.Connect(ctx, o.profileID); err != nil {
			// Someone else engaged the tunnel between the check and
			// the connect.
			if errors.Is(err, common.ErrAlreadyConnected) {
				return nil, nil
			}
			return nil, err
		}

		o.mu.Lock()
		o.engaged = true
		o.mu.Unlock()
		return nil, nil
	})
	return err
}

// Engaged reports whether this orchestrator brought the tunnel up.
func (o *Orchestrator) Engaged() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.engaged
}

// Teardown disconnects the tunnel if this orchestrator engaged it.
// Tunnels brought up elsewhere are left alone.
func (o *Orchestrator) Teardown() error {
	o.mu.Lock()
	engaged := o.engaged
	o.engaged = false
	o.mu.Unlock()

	if !engaged {
		return nil
	}
	return o.tunnel.Disconnect()
}
