package netguard

import (
	"errors"
	"sort"
	"sync"

	"github.com/jackpal/gateway"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

var errBadDestination = errors.New("unparseable destination")

// Router manages the split tunnel route set: destinations steered
// through or around the tunnel while it is up. Destinations are
// normalized to CIDR form before tracking, so "10.0.0.5" and
// "10.0.0.5/32" name the same route.
type Router struct {
	strategy Strategy

	mu     sync.Mutex
	active map[string]struct{}
}

func NewRouter(strategy Strategy) *Router {
	return &Router{
		strategy: strategy,
		active:   make(map[string]struct{}),
	}
}

// AddRoute installs a route and tracks it for later teardown. Adding a
// destination that is already tracked fails with DuplicateRouteError
// without touching the routing table.
func (r *Router) AddRoute(dest, gw, iface string) error {
	normalized := normalizeRoute(dest)
	if normalized == "" {
		return &common.RouteError{Dest: dest, Op: "add", Err: errBadDestination}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[normalized]; ok {
		return &common.DuplicateRouteError{Dest: normalized}
	}

	if err := r.strategy.AddRoute(normalized, gw, iface); err != nil {
		return &common.RouteError{Dest: normalized, Op: "add", Err: err}
	}

	r.active[normalized] = struct{}{}
	common.LogDebug("Route added: %s", normalized)
	return nil
}

// RemoveRoute deletes a tracked route. Removing a destination that was
// never added is a no-op, as is an unparseable destination.
func (r *Router) RemoveRoute(dest string) error {
	normalized := normalizeRoute(dest)
	if normalized == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[normalized]; !ok {
		return nil
	}

	if err := r.strategy.DeleteRoute(normalized); err != nil {
		return &common.RouteError{Dest: normalized, Op: "delete", Err: err}
	}

	delete(r.active, normalized)
	common.LogDebug("Route removed: %s", normalized)
	return nil
}

// Flush tears down every tracked route. Failed deletions stay tracked;
// the first failure is returned after all routes have been attempted.
func (r *Router) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, dest := range r.activeLocked() {
		if err := r.strategy.DeleteRoute(dest); err != nil {
			if firstErr == nil {
				firstErr = &common.RouteError{Dest: dest, Op: "delete", Err: err}
			}
			continue
		}
		delete(r.active, dest)
	}
	return firstErr
}

// Active returns the tracked destinations in sorted order.
func (r *Router) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

func (r *Router) activeLocked() []string {
	dests := make([]string, 0, len(r.active))
	for dest := range r.active {
		dests = append(dests, dest)
	}
	sort.Strings(dests)
	return dests
}

// DefaultGateway finds the non-VPN default gateway, asking the
// strategy first and falling back to an interface-independent probe
// when the routing table gives no answer.
func DefaultGateway(s Strategy) (string, string, error) {
	gw, iface, err := s.DefaultRoute()
	if err == nil {
		return gw, iface, nil
	}

	ip, derr := gateway.DiscoverGateway()
	if derr != nil {
		return "", "", err
	}
	common.LogDebug("Default route lookup fell back to discovery: %s", ip)
	return ip.String(), "", nil
}
