// Package servers maintains the pool of known VPN endpoints: probing
// their reachability over TCP, scoring the candidates, and watching
// the quality of the active connection.
package servers

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// ProbeResult is the outcome of one reachability probe.
type ProbeResult struct {
	// AvgPing is the mean connect time over the successful attempts.
	// Meaningless when Reachable is false.
	AvgPing     time.Duration
	LossPercent float64
	// Reachable reports whether at least one attempt succeeded.
	Reachable bool
	ProbedAt  time.Time
}

// PingMs returns the average ping in milliseconds.
func (r ProbeResult) PingMs() float64 {
	return float64(r.AvgPing) / float64(time.Millisecond)
}

// Server describes one VPN endpoint candidate.
type Server struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Region string `yaml:"region,omitempty"`

	// LastResult holds the most recent probe outcome, nil until the
	// server has been probed. Probe results are not persisted.
	LastResult *ProbeResult `yaml:"-"`
}

// Addr returns the dialable host:port of the server.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Score returns the selection score, lower is better. Servers that
// were never probed, or whose probe saw no successful attempt, have
// no score.
func (s *Server) Score() (float64, error) {
	if s.LastResult == nil || !s.LastResult.Reachable {
		return 0, common.ErrServerUnprobed
	}
	return s.LastResult.PingMs() * (1 + s.LastResult.LossPercent/100), nil
}

// RegistryConfig holds probing settings.
type RegistryConfig struct {
	// Attempts is the number of TCP connects per probe.
	Attempts int
	// Spacing is the pause between consecutive attempts.
	Spacing time.Duration
	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration
	// Concurrency bounds how many servers ProbeAll touches at once.
	Concurrency int
}

// DefaultRegistryConfig returns sensible probing defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Attempts:    common.ProbeAttempts,
		Spacing:     common.ProbeSpacing,
		DialTimeout: common.ProbeDialTimeout,
		Concurrency: 4,
	}
}

type dialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// Registry tracks the known servers and their probe results.
type Registry struct {
	cfg  RegistryConfig
	dial dialFunc

	mu      sync.RWMutex
	servers map[string]*Server
}

// NewRegistry creates an empty registry with the given probing
// configuration. Zero config fields fall back to defaults.
func NewRegistry(cfg RegistryConfig) *Registry {
	def := DefaultRegistryConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = def.Spacing
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}

	return &Registry{
		cfg:     cfg,
		dial:    net.DialTimeout,
		servers: make(map[string]*Server),
	}
}

// AddServer registers an endpoint. A missing ID is generated. The ID
// and name must both be unused.
func (r *Registry) AddServer(srv Server) (string, error) {
	if srv.Host == "" || srv.Port <= 0 || srv.Port > 65535 {
		return "", common.WrapError(common.ErrInvalidConfig, "server needs a host and a valid port")
	}
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[srv.ID]; ok {
		return "", common.ErrDuplicateServer
	}
	for _, existing := range r.servers {
		if existing.Name == srv.Name {
			return "", common.ErrDuplicateServer
		}
	}

	r.servers[srv.ID] = &srv
	common.LogInfo("Server registered: %s (%s)", srv.Name, srv.Addr())
	return srv.ID, nil
}

// RemoveServer unregisters an endpoint.
func (r *Registry) RemoveServer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[id]; !ok {
		return common.ErrServerNotFound
	}
	delete(r.servers, id)
	return nil
}

// Get returns a copy of the server with the given ID.
func (r *Registry) Get(id string) (Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	srv, ok := r.servers[id]
	if !ok {
		return Server{}, common.ErrServerNotFound
	}
	return copyServer(srv), nil
}

// List returns copies of all servers, sorted by name.
func (r *Registry) List() []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Server, 0, len(r.servers))
	for _, srv := range r.servers {
		out = append(out, copyServer(srv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Probe measures reachability of one server: cfg.Attempts TCP connects
// spaced cfg.Spacing apart, averaging the connect time over the
// successful ones. The result is recorded on the server and returned.
func (r *Registry) Probe(ctx context.Context, id string) (ProbeResult, error) {
	r.mu.RLock()
	srv, ok := r.servers[id]
	if !ok {
		r.mu.RUnlock()
		return ProbeResult{}, common.ErrServerNotFound
	}
	addr := srv.Addr()
	r.mu.RUnlock()

	var (
		successes int
		total     time.Duration
	)
	for attempt := 0; attempt < r.cfg.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ProbeResult{}, common.WrapError(common.ErrCancelled, "probe aborted")
			case <-time.After(r.cfg.Spacing):
			}
		}

		start := time.Now()
		conn, err := r.dial("tcp", addr, r.cfg.DialTimeout)
		if err != nil {
			continue
		}
		conn.Close()
		total += time.Since(start)
		successes++
	}

	result := ProbeResult{
		LossPercent: float64(r.cfg.Attempts-successes) / float64(r.cfg.Attempts) * 100,
		ProbedAt:    time.Now(),
	}
	if successes > 0 {
		result.Reachable = true
		result.AvgPing = total / time.Duration(successes)
	}

	r.mu.Lock()
	if srv, ok := r.servers[id]; ok {
		srv.LastResult = &result
	}
	r.mu.Unlock()

	common.LogDebug("Probe %s: ping %.1fms loss %.0f%%", addr, result.PingMs(), result.LossPercent)
	return result, nil
}

// ProbeAll probes every registered server with bounded concurrency.
func (r *Registry) ProbeAll(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.servers))
	for id := range r.servers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sem := semaphore.NewWeighted(int64(r.cfg.Concurrency))
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			return common.WrapError(common.ErrCancelled, "probe sweep aborted")
		}
		go func(id string) {
			defer sem.Release(1)
			if _, err := r.Probe(ctx, id); err != nil {
				common.LogWarn("Probe failed for %s: %v", id, err)
			}
		}(id)
	}

	// Wait for the in-flight probes to finish.
	if err := sem.Acquire(ctx, int64(r.cfg.Concurrency)); err != nil {
		return common.WrapError(common.ErrCancelled, "probe sweep aborted")
	}
	sem.Release(int64(r.cfg.Concurrency))
	return nil
}

// SelectBest returns the probed server with the lowest score among
// those whose ping is within maxPingMs and loss within maxLossPercent.
func (r *Registry) SelectBest(maxPingMs, maxLossPercent float64) (Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      *Server
		bestScore float64
	)
	for _, srv := range r.servers {
		score, err := srv.Score()
		if err != nil {
			continue
		}
		if srv.LastResult.PingMs() > maxPingMs || srv.LastResult.LossPercent > maxLossPercent {
			continue
		}
		if best == nil || score < bestScore || (score == bestScore && srv.Name < best.Name) {
			best = srv
			bestScore = score
		}
	}

	if best == nil {
		return Server{}, common.ErrNoViableServer
	}
	picked := copyServer(best)
	common.LogInfo("Selected server %s (score %.1f)", picked.Name, bestScore)
	return picked, nil
}

func copyServer(srv *Server) Server {
	out := *srv
	if srv.LastResult != nil {
		res := *srv.LastResult
		out.LastResult = &res
	}
	return out
}
