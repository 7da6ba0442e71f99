// Package connectivity tracks whether the remote store is reachable.
//
// [Monitor] holds the current state and signals offline → online edges.
// [Prober] feeds it by periodically dialling the remote endpoint.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Monitor is the shared online flag. The zero value is not usable; create
// one with [NewMonitor].
type Monitor struct {
	mu     sync.Mutex
	online bool
	log    *slog.Logger
	// edges buffers at most one unconsumed offline → online transition.
	edges chan struct{}
}

// NewMonitor returns a Monitor starting in the given state.
func NewMonitor(initial bool, logger *slog.Logger) *Monitor {
	return &Monitor{
		online: initial,
		log:    logger,
		edges:  make(chan struct{}, 1),
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// CameOnline delivers a value after each offline → online transition.
// Transitions that happen while a value is still unread are merged.
func (m *Monitor) CameOnline() <-chan struct{} {
	return m.edges
}

// Set records a new state and reports whether it changed.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return false
	}
	if online {
		m.log.Info("remote store reachable")
		select {
		case m.edges <- struct{}{}:
		default:
		}
	} else {
		m.log.Warn("remote store unreachable, working offline")
	}
	return true
}

// DialFunc opens a connection; it matches [net.Dialer.DialContext].
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober periodically dials address and reports the outcome to a Monitor.
type Prober struct {
	address  string
	interval time.Duration
	timeout  time.Duration
	monitor  *Monitor
	dial     DialFunc
	log      *slog.Logger
}

// NewProber returns a Prober for address ("host:port"). When dial is nil a
// [net.Dialer] is used.
func NewProber(address string, interval time.Duration, monitor *Monitor, dial DialFunc, logger *slog.Logger) *Prober {
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Prober{
		address:  address,
		interval: interval,
		timeout:  timeout,
		monitor:  monitor,
		dial:     dial,
		log:      logger,
	}
}

// Probe dials once and updates the monitor. It returns the observed state.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", p.address)
	if err != nil {
		p.log.Debug("probe failed", "address", p.address, "error", err)
		p.monitor.Set(false)
		return false
	}
	_ = conn.Close()
	p.monitor.Set(true)
	return true
}

// Run probes immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
