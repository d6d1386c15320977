package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/dialogue"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/resilience"
)

// Prober checks whether the dialogue service answers
type Prober interface {
	Health(ctx context.Context) (*dialogue.HealthStatus, error)
}

// Monitor tracks whether the dialogue service is reachable. While offline it
// probes with backoff until the service answers again.
type Monitor struct {
	prober    Prober
	interval  time.Duration
	reconnect *resilience.ReconnectConfig
	logger    zerolog.Logger

	mu        sync.Mutex
	known     bool
	connected bool
	lastErr   error
	onChange  func(connected bool)
}

// NewMonitor creates a connectivity monitor polling every interval
func NewMonitor(prober Prober, interval time.Duration, reconnect *resilience.ReconnectConfig) *Monitor {
	if reconnect == nil {
		reconnect = resilience.DefaultReconnectConfig()
	}
	return &Monitor{
		prober:    prober,
		interval:  interval,
		reconnect: reconnect,
		logger:    observability.WithComponent("connectivity"),
	}
}

// OnChange registers a callback fired when connectivity flips
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Connected reports the last observed state
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Check adapts the monitor to a readiness probe
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, m.lastErr
}

// Run polls until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one probe. Online, a single failed probe marks the service
// offline; offline, it probes with backoff via resilience.Reconnect.
func (m *Monitor) Poll(ctx context.Context) bool {
	var err error
	if m.Connected() {
		err = m.probe(ctx)
	} else {
		err = resilience.Reconnect(ctx, "dialogue", m.probe, m.reconnect)
	}
	if ctx.Err() != nil {
		return m.Connected()
	}
	m.set(err == nil, err)
	return err == nil
}

func (m *Monitor) probe(ctx context.Context) error {
	_, err := m.prober.Health(ctx)
	return err
}

func (m *Monitor) set(connected bool, err error) {
	m.mu.Lock()
	changed := !m.known || m.connected != connected
	m.known = true
	m.connected = connected
	m.lastErr = err
	cb := m.onChange
	m.mu.Unlock()

	observability.SetConnected(connected)
	if !changed {
		return
	}
	if connected {
		m.logger.Info().Msg("Dialogue service reachable")
	} else {
		m.logger.Warn().Err(err).Msg("Dialogue service unreachable")
	}
	if cb != nil {
		cb(connected)
	}
}
