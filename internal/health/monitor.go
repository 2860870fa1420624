package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"deskchat/cli/internal/retry"
)

const DefaultInterval = 5 * time.Second

var errNoPinger = errors.New("no sandbox to probe")

type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes the sandbox on its own goroutine and only ever writes the
// connection flag; desktop state is never touched from here.
type Monitor struct {
	pinger    Pinger
	interval  time.Duration
	logger    *slog.Logger
	connected atomic.Bool
	checked   atomic.Bool

	mu       sync.Mutex
	onChange func(bool)
}

func NewMonitor(p Pinger, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{pinger: p, interval: interval, logger: logger}
}

// OnChange registers fn to be called with the new value whenever the
// connection flag flips (and once after the first probe).
func (m *Monitor) OnChange(fn func(bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Monitor) Connected() bool {
	return m.connected.Load()
}

// Check runs a single probe and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	ok := m.probe(ctx) == nil
	m.record(ok)
	return ok
}

func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// WaitReady probes until the sandbox answers or the policy is exhausted.
func (m *Monitor) WaitReady(ctx context.Context, p retry.Policy) error {
	err := retry.Do(ctx, p, m.probe)
	m.record(err == nil)
	return err
}

func (m *Monitor) probe(ctx context.Context) error {
	if m.pinger == nil {
		return errNoPinger
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	err := m.pinger.Ping(probeCtx)
	if err != nil {
		m.logger.Debug("sandbox probe failed", "err", err)
	}
	return err
}

func (m *Monitor) record(ok bool) {
	prev := m.connected.Swap(ok)
	first := !m.checked.Swap(true)
	if prev == ok && !first {
		return
	}
	m.logger.Info("sandbox connection changed", "connected", ok)
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(ok)
	}
}
