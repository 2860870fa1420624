package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 5 * time.Second

type job struct {
	name string
	run  func(context.Context) error
}

// Manager runs long-lived jobs (HTTP servers, the health monitor, the TUI)
// until one fails or the context ends, then runs shutdown jobs in reverse
// registration order.
type Manager struct {
	mu              sync.Mutex
	logger          *slog.Logger
	runJobs         []job
	shutdownJobs    []job
	shutdownTimeout time.Duration
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, shutdownTimeout: defaultShutdownTimeout}
}

func (m *Manager) AddRun(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.runJobs = append(m.runJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

func (m *Manager) AddShutdown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.shutdownJobs = append(m.shutdownJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

func (m *Manager) StartAndWait(parent context.Context, sig ...os.Signal) error {
	ctx := parent
	stopSignal := func() {}
	if len(sig) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(parent, sig...)
		stopSignal = stop
	}
	defer stopSignal()

	runJobs := m.snapshot(&m.runJobs)
	shutdownJobs := m.snapshot(&m.shutdownJobs)

	g, runCtx := errgroup.WithContext(ctx)
	for _, j := range runJobs {
		g.Go(func() error {
			m.logger.Debug("lifecycle job started", "job", j.name)
			if err := j.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("lifecycle job failed", "job", j.name, "err", err)
				return fmt.Errorf("%s: %w", j.name, err)
			}
			return nil
		})
	}
	runErr := g.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancelShutdown()
	var shutdownErr error
	for i := len(shutdownJobs) - 1; i >= 0; i-- {
		j := shutdownJobs[i]
		if err := j.run(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("lifecycle shutdown failed", "job", j.name, "err", err)
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errors.Join(runErr, shutdownErr)
}

func (m *Manager) snapshot(src *[]job) []job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]job, len(*src))
	copy(out, *src)
	return out
}
