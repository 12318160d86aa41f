package database

import (
	"time"

	"go.uber.org/zap"
)

const defaultMonitorInterval = 30 * time.Second

// Monitor samples pool utilization on a fixed interval and logs it.
// An exhausted pool blocks callers, which surfaces as assessment
// latency long before it surfaces as errors; the warnings here are the
// early signal.
type Monitor struct {
	pool     *ConnectionPool
	logger   *zap.Logger
	interval time.Duration

	stop chan struct{}
	done chan struct{}

	lastEmptyAcquires int64
}

// NewMonitor creates a pool monitor. An interval <= 0 falls back to 30s.
func NewMonitor(pool *ConnectionPool, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pool:     pool,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop in its own goroutine.
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.observe()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the sampling loop and waits for it to exit. Must be called
// exactly once, after Start.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) observe() {
	stat := m.pool.Stats()

	m.logger.Debug("database pool stats",
		zap.Int32("total_conns", stat.TotalConns()),
		zap.Int32("idle_conns", stat.IdleConns()),
		zap.Int32("acquired_conns", stat.AcquiredConns()),
		zap.Int64("acquire_count", stat.AcquireCount()),
		zap.Duration("acquire_duration", stat.AcquireDuration()),
	)

	if stat.AcquiredConns() == stat.MaxConns() {
		m.logger.Warn("database pool saturated",
			zap.Int32("max_conns", stat.MaxConns()))
	}

	// EmptyAcquireCount is cumulative; only the delta since the last
	// sample means callers waited during this interval.
	if waited := stat.EmptyAcquireCount() - m.lastEmptyAcquires; waited > 0 {
		m.logger.Warn("database pool exhausted during interval",
			zap.Int64("waiting_acquires", waited))
	}
	m.lastEmptyAcquires = stat.EmptyAcquireCount()
}
