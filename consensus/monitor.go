package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mroth/jitter"
)

// DefaultInterval is used when a Monitor is created with a non-positive interval.
const DefaultInterval = 5 * time.Minute

// GetterFunc produces a fresh consensus, usually by wrapping Get.
type GetterFunc func(ctx context.Context) (Consensus, error)

// Monitor re-evaluates the consensus periodically and keeps the latest result.
type Monitor struct {
	getter   GetterFunc
	interval time.Duration

	// OnChange runs in the Run goroutine whenever a refresh yields a result
	// different from the previous one, including the first result.
	OnChange func(prev, next Consensus)
	Logger   *log.Logger

	mu     sync.RWMutex
	latest Consensus
	ok     bool
}

func NewMonitor(getter GetterFunc, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		getter:   getter,
		interval: interval,
		Logger:   log.Default(),
	}
}

// Run refreshes immediately and then about every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.refresh(ctx)
	ticker := jitter.NewTicker(m.interval, 0.2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Monitor) refresh(ctx context.Context) {
	c, err := m.getter(ctx)
	if err != nil {
		m.Logger.Errorf("Failed to refresh external IP: %v", err)
		return
	}
	// a lookup cut short by shutdown has no votes, not an empty result
	if ctx.Err() != nil {
		m.Logger.Debug("Discarding refresh interrupted by shutdown")
		return
	}

	m.mu.Lock()
	old, hadOld := m.latest, m.ok
	m.latest, m.ok = c, true
	m.mu.Unlock()

	if hadOld && old.Equal(c) {
		m.Logger.Debug("External IP unchanged", "consensus", c)
		return
	}
	m.Logger.Info("External IP changed", "old", old, "new", c)
	if m.OnChange != nil {
		m.OnChange(old, c)
	}
}

// Latest returns the most recent consensus, and false until the first refresh succeeded.
func (m *Monitor) Latest() (Consensus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.ok
}
