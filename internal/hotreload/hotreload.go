package hotreload

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Manager ties a file watcher, the reload coordinator and the result
// broadcaster together.
type Manager struct {
	watcher     *Watcher
	coordinator *Coordinator
	broadcaster *Broadcaster
	logger      *zap.Logger
	started     bool
}

func NewManager(logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("hotreload")

	watcher, err := NewWatcher(logger)
	if err != nil {
		return nil, err
	}
	broadcaster := NewBroadcaster(logger)

	return &Manager{
		watcher:     watcher,
		coordinator: NewCoordinator(watcher, broadcaster, logger),
		broadcaster: broadcaster,
		logger:      logger,
	}, nil
}

// AddWatch adds a file to watch
func (m *Manager) AddWatch(path string) error {
	return m.watcher.Add(path)
}

// RemoveWatch removes a file from watch
func (m *Manager) RemoveWatch(path string) error {
	return m.watcher.Remove(path)
}

// RegisterReloadable registers a reloadable component
func (m *Manager) RegisterReloadable(reloadable Reloadable) error {
	return m.coordinator.Register(reloadable)
}

// AddListener adds a reload result listener
func (m *Manager) AddListener(name string, listener Listener) error {
	return m.broadcaster.AddListener(name, listener)
}

// RemoveListener removes a reload result listener
func (m *Manager) RemoveListener(name string) {
	m.broadcaster.RemoveListener(name)
}

// Start starts the hot reload system
func (m *Manager) Start() error {
	if m.started {
		return nil
	}
	if err := m.coordinator.Start(); err != nil {
		return err
	}

	m.started = true
	m.logger.Info("Hot reload system started", zap.Strings("paths", m.watcher.Paths()))
	return nil
}

// Stop stops the hot reload system
func (m *Manager) Stop() {
	if !m.started {
		m.watcher.Stop()
		return
	}

	m.coordinator.Stop()
	m.broadcaster.Close()
	m.started = false
	m.logger.Info("Hot reload system stopped")
}

// SetDebounceTime sets the debounce time for reload events
func (m *Manager) SetDebounceTime(d time.Duration) {
	m.coordinator.SetDebounceTime(d)
}

// IsRunning returns whether the hot reload system is running
func (m *Manager) IsRunning() bool {
	return m.started
}

// Shutdown stops the manager; it satisfies the same shape as the servers'
// Shutdown so callers can defer it alongside them.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Stop()
	return nil
}
