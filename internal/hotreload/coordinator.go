package hotreload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reloadable represents a component that can re-read its configuration
type Reloadable interface {
	Reload(ctx context.Context) error
	Name() string
}

// Coordinator debounces watcher events and reloads every registered
// component once per burst.
type Coordinator struct {
	watcher     *Watcher
	broadcaster *Broadcaster
	logger      *zap.Logger

	reloadables  map[string]Reloadable
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	debounceTime time.Duration
	wg           sync.WaitGroup
	isRunning    bool
}

func NewCoordinator(watcher *Watcher, broadcaster *Broadcaster, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		watcher:      watcher,
		broadcaster:  broadcaster,
		logger:       logger,
		reloadables:  make(map[string]Reloadable),
		ctx:          ctx,
		cancel:       cancel,
		debounceTime: 500 * time.Millisecond,
	}
}

// Register adds a reloadable component to the coordinator
func (c *Coordinator) Register(reloadable Reloadable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := reloadable.Name()
	if _, exists := c.reloadables[name]; exists {
		return fmt.Errorf("reloadable %s already registered", name)
	}

	c.reloadables[name] = reloadable
	c.logger.Info("Registered reloadable component", zap.String("name", name))
	return nil
}

// Unregister removes a reloadable component from the coordinator
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reloadables, name)
	c.logger.Info("Unregistered reloadable component", zap.String("name", name))
}

// Start begins the hot reload coordination
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.watcher.Start()

	c.wg.Add(1)
	go c.coordinateReloads()

	c.logger.Info("Hot reload coordinator started")
	return nil
}

// Stop stops the hot reload coordination
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()
	c.watcher.Stop()
	c.wg.Wait()

	c.logger.Info("Hot reload coordinator stopped")
}

// coordinateReloads collects events until none arrive for debounceTime, then
// triggers a single reload for the whole batch.
func (c *Coordinator) coordinateReloads() {
	defer c.wg.Done()

	var (
		timer  *time.Timer
		fire   <-chan time.Time
		events []Event
	)

	for {
		select {
		case <-c.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			events = append(events, event)

			debounce := c.DebounceTime()
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			timer = nil
			if len(events) > 0 {
				c.triggerReload(events)
				events = nil
			}
		}
	}
}

// triggerReload reloads all registered components concurrently and broadcasts
// the combined outcome.
func (c *Coordinator) triggerReload(events []Event) {
	c.mu.RLock()
	reloadables := make([]Reloadable, 0, len(c.reloadables))
	for _, r := range c.reloadables {
		reloadables = append(reloadables, r)
	}
	c.mu.RUnlock()

	if len(reloadables) == 0 {
		return
	}

	c.logger.Info("Triggering hot reload", zap.Int("events", len(events)))
	for _, event := range events {
		c.logger.Debug("Reload triggered by", zap.String("path", event.Path), zap.String("operation", event.Op.String()))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, reloadable := range reloadables {
		wg.Add(1)
		go func(r Reloadable) {
			defer wg.Done()
			if err := r.Reload(c.ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("failed to reload %s: %w", r.Name(), err))
				mu.Unlock()
				return
			}
			c.logger.Info("Successfully reloaded component", zap.String("name", r.Name()))
		}(reloadable)
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Error("Hot reload completed with errors", zap.Int("errors", len(errs)), zap.Error(err))
	} else {
		c.logger.Info("Hot reload completed successfully")
	}

	if c.broadcaster != nil {
		if berr := c.broadcaster.Broadcast(c.ctx, Result{Events: events, Err: err}); berr != nil {
			c.logger.Warn("Reload listeners failed", zap.Error(berr))
		}
	}
}

// SetDebounceTime sets the debounce time for reload events
func (c *Coordinator) SetDebounceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceTime = d
}

func (c *Coordinator) DebounceTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debounceTime
}

// IsRunning returns whether the coordinator is currently running
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
