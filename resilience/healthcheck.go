package resilience

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/circuitbreaker"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
)

var (
	// ErrInvalidHealthCheckInterval indicates the health check interval must be positive.
	ErrInvalidHealthCheckInterval = errors.New("resilience: health check interval must be positive")
	// ErrInvalidHealthCheckTimeout indicates the health check timeout must be positive.
	ErrInvalidHealthCheckTimeout = errors.New("resilience: health check timeout must be positive")
)

// HealthCheckFunc probes whether a resource has recovered.
type HealthCheckFunc func(ctx context.Context) error

// HealthChecker periodically probes resources whose breakers are open and
// resets the breaker once a probe succeeds.
//
// Register it as a state change listener on the Manager to trigger an
// immediate probe when a breaker opens, instead of waiting for the next tick.
type HealthChecker struct {
	manager      *Manager
	interval     time.Duration
	checkTimeout time.Duration
	logger       log.Logger

	mu     sync.RWMutex
	probes map[string]HealthCheckFunc

	stopChan       chan struct{}
	immediateCheck chan string
	wg             sync.WaitGroup
}

// NewHealthChecker creates a health checker driving recovery through the
// given Manager. interval is how often probes run; checkTimeout bounds each
// individual probe.
func NewHealthChecker(manager *Manager, interval, checkTimeout time.Duration, logger log.Logger) (*HealthChecker, error) {
	if interval <= 0 {
		return nil, ErrInvalidHealthCheckInterval
	}

	if checkTimeout <= 0 {
		return nil, ErrInvalidHealthCheckTimeout
	}

	if logger == nil {
		logger = log.NewNop()
	}

	return &HealthChecker{
		manager:        manager,
		interval:       interval,
		checkTimeout:   checkTimeout,
		logger:         logger,
		probes:         make(map[string]HealthCheckFunc),
		stopChan:       make(chan struct{}),
		immediateCheck: make(chan string, 10),
	}, nil
}

// Register adds a probe for the named breaker.
func (hc *HealthChecker) Register(name string, probe HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.probes[name] = probe
}

// Start begins the probe loop in a separate goroutine.
func (hc *HealthChecker) Start() {
	hc.wg.Add(1)

	go hc.loop()

	hc.logger.Log(context.Background(), log.LevelInfo, "health checker started",
		log.Any("interval", hc.interval),
	)
}

// Stop gracefully stops the probe loop.
func (hc *HealthChecker) Stop() {
	close(hc.stopChan)
	hc.wg.Wait()
	hc.logger.Log(context.Background(), log.LevelInfo, "health checker stopped")
}

func (hc *HealthChecker) loop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hc.runProbes()
		case name := <-hc.immediateCheck:
			hc.probeOne(name)
		case <-hc.stopChan:
			return
		}
	}
}

func (hc *HealthChecker) runProbes() {
	hc.mu.RLock()
	// Snapshot so probes run without holding the lock.
	probes := make(map[string]HealthCheckFunc, len(hc.probes))
	maps.Copy(probes, hc.probes)
	hc.mu.RUnlock()

	for name := range probes {
		hc.probeOne(name)
	}
}

// probeOne checks a single resource and resets its breaker on success.
// Healthy breakers are skipped.
func (hc *HealthChecker) probeOne(name string) {
	hc.mu.RLock()
	probe, exists := hc.probes[name]
	hc.mu.RUnlock()

	if !exists || hc.manager.IsHealthy(name) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hc.checkTimeout)
	err := probe(ctx)

	cancel()

	if err == nil {
		hc.logger.Log(context.Background(), log.LevelInfo, "resource recovered, resetting circuit breaker",
			log.String("breaker", name),
		)
		hc.manager.Reset(name)

		return
	}

	hc.logger.Log(context.Background(), log.LevelWarn, "resource still unhealthy",
		log.String("breaker", name),
		log.Err(err),
	)
}

// Status returns the breaker state for every registered probe.
func (hc *HealthChecker) Status() map[string]circuitbreaker.State {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := make(map[string]circuitbreaker.State, len(hc.probes))
	for name := range hc.probes {
		status[name] = hc.manager.State(name)
	}

	return status
}

// OnStateChange implements circuitbreaker.StateChangeListener. A breaker
// opening schedules an immediate probe rather than waiting for the ticker.
func (hc *HealthChecker) OnStateChange(name string, _, to circuitbreaker.State) {
	if to != circuitbreaker.StateOpen {
		return
	}

	select {
	case hc.immediateCheck <- name:
	default:
		// Channel full; the periodic loop will pick it up.
	}
}
