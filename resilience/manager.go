package resilience

import (
	"context"
	"errors"
	"sync"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/circuitbreaker"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/metrics"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/retry"
)

// Operation is a protected call executed under a named circuit breaker.
type Operation = retry.Operation

// Manager owns the registry of named circuit breakers and composes retry
// execution around protected operations.
//
// Breakers are created lazily on first reference and live for the Manager's
// lifetime. The Manager is safe for concurrent use; each breaker serializes
// its own bookkeeping, so calls under different names never contend.
type Manager struct {
	logger   log.Logger
	recorder *metrics.Recorder

	mu        sync.RWMutex
	breakers  map[string]*circuitbreaker.Breaker
	configs   map[string]circuitbreaker.Config
	listeners []circuitbreaker.StateChangeListener
}

// ManagerOption customizes a Manager at construction.
type ManagerOption func(*Manager)

// WithMetrics attaches a telemetry recorder. A nil recorder is accepted and
// drops all measurements.
func WithMetrics(recorder *metrics.Recorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// NewManager creates a Manager. A nil logger is replaced with a no-op logger.
func NewManager(logger log.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}

	m := &Manager{
		logger:   logger,
		breakers: make(map[string]*circuitbreaker.Breaker),
		configs:  make(map[string]circuitbreaker.Config),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Configure registers a breaker configuration for a name before the breaker
// is first used. Returns ErrBreakerExists if the breaker was already created,
// or a validation error for an invalid config. Names without a registered
// config get circuitbreaker.DefaultConfig on first use.
func (m *Manager) Configure(name string, config circuitbreaker.Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.breakers[name]; exists {
		return ErrBreakerExists
	}

	m.configs[name] = config

	return nil
}

// Execute runs op once under the named breaker.
//
// If the breaker denies the call (open, or half-open at capacity), op is
// never invoked and an *OpenError is returned. Otherwise the breaker records
// exactly one success or failure for the call's final outcome. A final error
// of context.Canceled is recorded as neither: the trial slot is released
// without moving the counters.
func (m *Manager) Execute(ctx context.Context, breakerName string, op Operation, opts ...retry.Option) (any, error) {
	return m.execute(ctx, breakerName, nil, op, opts)
}

// ExecuteWithRetry runs op under the named breaker with retry between
// attempts. The breaker gate is checked once up front; attempt outcomes
// aggregate into a single success or failure report (a retry-exhausted run
// counts as one breaker failure, not one per attempt).
func (m *Manager) ExecuteWithRetry(ctx context.Context, breakerName string, retryConfig retry.Config, op Operation, opts ...retry.Option) (any, error) {
	return m.execute(ctx, breakerName, &retryConfig, op, opts)
}

// Retry runs op with backoff but no circuit breaker, for call sites that
// tolerate repeated probing on every cycle (GPS and weather fetches).
func (m *Manager) Retry(ctx context.Context, retryConfig retry.Config, op Operation, opts ...retry.Option) (any, error) {
	return retry.Do(ctx, retryConfig, op, opts...)
}

func (m *Manager) execute(ctx context.Context, breakerName string, retryConfig *retry.Config, op Operation, opts []retry.Option) (any, error) {
	breaker := m.getOrCreate(ctx, breakerName)

	if !breaker.Allow() {
		m.logger.Log(ctx, log.LevelWarn, "circuit breaker rejected call",
			log.String("breaker", breakerName),
		)
		m.recorder.RecordCall(ctx, breakerName, metrics.OutcomeRejected)

		return nil, &OpenError{Breaker: breakerName}
	}

	attempts := 0
	counted := func(ctx context.Context) (any, error) {
		attempts++
		return op(ctx)
	}

	var (
		result any
		err    error
	)

	if retryConfig != nil {
		result, err = retry.Do(ctx, *retryConfig, counted, opts...)
	} else {
		result, err = counted(ctx)
	}

	m.recorder.RecordAttempts(ctx, breakerName, attempts)

	switch {
	case err == nil:
		breaker.RecordSuccess()
		m.recorder.RecordCall(ctx, breakerName, metrics.OutcomeSuccess)

		return result, nil
	case errors.Is(err, context.Canceled):
		breaker.RecordCancel()
		m.recorder.RecordCall(ctx, breakerName, metrics.OutcomeCancelled)

		return nil, err
	default:
		breaker.RecordFailure()
		m.recorder.RecordCall(ctx, breakerName, metrics.OutcomeFailure)
		m.logger.Log(ctx, log.LevelWarn, "protected call failed",
			log.String("breaker", breakerName),
			log.Int("attempts", attempts),
			log.Err(err),
		)

		return nil, err
	}
}

// getOrCreate resolves the named breaker, creating it lazily on first use.
func (m *Manager) getOrCreate(ctx context.Context, name string) *circuitbreaker.Breaker {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock.
	if breaker, exists = m.breakers[name]; exists {
		return breaker
	}

	config, ok := m.configs[name]
	if !ok {
		config = circuitbreaker.DefaultConfig()
	}

	breaker, err := circuitbreaker.New(name, config)
	if err != nil {
		// Configure validates stored configs, so this only guards defaults.
		breaker, _ = circuitbreaker.New(name, circuitbreaker.DefaultConfig())
	}

	breaker.OnStateChange(m.handleStateChange)
	m.breakers[name] = breaker

	m.logger.Log(ctx, log.LevelDebug, "created circuit breaker",
		log.String("breaker", name),
	)

	return breaker
}

// Snapshots returns a read-only view of every breaker, keyed by name.
// Reading snapshots never mutates breaker state.
func (m *Manager) Snapshots() map[string]circuitbreaker.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshots := make(map[string]circuitbreaker.Snapshot, len(m.breakers))
	for name, breaker := range m.breakers {
		snapshots[name] = breaker.Snapshot()
	}

	return snapshots
}

// State returns the named breaker's state, or "" if it was never created.
func (m *Manager) State(name string) circuitbreaker.State {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return ""
	}

	return breaker.State()
}

// IsHealthy reports whether the named breaker is closed. Names that were
// never referenced count as healthy.
func (m *Manager) IsHealthy(name string) bool {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return true
	}

	return breaker.State() == circuitbreaker.StateClosed
}

// Reset forces the named breaker to closed with counters zeroed. Returns
// false if no breaker exists under the name. Operator tooling only; the
// half-open cycle handles recovery on its own.
func (m *Manager) Reset(name string) bool {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return false
	}

	m.logger.Log(context.Background(), log.LevelInfo, "resetting circuit breaker",
		log.String("breaker", name),
	)
	breaker.Reset()

	return true
}

// RegisterStateChangeListener registers a listener notified on every breaker
// state transition. Nil listeners are ignored.
func (m *Manager) RegisterStateChangeListener(listener circuitbreaker.StateChangeListener) {
	if listener == nil {
		m.logger.Log(context.Background(), log.LevelWarn, "ignoring nil state change listener")

		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, listener)
}

// handleStateChange logs and records a transition, then fans it out to
// registered listeners.
func (m *Manager) handleStateChange(name string, from, to circuitbreaker.State) {
	ctx := context.Background()

	switch to {
	case circuitbreaker.StateOpen:
		m.logger.Log(ctx, log.LevelError, "circuit breaker opened, requests will fast-fail",
			log.String("breaker", name),
			log.String("from", string(from)),
		)
	case circuitbreaker.StateHalfOpen:
		m.logger.Log(ctx, log.LevelInfo, "circuit breaker half-open, testing recovery",
			log.String("breaker", name),
		)
	case circuitbreaker.StateClosed:
		m.logger.Log(ctx, log.LevelInfo, "circuit breaker closed, resource is healthy",
			log.String("breaker", name),
		)
	}

	m.recorder.RecordStateChange(ctx, name, from, to)

	m.mu.RLock()
	listeners := make([]circuitbreaker.StateChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, listener := range listeners {
		// Notify in a goroutine so a slow listener cannot block breaker
		// bookkeeping; panics are contained per listener.
		go func(l circuitbreaker.StateChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Log(ctx, log.LevelError, "state change listener panicked",
						log.String("breaker", name),
						log.Any("panic", r),
					)
				}
			}()

			l.OnStateChange(name, from, to)
		}(listener)
	}
}
