package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/circuitbreaker"
	"github.com/Bigdaddy1990/pawcontrol-resilience/resilience/log"
)

// ErrUnknownChannel indicates a send referenced a channel that was never
// registered.
var ErrUnknownChannel = errors.New("notify: unknown channel")

// Message is one notification to deliver.
type Message struct {
	Title    string
	Body     string
	DogID    string
	Critical bool
}

// Channel delivers messages over one transport (mobile push, persistent
// notification, TTS, ...).
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// BreakerName returns the circuit breaker name guarding one channel.
func BreakerName(channel string) string {
	return "notification_channel_" + channel
}

// Dispatcher fans messages out to registered channels, one breaker each.
type Dispatcher struct {
	manager *resilience.Manager
	logger  log.Logger

	mu       sync.RWMutex
	channels map[string]Channel
}

// NewDispatcher creates a Dispatcher. A nil logger is replaced with a no-op
// logger.
func NewDispatcher(manager *resilience.Manager, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewNop()
	}

	return &Dispatcher{
		manager:  manager,
		logger:   logger,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel and configures its breaker with the tolerant
// notification preset. Re-registering a name replaces the channel; its
// breaker keeps the existing state.
func (d *Dispatcher) Register(channel Channel) {
	d.mu.Lock()
	d.channels[channel.Name()] = channel
	d.mu.Unlock()

	err := d.manager.Configure(BreakerName(channel.Name()), circuitbreaker.NotificationChannelConfig())
	if err != nil && !errors.Is(err, resilience.ErrBreakerExists) {
		d.logger.Log(context.Background(), log.LevelWarn, "failed to configure channel breaker",
			log.String("channel", channel.Name()),
			log.Err(err),
		)
	}
}

// Channels returns the registered channel names.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}

	return names
}

// Send delivers msg to the named channels, or to every registered channel
// when none are named. Channels are attempted independently; the returned
// error aggregates per-channel failures and is nil only if all deliveries
// succeeded.
func (d *Dispatcher) Send(ctx context.Context, msg Message, channels ...string) error {
	targets := channels
	if len(targets) == 0 {
		targets = d.Channels()
	}

	var errs []error

	for _, name := range targets {
		if err := d.sendOne(ctx, name, msg); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) sendOne(ctx context.Context, name string, msg Message) error {
	d.mu.RLock()
	channel, exists := d.channels[name]
	d.mu.RUnlock()

	if !exists {
		return ErrUnknownChannel
	}

	// Fire once or fail: no retry, so a flaky channel degrades alone and
	// the breaker decides when to stop trying it altogether.
	_, err := d.manager.Execute(ctx, BreakerName(name), func(ctx context.Context) (any, error) {
		return nil, channel.Send(ctx, msg)
	})
	if err != nil {
		d.logger.Log(ctx, log.LevelWarn, "notification delivery failed",
			log.String("channel", name),
			log.String("dog_id", msg.DogID),
			log.Bool("critical", msg.Critical),
			log.Err(err),
		)

		return err
	}

	return nil
}
