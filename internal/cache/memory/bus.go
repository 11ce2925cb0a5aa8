package memory

import (
	"context"
	"sync"

	"github.com/marketfeed/marketfeed/internal/domain"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing messages rather than blocking the
// publisher.
const subscriberBuffer = 128

// Bus is an in-process domain.SignalBus for single-instance deployments.
// Channel names are matched exactly; no pattern subscriptions.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan []byte)}
}

// Publish delivers payload to every current subscriber of channel. Slow
// subscribers whose buffers are full are skipped. The sends happen under the
// read lock: they are non-blocking, and subscriber channels are only closed
// under the write lock, so a publisher can never race a close.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for channel. The returned channel is
// closed and the subscription removed when ctx is cancelled. The close runs
// while the write lock is held; see Publish.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[channel]
		for i, c := range list {
			if c == ch {
				b.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
		close(ch)
	}()

	return ch, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*Bus)(nil)
