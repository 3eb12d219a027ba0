// Package dispatch runs the pipeline's background machinery: the event bus
// that fans committed store events out to runtime components, the assigner
// that matches queued tasks to eligible reviewers, the deadline monitor that
// enforces the review SLA, and the pre-warner that nudges reviewers before
// their deadline lands.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
	"github.com/okiro/relais/internal/pubsub"
)

// filterBuffer is the channel capacity of a topic-filtered subscription.
const filterBuffer = 64

// BusEvent is a broker-stamped envelope around a domain event.
type BusEvent = pubsub.Event[review.Event]

// Bus carries committed domain events from the store to every runtime
// component: the assigner wakes on queue activity, the gateway notifies
// reviewer sessions, and the API streams events to its subscribers.
// Delivery is at-most-once; a slow subscriber misses events rather than
// stalling the publisher.
type Bus struct {
	broker *pubsub.Broker[review.Event]
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{broker: pubsub.NewBroker[review.Event]()}
}

// Publish fans the event out to all subscribers, stamping the timestamp if
// the publisher left it zero. Satisfies the store's publisher contract.
func (b *Bus) Publish(evt review.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.broker.Publish(evt)
}

// Subscribe returns a channel carrying every event on the bus. The channel
// is closed when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context) <-chan BusEvent {
	return b.broker.Subscribe(ctx)
}

// SubscribeTopics returns a channel carrying only events whose topic is in
// topics. With no topics it behaves like Subscribe. The channel is closed
// when ctx is cancelled or the bus shuts down.
func (b *Bus) SubscribeTopics(ctx context.Context, topics ...review.Topic) <-chan BusEvent {
	if len(topics) == 0 {
		return b.Subscribe(ctx)
	}

	want := make(map[review.Topic]struct{}, len(topics))
	for _, t := range topics {
		want[t] = struct{}{}
	}

	in := b.broker.Subscribe(ctx)
	out := make(chan BusEvent, filterBuffer)
	log.SafeGo(fmt.Sprintf("bus.filter(%d topics)", len(topics)), func() {
		defer close(out)
		for evt := range in {
			if _, ok := want[evt.Payload.Topic]; !ok {
				continue
			}
			select {
			case out <- evt:
			default:
				// Subscriber is full; drop rather than stall the filter.
			}
		}
	})
	return out
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	return b.broker.SubscriberCount()
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.broker.Close()
}
