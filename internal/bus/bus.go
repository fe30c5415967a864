// Package bus is the cross-component notification fabric the Chain
// Mutator uses to announce newBlock and broadcastBlock events and to
// accept transactionsSaved notices from the pool. It is a thin wrapper
// around github.com/bobg/multichan, grounded on the teacher's use of
// *multichan.W as the custodian's one-to-many block feed (custodian.go,
// pin.go's RunPin reader loop).
package bus

import (
	"context"

	"github.com/bobg/multichan"
)

// Event is one notification carried on the bus.
type Event struct {
	Topic string
	Block interface{}
}

const (
	TopicNewBlock          = "newBlock"
	TopicBroadcastBlock    = "broadcastBlock"
	TopicTransactionsSaved = "transactionsSaved"
)

// Bus fans a single writer out to any number of readers, exactly like
// the teacher's multichan.W/multichan.R pair.
type Bus struct {
	w *multichan.W
}

// New constructs a Bus.
func New() *Bus {
	return &Bus{w: multichan.New((*Event)(nil))}
}

// Emit publishes an event to every current and future reader.
func (b *Bus) Emit(topic string, payload interface{}) {
	b.w.Write(&Event{Topic: topic, Block: payload})
}

// Reader returns a new subscriber. Readers that no longer need the feed
// play no further part; multichan has no explicit unsubscribe beyond
// letting the reader go out of scope, matching the teacher's usage.
func (b *Bus) Reader() *multichan.R {
	return b.w.Reader()
}

// Subscribe runs f on every event from topic until ctx is done. It is
// meant to be started as a goroutine by a collaborator (the peer network
// subscribing to broadcastBlock, for instance) the way the teacher's
// RunPin is started as a goroutine by main.
func Subscribe(ctx context.Context, b *Bus, topic string, f func(*Event)) {
	r := b.Reader()
	for {
		v, ok := r.Read(ctx)
		if !ok {
			return
		}
		ev := v.(*Event)
		if ev == nil || ev.Topic != topic {
			continue
		}
		f(ev)
	}
}
