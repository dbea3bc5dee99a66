// Package events fans bridge events out to persistence, NATS and websocket subscribers
package events

import (
	"context"
	"sync"
	"time"

	"bridge-backend/internal/bridge"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Envelope is one emitted event with the identity shared by every subscriber.
// ID doubles as the event log primary key and the NATS message id.
type Envelope struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	TransferID *uint64      `json:"transfer_id,omitempty"`
	EmittedAt  time.Time    `json:"emitted_at"`
	Data       bridge.Event `json:"data"`
}

func NewEnvelope(ev bridge.Event) *Envelope {
	env := &Envelope{
		ID:        uuid.NewString(),
		Name:      ev.Name(),
		EmittedAt: time.Now().UTC(),
		Data:      ev,
	}
	if te, ok := ev.(bridge.TransferEvent); ok {
		id := te.TransferID()
		env.TransferID = &id
	}
	return env
}

// Subscriber receives every envelope. Handle runs synchronously inside the
// bridge call that emitted the event and must not block for long.
type Subscriber interface {
	Handle(ctx context.Context, env *Envelope)
}

// SubscriberFunc adapts a function to Subscriber
type SubscriberFunc func(ctx context.Context, env *Envelope)

func (f SubscriberFunc) Handle(ctx context.Context, env *Envelope) { f(ctx, env) }

// Bus implements bridge.EventSink. Subscribers can be added after the bridge is built.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
	logger      *logrus.Logger
}

type namedSubscriber struct {
	name string
	sub  Subscriber
}

var _ bridge.EventSink = (*Bus)(nil)

func NewBus(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe registers sub; delivery follows registration order
func (b *Bus) Subscribe(name string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedSubscriber{name: name, sub: sub})
	b.logger.Infof("📡 Event subscriber registered: %s", name)
}

// Emit wraps ev once and hands it to every subscriber; a panicking subscriber is logged and skipped
func (b *Bus) Emit(ctx context.Context, ev bridge.Event) {
	env := NewEnvelope(ev)

	b.mu.RLock()
	subs := make([]namedSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, env)
	}
}

func (b *Bus) deliver(ctx context.Context, s namedSubscriber, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"subscriber": s.name,
				"event":      env.Name,
				"panic":      r,
			}).Error("❌ Event subscriber panicked")
		}
	}()
	s.sub.Handle(ctx, env)
}
