// Package eventbus implements the per-work-order event fan-out of spec
// §4.2: an append-only JSON-lines log for replay, plus an in-memory
// subscriber set per work order. Shaped after the broker/subscription
// split in the pack's production pub-sub example (bounded per-subscriber
// channel, panic-safe dispatch) but simplified to the bus's actual
// contract: topic == work order id, no patterns, no acks.
package eventbus

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/domain"
)

// Handler receives events for a single work order.
type Handler func(domain.Event)

// CancelFunc unsubscribes; calling it more than once is a no-op.
type CancelFunc func()

type subscription struct {
	id      uint64
	ch      chan domain.Event
	done    chan struct{}
	closeMu sync.Once
}

// Bus is a process-wide event fan-out keyed by work order id.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*subscription
	nextID uint64

	logMu   sync.Mutex
	logFile *os.File

	log *zap.Logger

	bufferSize int
}

// New opens (creating if absent) the JSONL log at logPath and returns a Bus
// that appends every emitted event to it before fanning out in-memory.
func New(logPath string, log *zap.Logger) (*Bus, error) {
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Bus{
		topics:     make(map[string]map[uint64]*subscription),
		logFile:    f,
		log:        log,
		bufferSize: 64,
	}, nil
}

// Close flushes and closes the underlying log file.
func (b *Bus) Close() error {
	b.logMu.Lock()
	defer b.logMu.Unlock()
	return b.logFile.Close()
}

// Subscribe registers handler for events on workOrderId. The returned
// CancelFunc is idempotent. A subscriber for work order X never receives
// events emitted for any other work order.
func (b *Bus) Subscribe(workOrderId string, handler Handler) CancelFunc {
	b.mu.Lock()
	sub := &subscription{
		id:   b.nextID,
		ch:   make(chan domain.Event, b.bufferSize),
		done: make(chan struct{}),
	}
	b.nextID++
	if b.topics[workOrderId] == nil {
		b.topics[workOrderId] = make(map[uint64]*subscription)
	}
	b.topics[workOrderId][sub.id] = sub
	b.mu.Unlock()

	go b.dispatchLoop(sub, handler)

	return func() {
		sub.closeMu.Do(func() {
			close(sub.done)
			b.mu.Lock()
			if m, ok := b.topics[workOrderId]; ok {
				delete(m, sub.id)
				if len(m) == 0 {
					delete(b.topics, workOrderId)
				}
			}
			b.mu.Unlock()
		})
	}
}

func (b *Bus) dispatchLoop(sub *subscription, handler Handler) {
	for {
		select {
		case evt := <-sub.ch:
			b.invoke(handler, evt)
		case <-sub.done:
			return
		}
	}
}

// invoke calls handler, recovering any panic so one misbehaving subscriber
// never poisons the bus or other subscribers' delivery.
func (b *Bus) invoke(handler Handler, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Error("eventbus: subscriber panic recovered",
				zap.String("work_order_id", evt.WorkOrderId),
				zap.Any("panic", r),
			)
		}
	}()
	handler(evt)
}

// Emit appends evt (assigning Id/CreatedAt if unset) to the JSONL log, then
// fans it out to current subscribers of evt.WorkOrderId. Delivery to a slow
// subscriber is bounded: if its buffer is full the event is dropped for
// that subscriber rather than blocking the emitter.
func (b *Bus) Emit(evt domain.Event) error {
	if evt.Id == "" {
		evt.Id = uuid.New().String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	line, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	b.logMu.Lock()
	_, err = b.logFile.Write(append(line, '\n'))
	b.logMu.Unlock()
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := b.topics[evt.WorkOrderId]
	targets := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- evt:
		default:
			if b.log != nil {
				b.log.Warn("eventbus: subscriber buffer full, dropping event",
					zap.String("work_order_id", evt.WorkOrderId),
					zap.String("event_type", evt.Type),
				)
			}
		}
	}
	return nil
}
