package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

// Sink is where encoded events go, usually a redis queue.
type Sink interface {
	Push(ctx context.Context, payload []byte) error
}

// QueueEmitter publishes events for the notifier process.
type QueueEmitter struct {
	sink Sink
}

func NewQueueEmitter(sink Sink) *QueueEmitter {
	return &QueueEmitter{sink: sink}
}

func (e *QueueEmitter) Emit(ctx context.Context, ev appointment.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return e.sink.Push(ctx, payload)
}

var ErrEmitterClosed = errors.New("emitter closed")

// AsyncEmitter dispatches events in-process on a fixed set of goroutines.
// It is used when no redis queue is configured.
type AsyncEmitter struct {
	events chan appointment.Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewAsyncEmitter(d *Dispatcher, workers, buffer int) *AsyncEmitter {
	if workers <= 0 {
		workers = 1
	}
	e := &AsyncEmitter{
		events: make(chan appointment.Event, buffer),
		done:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.loop(d)
	}
	return e
}

func (e *AsyncEmitter) loop(d *Dispatcher) {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.events:
			deliver(d, ev)
		case <-e.done:
			// drain what was accepted before close
			for {
				select {
				case ev := <-e.events:
					deliver(d, ev)
				default:
					return
				}
			}
		}
	}
}

func deliver(d *Dispatcher, ev appointment.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := d.Handle(ctx, ev); err != nil {
		log.Printf("notification failed type=%s err=%v", ev.Type, err)
	}
}

func (e *AsyncEmitter) Emit(ctx context.Context, ev appointment.Event) error {
	select {
	case <-e.done:
		return ErrEmitterClosed
	default:
	}

	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEmitterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (e *AsyncEmitter) Close() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}
