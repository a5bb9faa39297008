package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

const (
	popTimeout      = 5 * time.Second
	deliveryTimeout = 15 * time.Second
	errorBackoff    = time.Second
)

// Source yields encoded events, usually from a redis queue.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Worker consumes queued events until its context ends.
type Worker struct {
	source     Source
	dispatcher *Dispatcher
}

func NewWorker(source Source, dispatcher *Dispatcher) *Worker {
	return &Worker{source: source, dispatcher: dispatcher}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := w.source.Pop(ctx, popTimeout)
		if err != nil {
			switch {
			case errors.Is(err, redisclient.ErrQueueEmpty):
			case ctx.Err() != nil:
				return
			default:
				log.Printf("notifier pop failed err=%v", err)
				select {
				case <-time.After(errorBackoff):
				case <-ctx.Done():
					return
				}
			}
			continue
		}

		var ev appointment.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("notifier dropped malformed event err=%v", err)
			continue
		}
		if ev.Appointment == nil {
			log.Printf("notifier dropped event without appointment type=%s", ev.Type)
			continue
		}

		deliver(w.dispatcher, ev)
	}
}
