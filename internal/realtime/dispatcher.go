package realtime

import (
	"context"
	"sync"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/common/metrics"
	"food-marketplace/internal/domain"
)

// Dispatcher takes the envelopes a committed command produced. Dispatch must
// not block the caller for long and never reports failure: a command has
// already succeeded by the time its events go out.
type Dispatcher interface {
	Dispatch(envs []domain.Envelope)
}

// LocalDispatcher delivers straight into this process's Router.
type LocalDispatcher struct {
	router *Router
}

func NewLocalDispatcher(r *Router) *LocalDispatcher {
	return &LocalDispatcher{router: r}
}

func (d *LocalDispatcher) Dispatch(envs []domain.Envelope) {
	d.router.Deliver(envs)
}

// AsyncDispatcher hands batches to next from a single worker goroutine, so
// batches keep their order. Dispatch only enqueues and drops when the queue
// is full. Once stopped, every batch is either flushed or counted as dropped.
type AsyncDispatcher struct {
	next    Dispatcher
	queue   chan []domain.Envelope
	log     *logger.Logger
	metrics *metrics.RealtimeMetrics

	// mu orders enqueues against close so none land after the final flush
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(next Dispatcher, size int, m *metrics.RealtimeMetrics, lg *logger.Logger) *AsyncDispatcher {
	if size <= 0 {
		size = 1024
	}
	return &AsyncDispatcher{
		next:    next,
		queue:   make(chan []domain.Envelope, size),
		log:     lg,
		metrics: m,
		done:    make(chan struct{}),
	}
}

func (d *AsyncDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case envs := <-d.queue:
				d.next.Dispatch(envs)
			case <-ctx.Done():
				d.close()
				d.flush()
				return
			case <-d.done:
				d.flush()
				return
			}
		}
	}()
}

func (d *AsyncDispatcher) flush() {
	for {
		select {
		case envs := <-d.queue:
			d.next.Dispatch(envs)
		default:
			return
		}
	}
}

func (d *AsyncDispatcher) Dispatch(envs []domain.Envelope) {
	if len(envs) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.drop(envs, "stopped")
		return
	}
	select {
	case d.queue <- envs:
	default:
		d.drop(envs, "queue_full")
	}
}

func (d *AsyncDispatcher) drop(envs []domain.Envelope, reason string) {
	d.metrics.Dropped.WithLabelValues(reason).Add(float64(len(envs)))
	d.log.Warn("dispatch_dropped", map[string]any{
		"reason":   reason,
		"order_id": envs[0].Event.OrderID,
		"events":   len(envs),
	})
}

func (d *AsyncDispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.stopped {
		d.stopped = true
		close(d.done)
	}
}

// Stop delivers what is already queued and waits for the worker to exit.
func (d *AsyncDispatcher) Stop() {
	d.close()
	d.wg.Wait()
}
