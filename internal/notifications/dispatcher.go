package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	ErrQueueFull        = errors.New("notification queue full")
	ErrDispatcherClosed = errors.New("notification dispatcher closed")
)

const (
	defaultQueueSize   = 256
	defaultWorkers     = 2
	defaultSendTimeout = 30 * time.Second
)

type intentSender interface {
	Send(ctx context.Context, intent Intent) error
}

// Dispatcher delivers intents in-process. Emit never blocks: intents go into
// a buffered queue drained by a fixed pool of workers.
type Dispatcher struct {
	sender      intentSender
	logg        *logger.Logger
	queue       chan Intent
	workers     int
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	wg        sync.WaitGroup

	errMu     sync.Mutex
	drainErrs error
}

func NewDispatcher(sender intentSender, queueSize, workers int, logg *logger.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sender required")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{
		sender:      sender,
		logg:        logg,
		queue:       make(chan Intent, queueSize),
		workers:     workers,
		sendTimeout: defaultSendTimeout,
	}, nil
}

// Emit queues an intent. It returns ErrQueueFull when the buffer is full and
// ErrDispatcherClosed after Close.
func (d *Dispatcher) Emit(ctx context.Context, intent Intent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- intent:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Run starts the workers, waits for ctx to end, then drains the queue.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start()
	<-ctx.Done()
	return d.Close()
}

// Close stops accepting intents, waits for the queue to drain and returns
// the combined error of every send that failed while draining.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return d.drainErr()
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.Start()
	d.wg.Wait()
	return d.drainErr()
}

// Pending reports the number of queued intents.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for intent := range d.queue {
		if err := d.deliver(intent); err != nil && d.isClosed() {
			d.errMu.Lock()
			d.drainErrs = multierr.Append(d.drainErrs, err)
			d.errMu.Unlock()
		}
	}
}

// deliver detaches from any request context so a finished request does not
// cancel its email.
func (d *Dispatcher) deliver(intent Intent) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()
	if err := d.sender.Send(ctx, intent); err != nil {
		d.logg.Error(d.logg.WithFields(ctx, intentFields(intent)), "notification delivery failed", err)
		return err
	}
	return nil
}

func (d *Dispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

func (d *Dispatcher) drainErr() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.drainErrs
}
