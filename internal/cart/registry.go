package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const sweepJob = "cart_sweep"

// ErrDeviceRequired is returned when a cart is requested without a device id.
var ErrDeviceRequired = errors.New("device id required")

type deviceLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// Registry hands out cart stores, one per device and request. Carts live in
// the Persister so any API process can serve a device; the registry only
// keeps the per-device lock that serialises mutations inside this process.
// It is created at process start and closed at exit.
type Registry struct {
	mu      sync.Mutex
	locks   map[string]*deviceLock
	persist Persister
	idle    time.Duration
	logg    *logger.Logger
	jobs    *metrics.JobMetrics
	now     func() time.Time
}

// NewRegistry builds a registry that loads stores through persist and forgets
// device locks after idle without use.
func NewRegistry(persist Persister, idle time.Duration, logg *logger.Logger) *Registry {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{
		locks:   make(map[string]*deviceLock),
		persist: persist,
		idle:    idle,
		logg:    logg,
		now:     time.Now,
	}
}

// WithJobMetrics records each periodic sweep under the cart_sweep job.
func (r *Registry) WithJobMetrics(m *metrics.JobMetrics) *Registry {
	r.jobs = m
	return r
}

// For reads the current cart of deviceID from the Persister.
func (r *Registry) For(ctx context.Context, deviceID string) (*Store, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}

	r.mu.Lock()
	lock, ok := r.locks[deviceID]
	if !ok {
		lock = &deviceLock{}
		r.locks[deviceID] = lock
	}
	lock.lastUsed = r.now()
	r.mu.Unlock()

	return load(ctx, deviceID, r.persist, r.logg, &lock.mu), nil
}

// Sweep forgets device locks idle for longer than the idle window and returns
// how many were dropped.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, lock := range r.locks {
		if lock.lastUsed.Before(cutoff) {
			delete(r.locks, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := r.now()
			n := r.Sweep()
			r.jobs.Track(sweepJob, start, nil)
			if n > 0 {
				r.logg.Debug(r.logg.WithField(ctx, "evicted", n), "cart.registry_swept")
			}
		}
	}
}

// Len reports how many devices hold a lock.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Close forgets every device lock.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = make(map[string]*deviceLock)
}
