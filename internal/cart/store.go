package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Store is a snapshot of one device's cart. Every mutation re-reads the
// stored lines under the device lock, applies the change and writes the full
// line list back through the Persister. Persist failures are only logged.
type Store struct {
	mu       *sync.Mutex
	deviceID string
	lines    []Line
	persist  Persister
	logg     *logger.Logger
}

// View is a consistent copy of the lines together with their totals.
type View struct {
	Lines  []Line `json:"items"`
	Totals Totals `json:"totals"`
}

// Load reads the stored cart for deviceID. Missing values, malformed JSON and
// read errors all produce an empty cart.
func Load(ctx context.Context, deviceID string, persist Persister, logg *logger.Logger) *Store {
	return load(ctx, deviceID, persist, logg, &sync.Mutex{})
}

func load(ctx context.Context, deviceID string, persist Persister, logg *logger.Logger, mu *sync.Mutex) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{mu: mu, deviceID: deviceID, persist: persist, logg: logg, lines: []Line{}}
	s.mu.Lock()
	defer s.mu.Unlock()
	if lines, ok := s.readLocked(ctx); ok {
		s.lines = lines
	}
	return s
}

// readLocked fetches the stored lines. ok is false when the read itself
// failed, in which case the caller keeps what it has.
func (s *Store) readLocked(ctx context.Context) ([]Line, bool) {
	if s.persist == nil {
		return nil, false
	}
	raw, found, err := s.persist.Get(ctx, s.deviceID, redis.DeviceCart)
	if err != nil {
		s.logg.Error(s.logg.WithDeviceID(ctx, s.deviceID), "cart.load_failed", err)
		return nil, false
	}
	if !found || raw == "" {
		return []Line{}, true
	}

	var stored []Line
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"device_id": s.deviceID, "error": err.Error()}), "cart.load_malformed")
		return []Line{}, true
	}
	return sanitize(stored), true
}

// sanitize drops lines that violate the cart invariants and merges repeated
// product ids.
func sanitize(stored []Line) []Line {
	out := make([]Line, 0, len(stored))
	index := make(map[uuid.UUID]int, len(stored))
	for _, l := range stored {
		if l.ProductID == uuid.Nil || l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// DeviceID returns the owning device.
func (s *Store) DeviceID() string {
	return s.deviceID
}

// Add puts quantity units of product in the cart. An existing line keeps its
// snapshot and grows; a new line snapshots the product. Non-positive
// quantities are ignored.
func (s *Store) Add(ctx context.Context, product models.Product, quantity int) {
	if quantity <= 0 || product.ID == uuid.Nil {
		return
	}
	s.mutate(ctx, func() bool {
		if i := s.indexOf(product.ID); i >= 0 {
			s.lines[i].Quantity += quantity
			return true
		}
		s.lines = append(s.lines, lineFromProduct(product, quantity))
		return true
	})
}

// Remove drops the line for productID. Absent lines are a no-op.
func (s *Store) Remove(ctx context.Context, productID uuid.UUID) {
	s.mutate(ctx, func() bool {
		return s.removeLocked(productID)
	})
}

// UpdateQuantity sets the quantity exactly; q <= 0 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID uuid.UUID, q int) {
	s.mutate(ctx, func() bool {
		if q <= 0 {
			return s.removeLocked(productID)
		}
		i := s.indexOf(productID)
		if i < 0 {
			return false
		}
		s.lines[i].Quantity = q
		return true
	})
}

// Increment adds one unit to an existing line.
func (s *Store) Increment(ctx context.Context, productID uuid.UUID) {
	s.mutate(ctx, func() bool {
		i := s.indexOf(productID)
		if i < 0 {
			return false
		}
		s.lines[i].Quantity++
		return true
	})
}

// Decrement removes one unit; the line goes away when it reaches zero.
func (s *Store) Decrement(ctx context.Context, productID uuid.UUID) {
	s.mutate(ctx, func() bool {
		i := s.indexOf(productID)
		if i < 0 {
			return false
		}
		if s.lines[i].Quantity <= 1 {
			return s.removeLocked(productID)
		}
		s.lines[i].Quantity--
		return true
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func() bool {
		s.lines = []Line{}
		return true
	})
}

// Contains reports whether productID has a line.
func (s *Store) Contains(productID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

// Quantity returns the line quantity or 0.
func (s *Store) Quantity(productID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Totals recomputes the derived amounts.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeTotals(s.lines)
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// View returns lines and totals taken under one lock.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{Lines: s.copyLocked(), Totals: computeTotals(s.lines)}
}

func (s *Store) copyLocked() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) indexOf(productID uuid.UUID) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(productID uuid.UUID) bool {
	i := s.indexOf(productID)
	if i < 0 {
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return true
}

// mutate refreshes the lines, applies fn under the device lock and persists
// when fn reports a change.
func (s *Store) mutate(ctx context.Context, fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lines, ok := s.readLocked(ctx); ok {
		s.lines = lines
	}
	if !fn() {
		return
	}
	s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.persist == nil {
		return
	}
	payload, err := json.Marshal(s.lines)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"device_id": s.deviceID, "error": err.Error()}), "cart.persist_encode_failed")
		return
	}
	if err := s.persist.Put(ctx, s.deviceID, redis.DeviceCart, string(payload)); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"device_id": s.deviceID, "error": err.Error()}), "cart.persist_failed")
	}
}
