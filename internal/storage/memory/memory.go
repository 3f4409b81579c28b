// Package memory is an in-process storage adapter. A single store-wide mutex
// serializes every unit of work; transactions run on a copy of the state that
// replaces the live state only when the transaction function succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"food-delivery/internal/models"
	"food-delivery/internal/storage"
)

type cartKey struct {
	owner string
	ref   string
}

type state struct {
	seq int64

	carts     map[string]models.CartLine
	cartSeq   map[string]int64
	cartIndex map[cartKey]string

	orders       map[string]models.Order
	orderSeq     map[string]int64
	orderNumbers map[string]string

	deliveries  map[string]models.Delivery
	deliverySeq map[string]int64
	byOrder     map[string]string

	statusLog []models.StatusLogEntry
}

func newState() *state {
	return &state{
		carts:        make(map[string]models.CartLine),
		cartSeq:      make(map[string]int64),
		cartIndex:    make(map[cartKey]string),
		orders:       make(map[string]models.Order),
		orderSeq:     make(map[string]int64),
		orderNumbers: make(map[string]string),
		deliveries:   make(map[string]models.Delivery),
		deliverySeq:  make(map[string]int64),
		byOrder:      make(map[string]string),
	}
}

// Stored values are never mutated in place, so a shallow copy of each map is enough.
func (s *state) clone() *state {
	return &state{
		seq:          s.seq,
		carts:        maps.Clone(s.carts),
		cartSeq:      maps.Clone(s.cartSeq),
		cartIndex:    maps.Clone(s.cartIndex),
		orders:       maps.Clone(s.orders),
		orderSeq:     maps.Clone(s.orderSeq),
		orderNumbers: maps.Clone(s.orderNumbers),
		deliveries:   maps.Clone(s.deliveries),
		deliverySeq:  maps.Clone(s.deliverySeq),
		byOrder:      maps.Clone(s.byOrder),
		statusLog:    slices.Clone(s.statusLog),
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

type runner func(fn func(st *state) error) error

// Store implements storage.Store in memory.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: newState(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) run(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) Carts() storage.CartStore          { return &cartStore{run: s.run, now: s.now} }
func (s *Store) Orders() storage.OrderStore        { return &orderStore{run: s.run} }
func (s *Store) Deliveries() storage.DeliveryStore { return &deliveryStore{run: s.run} }
func (s *Store) StatusLog() storage.StatusLogStore { return &statusLogStore{run: s.run} }
func (s *Store) Ping(ctx context.Context) error    { return ctx.Err() }

// WithTx holds the store lock for the whole of fn. Stores obtained from the
// Store itself must not be used inside fn; use the ones on tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	tx := &txView{st: work, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.data = work
	return nil
}

type txView struct {
	st  *state
	now func() time.Time
}

func (t *txView) run(fn func(st *state) error) error { return fn(t.st) }

func (t *txView) Carts() storage.CartStore          { return &cartStore{run: t.run, now: t.now} }
func (t *txView) Orders() storage.OrderStore        { return &orderStore{run: t.run} }
func (t *txView) Deliveries() storage.DeliveryStore { return &deliveryStore{run: t.run} }
func (t *txView) StatusLog() storage.StatusLogStore { return &statusLogStore{run: t.run} }
