package store

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-authclient"
)

// Bus is an in-process storage area shared by MemoryStores. Each store on
// the bus models one "tab": it observes writes from the others, never its
// own.
type Bus struct {
	mu     sync.Mutex
	rec    record
	stores []*MemoryStore
}

// NewBus creates an empty shared storage area.
func NewBus() *Bus {
	return &Bus{}
}

// NewStore attaches a new store to the bus.
func (b *Bus) NewStore() *MemoryStore {
	s := &MemoryStore{
		bus:         b,
		writerID:    newWriterID(),
		subscribers: map[int]func(authclient.StorageChange){},
	}

	b.mu.Lock()
	b.stores = append(b.stores, s)
	b.mu.Unlock()

	return s
}

func (b *Bus) save(token, writer string) {
	b.mu.Lock()
	b.rec = record{
		Token:  token,
		Writer: writer,
		Seq:    time.Now().UnixNano(),
	}
	stores := make([]*MemoryStore, len(b.stores))
	copy(stores, b.stores)
	b.mu.Unlock()

	change := authclient.StorageChange{
		Token:   token,
		Cleared: token == "",
	}
	for _, s := range stores {
		if s.writerID != writer {
			s.dispatch(change)
		}
	}
}

// MemoryStore is a SessionStore for tests.
type MemoryStore struct {
	bus         *Bus
	writerID    string
	mu          sync.Mutex
	subscribers map[int]func(authclient.StorageChange)
	nextSubID   int
}

var _ authclient.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore returns a standalone store on its own bus.
func NewMemoryStore() *MemoryStore {
	return NewBus().NewStore()
}

func (s *MemoryStore) Read(ctx context.Context) (string, error) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.bus.rec.Token, nil
}

func (s *MemoryStore) Write(ctx context.Context, token string) error {
	s.bus.save(token, s.writerID)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.bus.save("", s.writerID)
	return nil
}

func (s *MemoryStore) OnExternalChange(fn func(authclient.StorageChange)) (func(), error) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) dispatch(change authclient.StorageChange) {
	s.mu.Lock()
	fns := make([]func(authclient.StorageChange), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
