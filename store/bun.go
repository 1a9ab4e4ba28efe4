package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	"github.com/goliatone/go-authclient"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// SessionRow is the single-row KV record backing BunStore.
type SessionRow struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:s"`

	Key       string    `bun:"key,pk"`
	Token     string    `bun:"token"`
	Writer    string    `bun:"writer"`
	Seq       int64     `bun:"seq"`
	UpdatedAt time.Time `bun:"updated_at"`
}

// BunStore persists the session in a bun-managed database, for host
// applications that already carry one (the teacher pattern: sqlite via
// sqliteshim). External changes are detected by polling the row's Seq, since
// sqlite offers no cross-process change feed.
type BunStore struct {
	mu          sync.Mutex
	db          *bun.DB
	key         string
	writerID    string
	interval    time.Duration
	subscribers map[int]func(authclient.StorageChange)
	nextSubID   int
	lastSeen    int64
	done        chan struct{}
	polling     bool
	closed      bool
}

var _ authclient.SessionStore = (*BunStore)(nil)

// NewBunStore creates the session table when missing and returns a store
// namespaced per backend origin.
func NewBunStore(ctx context.Context, db *bun.DB, origin string) (*BunStore, error) {
	if origin == "" {
		return nil, errors.New("session store requires a backend origin", errors.CategoryValidation)
	}

	ns, err := hashid.NewUUID(origin)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to derive storage namespace")
	}

	if _, err := db.NewCreateTable().
		Model((*SessionRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to ensure session table")
	}

	return &BunStore{
		db:          db,
		key:         ns.String(),
		writerID:    newWriterID(),
		interval:    time.Second,
		subscribers: map[int]func(authclient.StorageChange){},
		done:        make(chan struct{}),
	}, nil
}

// WithPollInterval overrides how often the store checks for external
// changes.
func (s *BunStore) WithPollInterval(interval time.Duration) *BunStore {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// Read returns the persisted token, empty when absent.
func (s *BunStore) Read(ctx context.Context) (string, error) {
	row, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return row.Token, nil
}

// Write persists the token.
func (s *BunStore) Write(ctx context.Context, token string) error {
	return s.save(ctx, token)
}

// Clear removes the persisted token, leaving an empty-token tombstone so
// the writer id keeps suppressing self-notifications.
func (s *BunStore) Clear(ctx context.Context) error {
	return s.save(ctx, "")
}

// OnExternalChange subscribes to mutations performed by other processes.
// Polling starts with the first subscriber.
func (s *BunStore) OnExternalChange(fn func(authclient.StorageChange)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("session store is closed", errors.CategoryOperation)
	}

	if !s.polling {
		s.polling = true
		go s.poll()
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}, nil
}

// Close stops polling. The database connection stays open; it belongs to
// the host application.
func (s *BunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

func (s *BunStore) load(ctx context.Context) (*SessionRow, error) {
	row := &SessionRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("key = ?", s.key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to read session row")
	}
	return row, nil
}

func (s *BunStore) save(ctx context.Context, token string) error {
	row := &SessionRow{
		Key:       s.key,
		Token:     token,
		Writer:    s.writerID,
		Seq:       time.Now().UnixNano(),
		UpdatedAt: time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("writer = EXCLUDED.writer").
		Set("seq = EXCLUDED.seq").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to persist session row")
	}

	s.mu.Lock()
	s.lastSeen = row.Seq
	s.mu.Unlock()

	return nil
}

func (s *BunStore) poll() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.checkOnce()
		}
	}
}

func (s *BunStore) checkOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	row, err := s.load(ctx)
	cancel()
	if err != nil || row == nil {
		return
	}

	s.mu.Lock()
	if row.Writer == s.writerID || row.Seq == s.lastSeen {
		s.mu.Unlock()
		return
	}
	s.lastSeen = row.Seq
	fns := make([]func(authclient.StorageChange), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	change := authclient.StorageChange{
		Token:   row.Token,
		Cleared: row.Token == "",
	}
	for _, fn := range fns {
		fn(change)
	}
}
