package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-authclient"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// FileStore persists the bearer token in a JSON file namespaced per backend
// origin, the native-client stand-in for the browser's per-origin key-value
// store. Writes are atomic (temp file + rename) and carry a writer id, so
// notifications fired by the directory watcher can skip self-originated
// changes.
type FileStore struct {
	mu          sync.Mutex
	path        string
	dir         string
	writerID    string
	logger      authclient.Logger
	watcher     *fsnotify.Watcher
	subscribers map[int]func(authclient.StorageChange)
	nextSubID   int
	lastSeen    int64
	done        chan struct{}
	closed      bool
}

var _ authclient.SessionStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir for the given backend origin
// (typically the API base URL). Different origins map to different files, so
// clients of two backends never trample each other's sessions.
func NewFileStore(dir, origin string) (*FileStore, error) {
	if origin == "" {
		return nil, errors.New("session store requires a backend origin", errors.CategoryValidation)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create session storage dir")
	}

	ns, err := hashid.NewUUID(origin)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to derive storage namespace")
	}

	return &FileStore{
		path:        filepath.Join(dir, "session-"+ns.String()+".json"),
		dir:         dir,
		writerID:    newWriterID(),
		logger:      nil,
		subscribers: map[int]func(authclient.StorageChange){},
		done:        make(chan struct{}),
	}, nil
}

func (s *FileStore) WithLogger(logger authclient.Logger) *FileStore {
	s.logger = logger
	return s
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read returns the persisted token, empty when absent.
func (s *FileStore) Read(ctx context.Context) (string, error) {
	rec, err := s.load()
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	return rec.Token, nil
}

// Write persists the token.
func (s *FileStore) Write(ctx context.Context, token string) error {
	return s.save(token)
}

// Clear removes the persisted token. The file stays as an empty-token
// tombstone so the writer id keeps suppressing self-notifications.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.save("")
}

// OnExternalChange subscribes to mutations performed by other processes
// sharing the same file. The watcher starts with the first subscriber.
func (s *FileStore) OnExternalChange(fn func(authclient.StorageChange)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("session store is closed", errors.CategoryOperation)
	}

	if s.watcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create storage watcher")
		}
		// Watch the directory, not the file: atomic renames replace the
		// inode and would silently detach a file watch.
		if err := watcher.Add(s.dir); err != nil {
			watcher.Close()
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to watch session storage dir")
		}
		s.watcher = watcher
		go s.watch(watcher)
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

// Close stops the watcher. Persisted data is left in place.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

func (s *FileStore) load() (*record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to read session file")
	}

	rec := &record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "session file is corrupt")
	}
	return rec, nil
}

func (s *FileStore) save(token string) error {
	rec := record{
		Token:  token,
		Writer: s.writerID,
		Seq:    time.Now().UnixNano(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode session record")
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to stage session write")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CategoryOperation, "failed to write session record")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CategoryOperation, "failed to set session file mode")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CategoryOperation, "failed to finalize session record")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CategoryOperation, "failed to commit session record")
	}

	s.mu.Lock()
	s.lastSeen = rec.Seq
	s.mu.Unlock()

	return nil
}

func (s *FileStore) watch(watcher *fsnotify.Watcher) {
	base := filepath.Base(s.path)

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				s.handleChange()
			}
			if event.Op&fsnotify.Remove != 0 {
				s.dispatch(authclient.StorageChange{Cleared: true})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.warn("session storage watch error: %v", err)
		}
	}
}

func (s *FileStore) handleChange() {
	rec, err := s.load()
	if err != nil || rec == nil {
		return
	}

	s.mu.Lock()
	if rec.Writer == s.writerID || rec.Seq == s.lastSeen {
		s.mu.Unlock()
		return
	}
	s.lastSeen = rec.Seq
	s.mu.Unlock()

	s.dispatch(authclient.StorageChange{
		Token:   rec.Token,
		Cleared: rec.Token == "",
	})
}

func (s *FileStore) dispatch(change authclient.StorageChange) {
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

func (s *FileStore) warn(format string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(format, args...)
	}
}
