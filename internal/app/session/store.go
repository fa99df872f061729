package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DefaultStorageKey is the key the session record lives under.
const DefaultStorageKey = "CURRENT_USER"

// SessionRecord is the persisted unit: the opaque bearer token handed out by
// the remote authority at login.
type SessionRecord struct {
	Token string `json:"token"`
}

// KV is the persistent key-value store the session record is kept in.
// Get returns false when the key does not exist.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// TokenStore owns the storage key and the record encoding. It is the only
// component that touches the KV.
type TokenStore struct {
	kv     KV
	key    string
	logger *zap.Logger
}

// NewTokenStore creates a store writing under key (DefaultStorageKey when empty).
func NewTokenStore(kv KV, key string, logger *zap.Logger) *TokenStore {
	if key == "" {
		key = DefaultStorageKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{
		kv:     kv,
		key:    key,
		logger: logger.With(zap.String("component", "token_store"), zap.String("key", key)),
	}
}

// Read returns the persisted record. It never fails: a missing key, a backend
// error or a value that is not a record all read as "no session".
func (s *TokenStore) Read(ctx context.Context) (SessionRecord, bool) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("Failed to read session record", zap.Error(err))
		return SessionRecord{}, false
	}
	if !ok {
		return SessionRecord{}, false
	}

	var rec SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("Discarding unreadable session record", zap.Error(err))
		return SessionRecord{}, false
	}
	if rec.Token == "" {
		s.logger.Debug("Session record has no token")
		return SessionRecord{}, false
	}

	return rec, true
}

// Write replaces the persisted record.
func (s *TokenStore) Write(ctx context.Context, rec SessionRecord) error {
	if rec.Token == "" {
		return fmt.Errorf("write session record: %w", ErrNoSession)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	s.logger.Debug("Session record written")
	return nil
}

// Clear removes the record. Clearing an empty store is not an error.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	s.logger.Debug("Session record cleared")
	return nil
}

var (
	_ KV = (*MemoryKV)(nil)
	_ KV = (*FileKV)(nil)
)

// MemoryKV keeps values for the lifetime of the process.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// FileKV stores every key in a single JSON object file. Values must be JSON
// documents; writes go through a temp file and a rename.
type FileKV struct {
	mu   sync.Mutex
	path string
}

func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := items[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("file store: value for %q is not JSON", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		// an unreadable file is replaced rather than blocking every login
		items = make(map[string]json.RawMessage)
	}
	items[key] = json.RawMessage(value)
	return f.save(items)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		// nothing readable to delete from; drop the file
		if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("file store: %w", rmErr)
		}
		return nil
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return f.save(items)
}

func (f *FileKV) load() (map[string]json.RawMessage, error) {
	items := make(map[string]json.RawMessage)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("file store: corrupt %s: %w", f.path, err)
	}
	return items, nil
}

func (f *FileKV) save(items map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}
