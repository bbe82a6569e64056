// Package ledger remembers which state-changing actions already happened.
//
// Callers check Contains before acting and Record only after the action is
// confirmed. Two invocations racing on the same key can both pass the check;
// nothing here serializes them.
package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrEmptyKey is returned for blank keys
var ErrEmptyKey = errors.New("ledger key must not be empty")

// Storage persists the set of keys
type Storage interface {
	Contains(ctx context.Context, key string) (bool, error)
	Append(ctx context.Context, key string) error
}

// Ledger is the dedup service executors talk to
type Ledger struct {
	store  Storage
	logger *zap.Logger
}

// New creates a ledger over store
func New(store Storage, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger.Named("ledger")}
}

// Contains reports whether key was recorded
func (l *Ledger) Contains(ctx context.Context, key string) (bool, error) {
	key, err := normalize(key)
	if err != nil {
		return false, err
	}
	ok, err := l.store.Contains(ctx, key)
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return ok, nil
}

// Record appends key. Call only after the action succeeded.
func (l *Ledger) Record(ctx context.Context, key string) error {
	key, err := normalize(key)
	if err != nil {
		return err
	}
	if err := l.store.Append(ctx, key); err != nil {
		return fmt.Errorf("ledger append failed: %w", err)
	}
	l.logger.Debug("Key recorded", zap.String("key", key))
	return nil
}

func normalize(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "\r\n") {
		return "", ErrEmptyKey
	}
	return key, nil
}

// FileStorage keeps one key per line in a text file
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage creates file-backed storage at path. The file is created
// on first append.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Contains(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == key {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func (s *FileStorage) Append(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	_, err = f.Write([]byte(key + "\n"))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// MemoryStorage is an in-process set
type MemoryStorage struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryStorage creates an empty in-memory set
func NewMemoryStorage(keys ...string) *MemoryStorage {
	s := &MemoryStorage{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s *MemoryStorage) Contains(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStorage) Append(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return nil
}

// Len returns how many keys are stored
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
