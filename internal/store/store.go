// Package store persists orders in a single JSON document on disk.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/homly/storefront/internal/order"
)

// ErrNotFound is returned when no order has the requested ID.
var ErrNotFound = errors.New("order not found")

// ErrExists is returned when creating an order whose ID is already stored.
var ErrExists = errors.New("order already exists")

// FileStore keeps every order in one JSON file keyed by order ID. All
// operations hold the mutex for the full read-modify-write cycle.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the backing file.
func (s *FileStore) Path() string { return s.path }

// loadUnlocked reads the file WITHOUT acquiring the mutex.
func (s *FileStore) loadUnlocked() (map[string]order.Order, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]order.Order), nil
		}
		return nil, fmt.Errorf("load orders: %w", err)
	}
	out := make(map[string]order.Order)
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	return out, nil
}

// saveUnlocked writes the file WITHOUT acquiring the mutex. It writes to a
// sibling temp file and renames it into place.
func (s *FileStore) saveUnlocked(m map[string]order.Order) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// Create persists a new order.
func (s *FileStore) Create(ctx context.Context, o order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.ID == "" {
		return fmt.Errorf("create order: %w: empty id", order.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if _, ok := m[o.ID]; ok {
		return fmt.Errorf("create order %s: %w", o.ID, ErrExists)
	}
	m[o.ID] = o
	return s.saveUnlocked(m)
}

// Get looks up an order by ID.
func (s *FileStore) Get(ctx context.Context, id string) (order.Order, error) {
	if err := ctx.Err(); err != nil {
		return order.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadUnlocked()
	if err != nil {
		return order.Order{}, err
	}
	o, ok := m[id]
	if !ok {
		return order.Order{}, fmt.Errorf("get order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// List returns all orders, newest first. Ties are broken by ID.
func (s *FileStore) List(ctx context.Context) ([]order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	m, err := s.loadUnlocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
