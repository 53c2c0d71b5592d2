package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// ErrNotFound is returned by a Backend that has nothing stored yet.
var ErrNotFound = errors.New("identity not found")

// Identity is the durable client identity. ID never changes once created.
type Identity struct {
	ID          types.PlayerID `yaml:"player_id"`
	DisplayName string         `yaml:"display_name"`
}

// Backend persists one identity. Create stores id only when nothing is
// stored yet; Save overwrites.
type Backend interface {
	Load(ctx context.Context) (Identity, error)
	Create(ctx context.Context, id Identity) error
	Save(ctx context.Context, id Identity) error
}

// Store hands out the client's identity, creating it on first use. Two
// stores over the same backend always agree on the ID.
type Store struct {
	mu      sync.Mutex
	backend Backend
	newID   func() types.PlayerID
}

type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for new identities.
func WithIDGenerator(gen func() types.PlayerID) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		newID:   func() types.PlayerID { return types.PlayerID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetOrCreate(ctx context.Context) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(ctx)
}

func (s *Store) getOrCreate(ctx context.Context) (Identity, error) {
	id, err := s.backend.Load(ctx)
	if err == nil && id.ID != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Identity{}, fmt.Errorf("load identity: %w", err)
	}

	// Another process may create the same profile concurrently. Whichever
	// identity landed first is the one everybody returns.
	if err := s.backend.Create(ctx, Identity{ID: s.newID()}); err != nil {
		return Identity{}, fmt.Errorf("create identity: %w", err)
	}
	id, err = s.backend.Load(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("reload identity: %w", err)
	}
	return id, nil
}

// SetDisplayName stores a trimmed name. Blank input leaves the stored
// name alone.
func (s *Store) SetDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.getOrCreate(ctx)
	if err != nil {
		return err
	}
	if id.DisplayName == name {
		return nil
	}
	id.DisplayName = name
	if err := s.backend.Save(ctx, id); err != nil {
		return fmt.Errorf("save display name: %w", err)
	}
	return nil
}

// MemoryBackend keeps the identity for the life of the process.
type MemoryBackend struct {
	mu sync.Mutex
	id *Identity
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (m *MemoryBackend) Load(context.Context) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == nil {
		return Identity{}, ErrNotFound
	}
	return *m.id, nil
}

func (m *MemoryBackend) Create(_ context.Context, id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == nil {
		m.id = &id
	}
	return nil
}

func (m *MemoryBackend) Save(_ context.Context, id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = &id
	return nil
}
