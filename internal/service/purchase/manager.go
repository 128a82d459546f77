package purchase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viltskaa/prometei/internal/service/seats"
)

var ErrSessionNotFound = errors.New("workflow session not found")

type ManagerConfig struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Manager owns the live workflow sessions. Each open purchase gets its own
// orchestrator with its own seat pools; abandoned sessions are swept so their
// unsettled purchases get cancelled.
type Manager struct {
	cfg        ManagerConfig
	catalog    Catalog
	backend    Backend
	newSession SessionFactory
	newRand    func() *rand.Rand

	mu       sync.Mutex
	sessions map[string]*Orchestrator
}

func NewManager(cfg ManagerConfig, catalog Catalog, backend Backend, newSession SessionFactory) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Manager{
		cfg:        cfg,
		catalog:    catalog,
		backend:    backend,
		newSession: newSession,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		sessions: make(map[string]*Orchestrator),
	}
}

// Create opens a new workflow session and returns it registered under a
// fresh id. A failed open leaves nothing behind.
func (m *Manager) Create(ctx context.Context, req OpenRequest) (*Orchestrator, error) {
	id := uuid.NewString()
	o := NewOrchestrator(id, m.catalog, m.backend, seats.NewAllocator(m.newRand()), m.newSession)
	if err := o.Open(ctx, req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = o
	m.mu.Unlock()
	return o, nil
}

func (m *Manager) Get(id string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return o, nil
}

// Close ends one session and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	o, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	o.Close(ctx)
	return nil
}

// Sweep closes every session idle past the TTL and reports how many went.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-m.cfg.SessionTTL)

	m.mu.Lock()
	expired := make([]*Orchestrator, 0)
	for id, o := range m.sessions {
		if o.IdleSince().Before(cutoff) {
			expired = append(expired, o)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, o := range expired {
		o.Close(ctx)
	}
	return len(expired)
}

// Run sweeps on an interval until the context ends, then closes everything.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll(context.Background())
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Orchestrator, 0, len(m.sessions))
	for id, o := range m.sessions {
		all = append(all, o)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, o := range all {
		o.Close(ctx)
	}
}
