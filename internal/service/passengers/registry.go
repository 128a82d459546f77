package passengers

import (
	"errors"
	"sync"

	"github.com/viltskaa/prometei/internal/domain"
)

var ErrSlotOutOfRange = errors.New("passenger slot is out of range")

// Registry collects one identity record per seat. The slot count is fixed at
// workflow open; records are replaced wholesale on every edit.
type Registry struct {
	mu      sync.Mutex
	records []domain.Passenger
}

// NewRegistry builds a registry with the given slot count. When the workflow
// runs for an authenticated user, their profile prefills slot zero.
func NewRegistry(slots int, owner *domain.Passenger) *Registry {
	records := make([]domain.Passenger, slots)
	if owner != nil && slots > 0 {
		records[0] = *owner
	}
	return &Registry{records: records}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Registry) Get(slot int) (domain.Passenger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= len(r.records) {
		return domain.Passenger{}, ErrSlotOutOfRange
	}
	return r.records[slot], nil
}

// Set replaces the record for a slot. Incomplete records are accepted; they
// only block advancing past the identities step, not editing.
func (r *Registry) Set(slot int, p domain.Passenger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= len(r.records) {
		return ErrSlotOutOfRange
	}
	r.records[slot] = p
	return nil
}

// Complete reports whether every slot holds a valid record.
func (r *Registry) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.records {
		if !p.Valid() {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of all records in slot order.
func (r *Registry) Snapshot() []domain.Passenger {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Passenger, len(r.records))
	copy(out, r.records)
	return out
}

// Emails returns the distinct non-empty addresses across all records.
func (r *Registry) Emails() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(r.records))
	out := make([]string, 0, len(r.records))
	for _, p := range r.records {
		if p.Email == "" || seen[p.Email] {
			continue
		}
		seen[p.Email] = true
		out = append(out, p.Email)
	}
	return out
}
