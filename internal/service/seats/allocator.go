package seats

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/viltskaa/prometei/internal/domain"
)

var (
	ErrNotLoaded    = errors.New("seat inventory is not loaded for this leg")
	ErrUnknownSeat  = errors.New("seat does not exist on this leg")
	ErrSeatOccupied = errors.New("seat is already taken")
	ErrWrongClass   = errors.New("seat class does not match the passenger class")
)

// Allocator owns the local seat inventory per leg: it hands out random
// candidates on workflow open and validates manual overrides afterwards.
// A candidate is only reserved locally until the purchase is created.
type Allocator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	legs map[string]*legPool
}

type legPool struct {
	model   domain.AircraftModel
	tickets map[string]domain.SeatTicket
	held    map[string]bool
}

// NewAllocator builds an allocator around the given random source. Passing
// nil falls back to a time-seeded source; tests pass a fixed seed.
func NewAllocator(rng *rand.Rand) *Allocator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Allocator{
		rng:  rng,
		legs: make(map[string]*legPool),
	}
}

// Load registers the fetched seat inventory for a leg. Until a leg is
// loaded every allocation and override against it is rejected.
func (a *Allocator) Load(legID string, model domain.AircraftModel, tickets []domain.SeatTicket) {
	pool := &legPool{
		model:   model,
		tickets: make(map[string]domain.SeatTicket, len(tickets)),
		held:    make(map[string]bool),
	}
	for _, t := range tickets {
		pool.tickets[t.ID] = t
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.legs[legID] = pool
}

func (a *Allocator) Loaded(legID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.legs[legID]
	return ok
}

// Allocate draws one candidate per required seat, economy slots first, each
// drawn uniformly without replacement from the free pool of its class. Slots
// left over after the pool runs dry get nil; that is a shortage the caller
// reports, not a failure.
func (a *Allocator) Allocate(legID string, economy, business int) ([]*domain.SeatTicket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.legs[legID]
	if !ok {
		return nil, ErrNotLoaded
	}

	candidates := make([]*domain.SeatTicket, 0, economy+business)
	for i := 0; i < economy; i++ {
		candidates = append(candidates, a.draw(pool, domain.CabinEconomy))
	}
	for i := 0; i < business; i++ {
		candidates = append(candidates, a.draw(pool, domain.CabinBusiness))
	}
	return candidates, nil
}

func (a *Allocator) draw(pool *legPool, class domain.CabinClass) *domain.SeatTicket {
	free := pool.free(class)
	if len(free) == 0 {
		return nil
	}
	picked := free[a.rng.Intn(len(free))]
	pool.held[picked.ID] = true
	return &picked
}

// Select validates a manual override: the seat must exist, be free, not be
// held by another slot, and match the passenger's cabin class.
func (a *Allocator) Select(legID, ticketID string, class domain.CabinClass) (*domain.SeatTicket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.legs[legID]
	if !ok {
		return nil, ErrNotLoaded
	}
	ticket, ok := pool.tickets[ticketID]
	if !ok {
		return nil, ErrUnknownSeat
	}
	if !ticket.IsEmpty || pool.held[ticket.ID] {
		return nil, ErrSeatOccupied
	}
	if ticket.Class != class {
		return nil, ErrWrongClass
	}

	pool.held[ticket.ID] = true
	return &ticket, nil
}

// Release returns a previously held candidate to the pool.
func (a *Allocator) Release(legID, ticketID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if pool, ok := a.legs[legID]; ok {
		delete(pool.held, ticketID)
	}
}

// MapEntry is one seat in the browse view. Weight is the decorative heat
// overlay value; it stays zero when the overlay is off or failed to load.
type MapEntry struct {
	Ticket     domain.SeatTicket `json:"ticket"`
	SeatType   domain.SeatType   `json:"seatType"`
	Selectable bool              `json:"selectable"`
	Weight     float64           `json:"weight,omitempty"`
}

// Map builds the seat-map browse view for a leg, filtered by seat type for
// the given cabin class. Business cabins ignore the seat-type filter.
func (a *Allocator) Map(legID string, filter domain.SeatType, class domain.CabinClass, heat []domain.HeatMap) ([]MapEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.legs[legID]
	if !ok {
		return nil, ErrNotLoaded
	}

	var overlay *domain.HeatMap
	for i := range heat {
		if heat[i].Aircraft == string(pool.model) {
			overlay = &heat[i]
			break
		}
	}

	entries := make([]MapEntry, 0, len(pool.tickets))
	for _, t := range pool.tickets {
		seatType := domain.SeatTypeOf(pool.model, t.SeatNumber)
		selectable := t.IsEmpty && !pool.held[t.ID] && t.Class == class
		if selectable && class != domain.CabinBusiness && filter != domain.SeatAny && seatType != filter {
			selectable = false
		}

		entry := MapEntry{Ticket: t, SeatType: seatType, Selectable: selectable}
		if overlay != nil {
			entry.Weight = overlay.Weight(t.SeatNumber)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Ticket.SeatNumber < entries[j].Ticket.SeatNumber
	})
	return entries, nil
}

func (p *legPool) free(class domain.CabinClass) []domain.SeatTicket {
	ids := make([]string, 0, len(p.tickets))
	for id, t := range p.tickets {
		if t.IsEmpty && !p.held[id] && t.Class == class {
			ids = append(ids, id)
		}
	}
	// Map iteration order is random on its own, but not seedable; sort so
	// the draw depends only on the injected source.
	sort.Strings(ids)

	free := make([]domain.SeatTicket, len(ids))
	for i, id := range ids {
		free[i] = p.tickets[id]
	}
	return free
}
