package favors

import (
	"sort"
	"strings"
	"sync"

	"github.com/viltskaa/prometei/internal/domain"
)

// ChangeFunc observes assignment replacements. The selector calls it after
// the new value is stored, outside its lock.
type ChangeFunc func(domain.AssignmentKey, domain.LegAssignment)

// Selector keeps the per-slot, per-leg selection state: the chosen favors
// and the current seat candidate. Every update replaces the stored value
// wholesale.
type Selector struct {
	mu          sync.Mutex
	assignments map[domain.AssignmentKey]domain.LegAssignment
	onChange    ChangeFunc
}

func NewSelector(onChange ChangeFunc) *Selector {
	return &Selector{
		assignments: make(map[domain.AssignmentKey]domain.LegAssignment),
		onChange:    onChange,
	}
}

func (s *Selector) Get(key domain.AssignmentKey) domain.LegAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignments[key]
}

// All returns a snapshot of every assignment.
func (s *Selector) All() map[domain.AssignmentKey]domain.LegAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.AssignmentKey]domain.LegAssignment, len(s.assignments))
	for k, v := range s.assignments {
		out[k] = v
	}
	return out
}

// Toggle flips one favor on the keyed assignment. Selecting a seat-implying
// favor displaces any other seat-implying favor and clears the current seat
// candidate, since the implied seat type changes what counts as a valid seat.
// It returns the released seat, if one was cleared, so the caller can free it.
func (s *Selector) Toggle(key domain.AssignmentKey, favor domain.Favor) (domain.LegAssignment, *domain.SeatTicket) {
	s.mu.Lock()

	current := s.assignments[key]
	next := domain.LegAssignment{Seat: current.Seat}

	var removed bool
	for _, f := range current.Favors {
		if f.ID == favor.ID {
			removed = true
			continue
		}
		next.Favors = append(next.Favors, f)
	}

	var released *domain.SeatTicket
	if !removed {
		if favor.SeatImplying() {
			kept := next.Favors[:0]
			for _, f := range next.Favors {
				if !f.SeatImplying() {
					kept = append(kept, f)
				}
			}
			next.Favors = kept
			released = next.Seat
			next.Seat = nil
		}
		next.Favors = append(next.Favors, favor)
	}

	s.assignments[key] = next
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(key, next)
	}
	return next, released
}

// SetSeat replaces the seat candidate on the keyed assignment and returns the
// previous one so the caller can release it.
func (s *Selector) SetSeat(key domain.AssignmentKey, seat *domain.SeatTicket) *domain.SeatTicket {
	s.mu.Lock()

	current := s.assignments[key]
	previous := current.Seat
	current.Seat = seat
	s.assignments[key] = current
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(key, current)
	}
	return previous
}

// TotalFavorCost sums favor prices across every assignment.
func (s *Selector) TotalFavorCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, a := range s.assignments {
		total += a.FavorCost()
	}
	return total
}

// Filter narrows a favor list by a case-insensitive name substring. An empty
// query returns the input ordered by name.
func Filter(favors []domain.Favor, query string) []domain.Favor {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]domain.Favor, 0, len(favors))
	for _, f := range favors {
		if query == "" || strings.Contains(strings.ToLower(f.Name), query) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
