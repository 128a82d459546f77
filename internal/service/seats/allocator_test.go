package seats

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viltskaa/prometei/internal/domain"
)

func economyTickets(n int) []domain.SeatTicket {
	tickets := make([]domain.SeatTicket, n)
	for i := range tickets {
		tickets[i] = domain.SeatTicket{
			ID:         fmt.Sprintf("t%d", i+1),
			Class:      domain.CabinEconomy,
			SeatNumber: fmt.Sprintf("%dA", i+1),
			FlightID:   "leg-1",
			CostFlight: 100,
			IsEmpty:    true,
		}
	}
	return tickets
}

func TestAllocator_Allocate_DistinctSeats(t *testing.T) {
	allocator := NewAllocator(rand.New(rand.NewSource(1)))
	allocator.Load("leg-1", domain.Airbus320, economyTickets(10))

	candidates, err := allocator.Allocate("leg-1", 4, 0)
	assert.NoError(t, err)
	assert.Len(t, candidates, 4)

	seen := make(map[string]bool)
	for _, seat := range candidates {
		assert.NotNil(t, seat)
		assert.Equal(t, domain.CabinEconomy, seat.Class)
		assert.False(t, seen[seat.ID])
		seen[seat.ID] = true
	}
}

func TestAllocator_Allocate_Deterministic(t *testing.T) {
	first := NewAllocator(rand.New(rand.NewSource(42)))
	second := NewAllocator(rand.New(rand.NewSource(42)))
	first.Load("leg-1", domain.Airbus320, economyTickets(30))
	second.Load("leg-1", domain.Airbus320, economyTickets(30))

	a, err := first.Allocate("leg-1", 5, 0)
	assert.NoError(t, err)
	b, err := second.Allocate("leg-1", 5, 0)
	assert.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestAllocator_Allocate_PoolExhaustion(t *testing.T) {
	allocator := NewAllocator(rand.New(rand.NewSource(1)))
	allocator.Load("leg-1", domain.Airbus320, economyTickets(3))

	candidates, err := allocator.Allocate("leg-1", 5, 0)
	assert.NoError(t, err)
	assert.Len(t, candidates, 5)

	var filled int
	for _, seat := range candidates {
		if seat != nil {
			filled++
		}
	}
	assert.Equal(t, 3, filled)
	assert.Nil(t, candidates[3])
	assert.Nil(t, candidates[4])
}

func TestAllocator_Allocate_SingleFreeSeat(t *testing.T) {
	tickets := economyTickets(5)
	for i := range tickets {
		tickets[i].IsEmpty = i == 2
	}

	allocator := NewAllocator(rand.New(rand.NewSource(7)))
	allocator.Load("leg-1", domain.Airbus320, tickets)

	candidates, err := allocator.Allocate("leg-1", 1, 0)
	assert.NoError(t, err)
	assert.NotNil(t, candidates[0])
	assert.Equal(t, "t3", candidates[0].ID)
}

func TestAllocator_Allocate_NotLoaded(t *testing.T) {
	allocator := NewAllocator(rand.New(rand.NewSource(1)))

	_, err := allocator.Allocate("leg-1", 1, 0)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestAllocator_Allocate_ClassPartition(t *testing.T) {
	tickets := economyTickets(4)
	tickets = append(tickets,
		domain.SeatTicket{ID: "b1", Class: domain.CabinBusiness, SeatNumber: "1A", FlightID: "leg-1", IsEmpty: true},
		domain.SeatTicket{ID: "b2", Class: domain.CabinBusiness, SeatNumber: "1C", FlightID: "leg-1", IsEmpty: true},
	)

	allocator := NewAllocator(rand.New(rand.NewSource(3)))
	allocator.Load("leg-1", domain.Airbus320, tickets)

	candidates, err := allocator.Allocate("leg-1", 2, 1)
	assert.NoError(t, err)
	assert.Equal(t, domain.CabinEconomy, candidates[0].Class)
	assert.Equal(t, domain.CabinEconomy, candidates[1].Class)
	assert.Equal(t, domain.CabinBusiness, candidates[2].Class)
}

func TestAllocator_Select(t *testing.T) {
	tickets := economyTickets(3)
	tickets[1].IsEmpty = false

	allocator := NewAllocator(rand.New(rand.NewSource(1)))
	allocator.Load("leg-1", domain.Airbus320, tickets)

	seat, err := allocator.Select("leg-1", "t1", domain.CabinEconomy)
	assert.NoError(t, err)
	assert.Equal(t, "t1", seat.ID)

	_, err = allocator.Select("leg-1", "t1", domain.CabinEconomy)
	assert.ErrorIs(t, err, ErrSeatOccupied)

	_, err = allocator.Select("leg-1", "t2", domain.CabinEconomy)
	assert.ErrorIs(t, err, ErrSeatOccupied)

	_, err = allocator.Select("leg-1", "t3", domain.CabinBusiness)
	assert.ErrorIs(t, err, ErrWrongClass)

	_, err = allocator.Select("leg-1", "missing", domain.CabinEconomy)
	assert.ErrorIs(t, err, ErrUnknownSeat)

	_, err = allocator.Select("leg-2", "t1", domain.CabinEconomy)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestAllocator_ReleaseReturnsSeatToPool(t *testing.T) {
	allocator := NewAllocator(rand.New(rand.NewSource(1)))
	allocator.Load("leg-1", domain.Airbus320, economyTickets(1))

	_, err := allocator.Select("leg-1", "t1", domain.CabinEconomy)
	assert.NoError(t, err)

	allocator.Release("leg-1", "t1")

	seat, err := allocator.Select("leg-1", "t1", domain.CabinEconomy)
	assert.NoError(t, err)
	assert.Equal(t, "t1", seat.ID)
}

func TestAllocator_Map_FilterAndHeat(t *testing.T) {
	tickets := []domain.SeatTicket{
		{ID: "t1", Class: domain.CabinEconomy, SeatNumber: "10A", FlightID: "leg-1", IsEmpty: true},
		{ID: "t2", Class: domain.CabinEconomy, SeatNumber: "11C", FlightID: "leg-1", IsEmpty: true},
		{ID: "t3", Class: domain.CabinEconomy, SeatNumber: "12F", FlightID: "leg-1", IsEmpty: false},
		{ID: "t4", Class: domain.CabinBusiness, SeatNumber: "1A", FlightID: "leg-1", IsEmpty: true},
	}

	allocator := NewAllocator(rand.New(rand.NewSource(1)))
	allocator.Load("leg-1", domain.Airbus320, tickets)

	heat := []domain.HeatMap{{
		Aircraft: string(domain.Airbus320),
		Seats:    []map[string]float64{{"10A": 0.9}, {"11C": 0.2}},
	}}

	entries, err := allocator.Map("leg-1", domain.SeatWindow, domain.CabinEconomy, heat)
	assert.NoError(t, err)
	assert.Len(t, entries, 4)

	byID := make(map[string]MapEntry)
	for _, e := range entries {
		byID[e.Ticket.ID] = e
	}

	// 10A окно и свободно
	assert.True(t, byID["t1"].Selectable)
	assert.Equal(t, domain.SeatWindow, byID["t1"].SeatType)
	assert.Equal(t, 0.9, byID["t1"].Weight)

	// aisle seat filtered out, occupied window filtered out, business ignored
	assert.False(t, byID["t2"].Selectable)
	assert.False(t, byID["t3"].Selectable)
	assert.False(t, byID["t4"].Selectable)
}

func TestAllocator_Map_BusinessIgnoresFilter(t *testing.T) {
	tickets := []domain.SeatTicket{
		{ID: "b1", Class: domain.CabinBusiness, SeatNumber: "1C", FlightID: "leg-1", IsEmpty: true},
	}

	allocator := NewAllocator(rand.New(rand.NewSource(1)))
	allocator.Load("leg-1", domain.Airbus320, tickets)

	entries, err := allocator.Map("leg-1", domain.SeatWindow, domain.CabinBusiness, nil)
	assert.NoError(t, err)
	assert.True(t, entries[0].Selectable)
}
