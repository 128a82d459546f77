package flights

import (
	"context"

	"github.com/viltskaa/prometei/internal/domain"
)

type FlightUseCase interface {
	GetLeg(ctx context.Context, id string) (*domain.FlightLeg, error)
	Airports(ctx context.Context) ([]domain.Airport, error)
	Favors(ctx context.Context, flightID string) ([]domain.Favor, error)
	Tickets(ctx context.Context, flightID string) ([]domain.SeatTicket, error)
}

// Provider is the read side of the booking backend.
type Provider interface {
	GetFlight(ctx context.Context, id string) (*domain.FlightLeg, error)
	GetAirports(ctx context.Context) ([]domain.Airport, error)
	GetFlightFavors(ctx context.Context, id string) ([]domain.Favor, error)
	GetTicketsByFlight(ctx context.Context, flightID string) ([]domain.SeatTicket, error)
}

type Cache interface {
	GetFavors(ctx context.Context, flightID string) ([]domain.Favor, error)
	SetFavors(ctx context.Context, flightID string, favors []domain.Favor) error
	GetTickets(ctx context.Context, flightID string) ([]domain.SeatTicket, error)
	SetTickets(ctx context.Context, flightID string, tickets []domain.SeatTicket) error
}

type FlightService struct {
	provider Provider
	cache    Cache
}

func NewFlightService(provider Provider, cache Cache) *FlightService {
	return &FlightService{provider: provider, cache: cache}
}

func (s *FlightService) GetLeg(ctx context.Context, id string) (*domain.FlightLeg, error) {
	return s.provider.GetFlight(ctx, id)
}

func (s *FlightService) Airports(ctx context.Context) ([]domain.Airport, error) {
	return s.provider.GetAirports(ctx)
}

// Favors returns the leg's purchasable add-ons, cache-aside per leg.
func (s *FlightService) Favors(ctx context.Context, flightID string) ([]domain.Favor, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFavors(ctx, flightID); err == nil && cached != nil {
			return cached, nil
		}
	}

	favors, err := s.provider.GetFlightFavors(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFavors(ctx, flightID, favors)
	}
	return favors, nil
}

// Tickets returns the leg's seat inventory. The cache TTL is short: occupancy
// changes server-side and a stale seat only costs the user one rejection.
func (s *FlightService) Tickets(ctx context.Context, flightID string) ([]domain.SeatTicket, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetTickets(ctx, flightID); err == nil && cached != nil {
			return cached, nil
		}
	}

	tickets, err := s.provider.GetTicketsByFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetTickets(ctx, flightID, tickets)
	}
	return tickets, nil
}

var _ FlightUseCase = (*FlightService)(nil)
