package purchase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/viltskaa/prometei/internal/domain"
	"github.com/viltskaa/prometei/internal/service/payment"
	"github.com/viltskaa/prometei/internal/service/seats"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetLeg(ctx context.Context, id string) (*domain.FlightLeg, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightLeg), args.Error(1)
}

func (m *MockCatalog) Airports(ctx context.Context) ([]domain.Airport, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Airport), args.Error(1)
}

func (m *MockCatalog) Favors(ctx context.Context, flightID string) ([]domain.Favor, error) {
	args := m.Called(ctx, flightID)
	return args.Get(0).([]domain.Favor), args.Error(1)
}

func (m *MockCatalog) Tickets(ctx context.Context, flightID string) ([]domain.SeatTicket, error) {
	args := m.Called(ctx, flightID)
	return args.Get(0).([]domain.SeatTicket), args.Error(1)
}

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) AddFavorsToTicket(ctx context.Context, ticketID string, favors []domain.Favor) (string, error) {
	args := m.Called(ctx, ticketID, favors)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) HeatMap(ctx context.Context, userID string, model domain.AircraftModel) ([]domain.HeatMap, error) {
	args := m.Called(ctx, userID, model)
	return args.Get(0).([]domain.HeatMap), args.Error(1)
}

type MockPaymentSession struct {
	mock.Mock
}

func (m *MockPaymentSession) Start(ctx context.Context, draft domain.PurchaseDraft, emails []string, totalCost float64) (string, error) {
	args := m.Called(ctx, draft, emails, totalCost)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentSession) ChooseMethod(method domain.PaymentMethod) error {
	args := m.Called(method)
	return args.Error(0)
}

func (m *MockPaymentSession) ConfirmCard(ctx context.Context, card payment.CardDetails) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockPaymentSession) Retry() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPaymentSession) Close(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockPaymentSession) Hash() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPaymentSession) Outcome() payment.Outcome {
	args := m.Called()
	return args.Get(0).(payment.Outcome)
}

func (m *MockPaymentSession) Method() domain.PaymentMethod {
	args := m.Called()
	return args.Get(0).(domain.PaymentMethod)
}

func (m *MockPaymentSession) Remaining() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

var testLeg = domain.FlightLeg{
	ID:               "leg-1",
	DeparturePoint:   "SVO",
	DestinationPoint: "SVX",
	DepartureDate:    "2026-03-10",
	DepartureTime:    "10:00",
	DestinationDate:  "2026-03-10",
	DestinationTime:  "14:30",
	FlightTime:       150,
	Model:            domain.Airbus320,
}

var testAirports = []domain.Airport{
	{Code: "SVO", Name: "Шереметьево", Timezone: "Europe/Moscow"},
	{Code: "SVX", Name: "Кольцово", Timezone: "Asia/Yekaterinburg"},
}

func legTickets(n int) []domain.SeatTicket {
	tickets := make([]domain.SeatTicket, n)
	for i := range tickets {
		tickets[i] = domain.SeatTicket{
			ID:         fmt.Sprintf("t%d", i+1),
			Class:      domain.CabinEconomy,
			SeatNumber: fmt.Sprintf("%dA", i+1),
			FlightID:   "leg-1",
			CostFlight: 1000,
			IsEmpty:    true,
		}
	}
	return tickets
}

func validRecord(email string) domain.Passenger {
	return domain.Passenger{Email: email, FirstName: "Ivan", LastName: "Petrov", Passport: "4509 123456"}
}

func expectOpen(catalog *MockCatalog, tickets []domain.SeatTicket) {
	leg := testLeg
	catalog.On("GetLeg", mock.Anything, "leg-1").Return(&leg, nil)
	catalog.On("Airports", mock.Anything).Return(testAirports, nil)
	catalog.On("Tickets", mock.Anything, "leg-1").Return(tickets, nil)
}

func openWorkflow(t *testing.T, catalog *MockCatalog, backend *MockBackend, factory SessionFactory, economy int) *Orchestrator {
	t.Helper()
	o := NewOrchestrator("wf-1", catalog, backend, seats.NewAllocator(rand.New(rand.NewSource(1))), factory)
	err := o.Open(context.Background(), OpenRequest{FlightIDs: []string{"leg-1"}, Economy: economy})
	assert.NoError(t, err)
	return o
}

// toFavors drives an open workflow to the favors step with valid records.
func toFavors(t *testing.T, o *Orchestrator, slots int) {
	t.Helper()
	_, err := o.Next(context.Background())
	assert.NoError(t, err)
	for slot := 0; slot < slots; slot++ {
		assert.NoError(t, o.SetPassenger(slot, validRecord(fmt.Sprintf("p%d@example.com", slot))))
	}
	_, err = o.Next(context.Background())
	assert.NoError(t, err)
}

func TestOrchestrator_Open_AssignsDistinctSeats(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(5))

	o := openWorkflow(t, catalog, &MockBackend{}, nil, 2)

	state, err := o.State()
	assert.NoError(t, err)
	assert.Equal(t, int(domain.StepReview), state.Step)
	assert.Len(t, state.Slots, 2)

	seatA := state.Slots[0].Legs[0].Seat
	seatB := state.Slots[1].Legs[0].Seat
	assert.NotNil(t, seatA)
	assert.NotNil(t, seatB)
	assert.NotEqual(t, seatA.ID, seatB.ID)
	assert.Equal(t, 2000.0, state.Summary.SeatCost)
}

func TestOrchestrator_Open_SeatShortage(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(1))

	o := NewOrchestrator("wf-1", catalog, &MockBackend{}, seats.NewAllocator(rand.New(rand.NewSource(1))), nil)
	err := o.Open(context.Background(), OpenRequest{FlightIDs: []string{"leg-1"}, Economy: 2})
	assert.ErrorIs(t, err, ErrSeatShortage)
}

func TestOrchestrator_Open_RequiresSeats(t *testing.T) {
	o := NewOrchestrator("wf-1", &MockCatalog{}, &MockBackend{}, seats.NewAllocator(nil), nil)
	err := o.Open(context.Background(), OpenRequest{FlightIDs: []string{"leg-1"}})
	assert.ErrorIs(t, err, ErrNoSeats)
}

func TestOrchestrator_Next_BlocksOnIncompleteIdentities(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(3))
	o := openWorkflow(t, catalog, &MockBackend{}, nil, 2)

	step, err := o.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, domain.StepIdentities, step)

	_, err = o.Next(context.Background())
	assert.ErrorIs(t, err, ErrIdentitiesIncomplete)

	assert.NoError(t, o.SetPassenger(0, validRecord("a@example.com")))
	_, err = o.Next(context.Background())
	assert.ErrorIs(t, err, ErrIdentitiesIncomplete)

	assert.NoError(t, o.SetPassenger(1, validRecord("b@example.com")))
	step, err = o.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, domain.StepFavors, step)
}

func TestOrchestrator_Back_StopsAtReview(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(2))
	o := openWorkflow(t, catalog, &MockBackend{}, nil, 1)

	step, err := o.Back()
	assert.NoError(t, err)
	assert.Equal(t, domain.StepReview, step)
}

func TestOrchestrator_ToggleFavor(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(2))
	offered := []domain.Favor{
		{ID: "f1", Name: "Hot meal", Cost: 500},
		{ID: "f2", Name: "Window seat", Cost: 300, SeatType: domain.SeatWindow},
	}
	catalog.On("Favors", mock.Anything, "leg-1").Return(offered, nil)

	o := openWorkflow(t, catalog, &MockBackend{}, nil, 1)

	_, err := o.ToggleFavor(context.Background(), 0, "leg-1", "missing")
	assert.ErrorIs(t, err, ErrUnknownFavor)

	_, err = o.ToggleFavor(context.Background(), 0, "leg-2", "f1")
	assert.ErrorIs(t, err, ErrUnknownLeg)

	assignment, err := o.ToggleFavor(context.Background(), 0, "leg-1", "f1")
	assert.NoError(t, err)
	assert.Len(t, assignment.Favors, 1)
	assert.NotNil(t, assignment.Seat)

	// услуга с типом места сбрасывает текущее место
	assignment, err = o.ToggleFavor(context.Background(), 0, "leg-1", "f2")
	assert.NoError(t, err)
	assert.Nil(t, assignment.Seat)
	assert.Equal(t, 800.0, assignment.FavorCost())
}

func TestOrchestrator_SelectSeat_ReplacesCandidate(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(3))
	o := openWorkflow(t, catalog, &MockBackend{}, nil, 1)

	state, err := o.State()
	assert.NoError(t, err)
	current := state.Slots[0].Legs[0].Seat

	entries, err := o.SeatMap(context.Background(), 0, "leg-1", false)
	assert.NoError(t, err)

	var target string
	for _, e := range entries {
		if e.Selectable {
			target = e.Ticket.ID
			break
		}
	}
	assert.NotEmpty(t, target)
	assert.NotEqual(t, current.ID, target)

	seat, err := o.SelectSeat(0, "leg-1", target)
	assert.NoError(t, err)
	assert.Equal(t, target, seat.ID)

	// старый кандидат вернулся в пул
	released, err := o.SelectSeat(0, "leg-1", current.ID)
	assert.NoError(t, err)
	assert.Equal(t, current.ID, released.ID)
}

func TestOrchestrator_SeatMap_UsesHeatOverlay(t *testing.T) {
	catalog := &MockCatalog{}
	backend := &MockBackend{}
	expectOpen(catalog, legTickets(2))
	backend.On("HeatMap", mock.Anything, "user-7", domain.Airbus320).
		Return([]domain.HeatMap{{Aircraft: string(domain.Airbus320), Seats: []map[string]float64{{"1A": 0.5}}}}, nil).Once()

	o := NewOrchestrator("wf-1", catalog, backend, seats.NewAllocator(rand.New(rand.NewSource(1))), nil)
	err := o.Open(context.Background(), OpenRequest{FlightIDs: []string{"leg-1"}, Economy: 1, UserID: "user-7"})
	assert.NoError(t, err)

	entries, err := o.SeatMap(context.Background(), 0, "leg-1", true)
	assert.NoError(t, err)
	assert.Equal(t, 0.5, entries[0].Weight)
	backend.AssertExpectations(t)
}

func TestOrchestrator_Finalize_SubmitsFavorsOnce(t *testing.T) {
	catalog := &MockCatalog{}
	backend := &MockBackend{}
	expectOpen(catalog, legTickets(3))
	offered := []domain.Favor{{ID: "f1", Name: "Hot meal", Cost: 500.5}}
	catalog.On("Favors", mock.Anything, "leg-1").Return(offered, nil)

	o := openWorkflow(t, catalog, backend, nil, 2)
	toFavors(t, o, 2)

	assignment, err := o.ToggleFavor(context.Background(), 0, "leg-1", "f1")
	assert.NoError(t, err)
	ticketID := assignment.Seat.ID

	backend.On("AddFavorsToTicket", mock.Anything, ticketID, offered).Return("ok", nil).Once()

	step, err := o.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, domain.StepPayment, step)

	// после входа в оплату дороги назад нет
	_, err = o.Back()
	assert.ErrorIs(t, err, ErrWrongStep)

	backend.AssertNumberOfCalls(t, "AddFavorsToTicket", 1)
	backend.AssertExpectations(t)
}

func TestOrchestrator_Finalize_FailureAbortsTransition(t *testing.T) {
	catalog := &MockCatalog{}
	backend := &MockBackend{}
	expectOpen(catalog, legTickets(2))
	offered := []domain.Favor{{ID: "f1", Name: "Hot meal", Cost: 500}}
	catalog.On("Favors", mock.Anything, "leg-1").Return(offered, nil)

	o := openWorkflow(t, catalog, backend, nil, 1)
	toFavors(t, o, 1)

	_, err := o.ToggleFavor(context.Background(), 0, "leg-1", "f1")
	assert.NoError(t, err)

	backend.On("AddFavorsToTicket", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("provider unavailable")).Once()

	_, err = o.Next(context.Background())
	assert.ErrorIs(t, err, ErrWorkflowFailed)

	state, stateErr := o.State()
	assert.NoError(t, stateErr)
	assert.Equal(t, int(domain.StepFavors), state.Step)
	assert.False(t, state.Finalized)
	assert.True(t, state.Failed)

	// тупик: любые дальнейшие шаги отклоняются
	_, err = o.Next(context.Background())
	assert.ErrorIs(t, err, ErrWorkflowFailed)
}

func TestOrchestrator_StartPayment(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(3))

	session := &MockPaymentSession{}
	o := openWorkflow(t, catalog, &MockBackend{}, func(string) PaymentSession { return session }, 2)

	_, err := o.StartPayment(context.Background(), domain.PaymentMethodCard)
	assert.ErrorIs(t, err, ErrWrongStep)

	toFavors(t, o, 2)
	_, err = o.Next(context.Background())
	assert.NoError(t, err)

	session.On("Start", mock.Anything, mock.MatchedBy(func(draft domain.PurchaseDraft) bool {
		return draft.PaymentMethod == domain.PaymentMethodCard &&
			len(draft.Tickets) == 2 &&
			draft.Payer.Email == "p0@example.com" &&
			len(draft.Passengers) == 1 &&
			draft.Passengers[0].Email == "p1@example.com"
	}), []string{"p0@example.com", "p1@example.com"}, 2000.0).Return("hash123", nil).Once()
	session.On("ChooseMethod", domain.PaymentMethodCard).Return(nil).Once()

	hash, err := o.StartPayment(context.Background(), domain.PaymentMethodCard)
	assert.NoError(t, err)
	assert.Equal(t, "hash123", hash)
	session.AssertExpectations(t)
}

func TestOrchestrator_Close(t *testing.T) {
	catalog := &MockCatalog{}
	expectOpen(catalog, legTickets(2))

	session := &MockPaymentSession{}
	session.On("Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("hash123", nil).Once()
	session.On("ChooseMethod", domain.PaymentMethodCard).Return(nil).Once()
	session.On("Close", mock.Anything).Once()

	o := openWorkflow(t, catalog, &MockBackend{}, func(string) PaymentSession { return session }, 1)
	toFavors(t, o, 1)
	_, err := o.Next(context.Background())
	assert.NoError(t, err)
	_, err = o.StartPayment(context.Background(), domain.PaymentMethodCard)
	assert.NoError(t, err)

	o.Close(context.Background())
	o.Close(context.Background())

	_, err = o.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	session.AssertExpectations(t)
}
