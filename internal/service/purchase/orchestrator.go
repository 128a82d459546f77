package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viltskaa/prometei/internal/domain"
	"github.com/viltskaa/prometei/internal/service/favors"
	"github.com/viltskaa/prometei/internal/service/passengers"
	"github.com/viltskaa/prometei/internal/service/payment"
	"github.com/viltskaa/prometei/internal/service/seats"
)

var (
	ErrNotOpen              = errors.New("workflow is not open")
	ErrAlreadyOpen          = errors.New("workflow is already open")
	ErrClosed               = errors.New("workflow is closed")
	ErrWorkflowFailed       = errors.New("workflow hit an unrecoverable error, close and start over")
	ErrSeatShortage         = errors.New("not enough free seats for the requested party")
	ErrIdentitiesIncomplete = errors.New("passenger records are incomplete")
	ErrWrongStep            = errors.New("operation is not allowed at this step")
	ErrUnknownLeg           = errors.New("flight leg is not part of this workflow")
	ErrUnknownFavor         = errors.New("favor is not offered on this leg")
	ErrNoSeats              = errors.New("at least one seat is required")
)

// Catalog is the read side the workflow browses: legs, airports, favors and
// seat inventory.
type Catalog interface {
	GetLeg(ctx context.Context, id string) (*domain.FlightLeg, error)
	Airports(ctx context.Context) ([]domain.Airport, error)
	Favors(ctx context.Context, flightID string) ([]domain.Favor, error)
	Tickets(ctx context.Context, flightID string) ([]domain.SeatTicket, error)
}

// Backend is the write side: favor attachment and the seat heat overlay.
type Backend interface {
	AddFavorsToTicket(ctx context.Context, ticketID string, favors []domain.Favor) (string, error)
	HeatMap(ctx context.Context, userID string, model domain.AircraftModel) ([]domain.HeatMap, error)
}

// PaymentSession is the settlement half of the workflow.
type PaymentSession interface {
	Start(ctx context.Context, draft domain.PurchaseDraft, emails []string, totalCost float64) (string, error)
	ChooseMethod(method domain.PaymentMethod) error
	ConfirmCard(ctx context.Context, card payment.CardDetails) error
	Retry() error
	Close(ctx context.Context)
	Hash() string
	Outcome() payment.Outcome
	Method() domain.PaymentMethod
	Remaining() time.Duration
}

// SessionFactory builds the payment session when the workflow first needs
// one, keyed by the workflow id.
type SessionFactory func(id string) PaymentSession

// OpenRequest describes the party opening a purchase workflow.
type OpenRequest struct {
	FlightIDs []string
	Economy   int
	Business  int
	UserID    string
	User      *domain.Passenger
}

// AppState is the explicit workflow state: the fetched itinerary, the party
// shape and the step cursor. Selection state lives in the selector, identity
// records in the registry. Failed latches on the first unrecoverable fetch
// failure; the workflow is then dead until closed and reopened.
type AppState struct {
	Step       domain.Step
	Legs       []domain.FlightLeg
	Airports   []domain.Airport
	Economy    int
	Business   int
	UserID     string
	IsAuth     bool
	Finalized  bool
	Failed     bool
	FavorTotal float64
}

// Orchestrator drives one purchase workflow from opening the itinerary to a
// settled payment. All entry points are safe for concurrent use.
type Orchestrator struct {
	id         string
	catalog    Catalog
	backend    Backend
	newSession SessionFactory

	mu         sync.Mutex
	state      AppState
	allocator  *seats.Allocator
	selector   *favors.Selector
	registry   *passengers.Registry
	session    PaymentSession
	opened     bool
	closed     bool
	lastActive time.Time
}

func NewOrchestrator(id string, catalog Catalog, backend Backend, allocator *seats.Allocator, newSession SessionFactory) *Orchestrator {
	return &Orchestrator{
		id:         id,
		catalog:    catalog,
		backend:    backend,
		newSession: newSession,
		allocator:  allocator,
		selector:   favors.NewSelector(nil),
		lastActive: time.Now(),
	}
}

func (o *Orchestrator) ID() string { return o.id }

// Open fetches the itinerary, loads the seat inventory and draws an initial
// seat candidate for every slot on every leg. Economy slots come first; the
// business slots follow. A pool too small for the party fails the open.
func (o *Orchestrator) Open(ctx context.Context, req OpenRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.opened {
		return ErrAlreadyOpen
	}
	total := req.Economy + req.Business
	if total <= 0 {
		return ErrNoSeats
	}

	legs := make([]domain.FlightLeg, 0, len(req.FlightIDs))
	for _, id := range req.FlightIDs {
		leg, err := o.catalog.GetLeg(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to fetch leg %s: %w", id, err)
		}
		legs = append(legs, *leg)
	}

	airports, err := o.catalog.Airports(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch airports: %w", err)
	}

	for _, leg := range legs {
		tickets, err := o.catalog.Tickets(ctx, leg.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch seats for leg %s: %w", leg.ID, err)
		}
		o.allocator.Load(leg.ID, leg.Model, tickets)

		candidates, err := o.allocator.Allocate(leg.ID, req.Economy, req.Business)
		if err != nil {
			return err
		}
		for slot, seat := range candidates {
			if seat == nil {
				return fmt.Errorf("leg %s: %w", leg.ID, ErrSeatShortage)
			}
			o.selector.SetSeat(domain.AssignmentKey{Slot: slot, FlightID: leg.ID}, seat)
		}
	}

	o.state = AppState{
		Step:     domain.StepReview,
		Legs:     legs,
		Airports: airports,
		Economy:  req.Economy,
		Business: req.Business,
		UserID:   req.UserID,
		IsAuth:   req.User != nil,
	}
	o.registry = passengers.NewRegistry(total, req.User)
	o.opened = true
	o.lastActive = time.Now()
	return nil
}

// Next advances the step cursor. Leaving the identities step requires every
// record to be valid; entering the payment step finalizes the selections.
func (o *Orchestrator) Next(ctx context.Context) (domain.Step, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.readyLocked(); err != nil {
		return 0, err
	}
	o.lastActive = time.Now()

	switch o.state.Step {
	case domain.StepReview:
		o.state.Step = domain.StepIdentities
	case domain.StepIdentities:
		if !o.registry.Complete() {
			return o.state.Step, ErrIdentitiesIncomplete
		}
		o.state.Step = domain.StepFavors
	case domain.StepFavors:
		if err := o.finalizeLocked(ctx); err != nil {
			return o.state.Step, err
		}
		o.state.Step = domain.StepPayment
	default:
		return o.state.Step, ErrWrongStep
	}
	return o.state.Step, nil
}

// Back moves the cursor one step toward review. The payment step is a point
// of no return: the favors are attached and the workflow only moves forward
// to a settlement outcome from there.
func (o *Orchestrator) Back() (domain.Step, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.readyLocked(); err != nil {
		return 0, err
	}
	if o.state.Step == domain.StepPayment {
		return o.state.Step, ErrWrongStep
	}
	o.lastActive = time.Now()

	if o.state.Step > domain.StepReview {
		o.state.Step--
	}
	return o.state.Step, nil
}

// finalizeLocked attaches the selected favors to their seats and fixes the
// favor total. It runs at most once per workflow. All submissions run
// concurrently and the transition waits for every one of them.
func (o *Orchestrator) finalizeLocked(ctx context.Context) error {
	if o.state.Finalized {
		return nil
	}

	assignments := o.selector.All()
	for _, leg := range o.state.Legs {
		for slot := 0; slot < o.totalSlotsLocked(); slot++ {
			key := domain.AssignmentKey{Slot: slot, FlightID: leg.ID}
			if assignments[key].Seat == nil {
				return fmt.Errorf("leg %s slot %d: %w", leg.ID, slot, ErrSeatShortage)
			}
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(assignments))
	for _, a := range assignments {
		if len(a.Favors) == 0 {
			continue
		}
		wg.Add(1)
		go func(ticketID string, selected []domain.Favor) {
			defer wg.Done()
			if _, err := o.backend.AddFavorsToTicket(ctx, ticketID, selected); err != nil {
				errCh <- fmt.Errorf("failed to attach favors to ticket %s: %w", ticketID, err)
			}
		}(a.Seat.ID, a.Favors)
	}
	wg.Wait()
	close(errCh)

	// Already attached favors stay attached; there is no compensating
	// rollback, the workflow just dead-ends.
	if err := <-errCh; err != nil {
		return o.failLocked(err)
	}

	o.state.FavorTotal = o.selector.TotalFavorCost()
	o.state.Finalized = true
	return nil
}

// SetPassenger replaces the identity record for a slot.
func (o *Orchestrator) SetPassenger(slot int, p domain.Passenger) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.readyLocked(); err != nil {
		return err
	}
	o.lastActive = time.Now()
	return o.registry.Set(slot, p)
}

// ToggleFavor flips a favor for one slot on one leg. The favor must be
// offered on that leg. When a seat-implying favor displaces the current seat
// candidate, the freed seat goes back to the pool.
func (o *Orchestrator) ToggleFavor(ctx context.Context, slot int, flightID, favorID string) (domain.LegAssignment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.readyLocked(); err != nil {
		return domain.LegAssignment{}, err
	}
	if o.state.Finalized {
		return domain.LegAssignment{}, ErrWrongStep
	}
	if err := o.checkSlotLegLocked(slot, flightID); err != nil {
		return domain.LegAssignment{}, err
	}
	o.lastActive = time.Now()

	offered, err := o.catalog.Favors(ctx, flightID)
	if err != nil {
		return domain.LegAssignment{}, o.failLocked(err)
	}
	var favor *domain.Favor
	for i := range offered {
		if offered[i].ID == favorID {
			favor = &offered[i]
			break
		}
	}
	if favor == nil {
		return domain.LegAssignment{}, ErrUnknownFavor
	}

	assignment, released := o.selector.Toggle(domain.AssignmentKey{Slot: slot, FlightID: flightID}, *favor)
	if released != nil {
		o.allocator.Release(flightID, released.ID)
	}
	return assignment, nil
}

// Favors lists a leg's add-ons filtered by name.
func (o *Orchestrator) Favors(ctx context.Context, flightID, query string) ([]domain.Favor, error) {
	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.mu.Unlock()

	offered, err := o.catalog.Favors(ctx, flightID)
	if err != nil {
		o.mu.Lock()
		err = o.failLocked(err)
		o.mu.Unlock()
		return nil, err
	}
	return favors.Filter(offered, query), nil
}

// SeatMap builds the browse view for one slot on one leg. When the slot has
// an active seat-implying favor, its seat type narrows the view; business
// slots always see the whole cabin.
func (o *Orchestrator) SeatMap(ctx context.Context, slot int, flightID string, withHeat bool) ([]seats.MapEntry, error) {
	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if err := o.checkSlotLegLocked(slot, flightID); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.lastActive = time.Now()

	class := o.slotClassLocked(slot)
	filter := domain.SeatAny
	if implying := o.selector.Get(domain.AssignmentKey{Slot: slot, FlightID: flightID}).SeatImplyingFavor(); implying != nil {
		filter = implying.SeatType
	}

	var model domain.AircraftModel
	for _, leg := range o.state.Legs {
		if leg.ID == flightID {
			model = leg.Model
		}
	}
	userID := o.state.UserID
	o.mu.Unlock()

	var heat []domain.HeatMap
	if withHeat && userID != "" {
		// The overlay is decorative; losing it is not an error.
		heat, _ = o.backend.HeatMap(ctx, userID, model)
	}
	return o.allocator.Map(flightID, filter, class, heat)
}

// SelectSeat replaces the seat candidate for one slot on one leg with a
// manually chosen one. The displaced candidate returns to the pool.
func (o *Orchestrator) SelectSeat(slot int, flightID, ticketID string) (*domain.SeatTicket, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.readyLocked(); err != nil {
		return nil, err
	}
	if o.state.Finalized {
		return nil, ErrWrongStep
	}
	if err := o.checkSlotLegLocked(slot, flightID); err != nil {
		return nil, err
	}
	o.lastActive = time.Now()

	ticket, err := o.allocator.Select(flightID, ticketID, o.slotClassLocked(slot))
	if err != nil {
		return nil, err
	}
	if previous := o.selector.SetSeat(domain.AssignmentKey{Slot: slot, FlightID: flightID}, ticket); previous != nil {
		o.allocator.Release(flightID, previous.ID)
	}
	return ticket, nil
}

// StartPayment creates the purchase for the chosen method and arms the
// settlement flow. Calling it again with another method reuses the purchase.
func (o *Orchestrator) StartPayment(ctx context.Context, method domain.PaymentMethod) (string, error) {
	o.mu.Lock()
	if err := o.readyLocked(); err != nil {
		o.mu.Unlock()
		return "", err
	}
	if o.state.Step != domain.StepPayment {
		o.mu.Unlock()
		return "", ErrWrongStep
	}
	o.lastActive = time.Now()

	if o.session == nil {
		o.session = o.newSession(o.id)
	}
	session := o.session
	draft := o.draftLocked(method)
	emails := o.registry.Emails()
	total := o.totalCostLocked()
	o.mu.Unlock()

	hash, err := session.Start(ctx, draft, emails, total)
	if err != nil {
		return "", err
	}
	if err := session.ChooseMethod(method); err != nil {
		return "", err
	}
	return hash, nil
}

// ConfirmCard settles a card payment.
func (o *Orchestrator) ConfirmCard(ctx context.Context, card payment.CardDetails) error {
	session, err := o.currentSession()
	if err != nil {
		return err
	}
	return session.ConfirmCard(ctx, card)
}

// RetryPayment returns to method selection keeping the created purchase.
func (o *Orchestrator) RetryPayment() error {
	session, err := o.currentSession()
	if err != nil {
		return err
	}
	return session.Retry()
}

// Close shuts the workflow down, cancelling an unsettled purchase.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	session := o.session
	o.mu.Unlock()

	if session != nil {
		session.Close(ctx)
	}
}

func (o *Orchestrator) IdleSince() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastActive
}

func (o *Orchestrator) currentSession() (PaymentSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.readyLocked(); err != nil {
		return nil, err
	}
	if o.session == nil {
		return nil, ErrWrongStep
	}
	o.lastActive = time.Now()
	return o.session, nil
}

func (o *Orchestrator) readyLocked() error {
	if o.closed {
		return ErrClosed
	}
	if !o.opened {
		return ErrNotOpen
	}
	if o.state.Failed {
		return ErrWorkflowFailed
	}
	return nil
}

// failLocked latches the workflow into its dead-end state.
func (o *Orchestrator) failLocked(err error) error {
	o.state.Failed = true
	return fmt.Errorf("%w: %v", ErrWorkflowFailed, err)
}

func (o *Orchestrator) totalSlotsLocked() int {
	return o.state.Economy + o.state.Business
}

// slotClassLocked maps a slot index to its cabin class. The first slots are
// the economy seats of the party.
func (o *Orchestrator) slotClassLocked(slot int) domain.CabinClass {
	if slot < o.state.Economy {
		return domain.CabinEconomy
	}
	return domain.CabinBusiness
}

func (o *Orchestrator) checkSlotLegLocked(slot int, flightID string) error {
	if slot < 0 || slot >= o.totalSlotsLocked() {
		return passengers.ErrSlotOutOfRange
	}
	for _, leg := range o.state.Legs {
		if leg.ID == flightID {
			return nil
		}
	}
	return ErrUnknownLeg
}

func (o *Orchestrator) draftLocked(method domain.PaymentMethod) domain.PurchaseDraft {
	assignments := o.selector.All()
	records := o.registry.Snapshot()

	tickets := make([]string, 0, o.totalSlotsLocked()*len(o.state.Legs))
	for slot := 0; slot < o.totalSlotsLocked(); slot++ {
		for _, leg := range o.state.Legs {
			if seat := assignments[domain.AssignmentKey{Slot: slot, FlightID: leg.ID}].Seat; seat != nil {
				tickets = append(tickets, seat.ID)
			}
		}
	}

	draft := domain.PurchaseDraft{
		PaymentMethod: method,
		Tickets:       tickets,
		IsAuth:        o.state.IsAuth,
	}
	// Слот 0 оплачивает и не дублируется среди пассажиров.
	if len(records) > 0 {
		draft.Payer = records[0]
		draft.Passengers = append([]domain.Passenger(nil), records[1:]...)
	}
	return draft
}

func (o *Orchestrator) totalCostLocked() float64 {
	var total float64
	for _, a := range o.selector.All() {
		if a.Seat != nil {
			total += a.Seat.CostFlight
		}
	}
	return total + o.state.FavorTotal
}
