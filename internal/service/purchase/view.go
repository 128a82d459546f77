package purchase

import (
	"math"
	"time"

	"github.com/viltskaa/prometei/internal/domain"
)

// SlotLegView is one slot's selection on one leg.
type SlotLegView struct {
	FlightID string             `json:"flightId"`
	Seat     *domain.SeatTicket `json:"seat,omitempty"`
	Favors   []domain.Favor     `json:"favors,omitempty"`
}

type SlotView struct {
	Slot      int               `json:"slot"`
	Class     domain.CabinClass `json:"class"`
	Passenger domain.Passenger  `json:"passenger"`
	Legs      []SlotLegView     `json:"legs"`
}

type PaymentView struct {
	Hash             string `json:"hash,omitempty"`
	Method           string `json:"method,omitempty"`
	Outcome          string `json:"outcome"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

// StateView is the full workflow snapshot served to the browsing client.
type StateView struct {
	ID        string             `json:"id"`
	Step      int                `json:"step"`
	StepName  string             `json:"stepName"`
	Legs      []domain.FlightLeg `json:"legs"`
	Airports  []domain.Airport   `json:"airports"`
	Slots     []SlotView         `json:"slots"`
	Finalized bool               `json:"finalized"`
	Failed    bool               `json:"failed"`
	Summary   Summary            `json:"summary"`
	Payment   *PaymentView       `json:"payment,omitempty"`
}

// SummaryLeg is the priced route line for one leg. Costs round up to whole
// currency units the way the checkout screen presents them.
type SummaryLeg struct {
	FlightID      string  `json:"flightId"`
	Route         string  `json:"route"`
	TravelMinutes int     `json:"travelMinutes,omitempty"`
	SeatCost      float64 `json:"seatCost"`
	FavorCost     float64 `json:"favorCost"`
}

type Summary struct {
	Legs      []SummaryLeg `json:"legs"`
	SeatCost  float64      `json:"seatCost"`
	FavorCost float64      `json:"favorCost"`
	Total     float64      `json:"total"`
}

// State returns a snapshot of the whole workflow. It keeps working after the
// workflow failed so the dead-end state can still be rendered.
func (o *Orchestrator) State() (StateView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return StateView{}, ErrClosed
	}
	if !o.opened {
		return StateView{}, ErrNotOpen
	}

	assignments := o.selector.All()
	records := o.registry.Snapshot()

	slots := make([]SlotView, o.totalSlotsLocked())
	for slot := range slots {
		view := SlotView{
			Slot:      slot,
			Class:     o.slotClassLocked(slot),
			Passenger: records[slot],
		}
		for _, leg := range o.state.Legs {
			a := assignments[domain.AssignmentKey{Slot: slot, FlightID: leg.ID}]
			view.Legs = append(view.Legs, SlotLegView{FlightID: leg.ID, Seat: a.Seat, Favors: a.Favors})
		}
		slots[slot] = view
	}

	view := StateView{
		ID:        o.id,
		Step:      int(o.state.Step),
		StepName:  o.state.Step.String(),
		Legs:      o.state.Legs,
		Airports:  o.state.Airports,
		Slots:     slots,
		Finalized: o.state.Finalized,
		Failed:    o.state.Failed,
		Summary:   o.summaryLocked(assignments),
	}
	if o.session != nil {
		view.Payment = &PaymentView{
			Hash:             o.session.Hash(),
			Method:           string(o.session.Method()),
			Outcome:          string(o.session.Outcome()),
			RemainingSeconds: int(o.session.Remaining().Seconds()),
		}
	}
	return view, nil
}

func (o *Orchestrator) summaryLocked(assignments map[domain.AssignmentKey]domain.LegAssignment) Summary {
	summary := Summary{Legs: make([]SummaryLeg, 0, len(o.state.Legs))}

	for _, leg := range o.state.Legs {
		line := SummaryLeg{
			FlightID: leg.ID,
			Route:    leg.DeparturePoint + " - " + leg.DestinationPoint,
		}
		if minutes, ok := travelMinutes(leg, o.state.Airports); ok {
			line.TravelMinutes = minutes
		} else {
			line.TravelMinutes = leg.FlightTime
		}

		for slot := 0; slot < o.totalSlotsLocked(); slot++ {
			a := assignments[domain.AssignmentKey{Slot: slot, FlightID: leg.ID}]
			if a.Seat != nil {
				line.SeatCost += a.Seat.CostFlight
			}
			line.FavorCost += a.FavorCost()
		}
		line.SeatCost = math.Ceil(line.SeatCost)
		line.FavorCost = math.Ceil(line.FavorCost)

		summary.Legs = append(summary.Legs, line)
		summary.SeatCost += line.SeatCost
		summary.FavorCost += line.FavorCost
	}

	summary.Total = summary.SeatCost + summary.FavorCost
	return summary
}

// travelMinutes computes the door-to-door duration from the local departure
// and arrival stamps using the airport timezones. Unknown airports or
// unparseable stamps fall back to the provider's flight time.
func travelMinutes(leg domain.FlightLeg, airports []domain.Airport) (int, bool) {
	depart, ok := localTime(leg.DepartureDate, leg.DepartureTime, leg.DeparturePoint, airports)
	if !ok {
		return 0, false
	}
	arrive, ok := localTime(leg.DestinationDate, leg.DestinationTime, leg.DestinationPoint, airports)
	if !ok {
		return 0, false
	}

	minutes := int(arrive.Sub(depart).Minutes())
	if minutes <= 0 {
		return 0, false
	}
	return minutes, true
}

func localTime(date, clock, airportCode string, airports []domain.Airport) (time.Time, bool) {
	var tz string
	for _, a := range airports {
		if a.Code == airportCode {
			tz = a.Timezone
			break
		}
	}
	if tz == "" {
		return time.Time{}, false
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
