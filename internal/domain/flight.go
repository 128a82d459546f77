package domain

import (
	"strconv"
	"strings"
)

type AircraftModel string

const (
	Airbus320 AircraftModel = "AIRBUS320"
	Airbus330 AircraftModel = "AIRBUS330"
)

type CabinClass string

const (
	CabinEconomy  CabinClass = "ECONOMIC"
	CabinBusiness CabinClass = "BUSINESS"
)

// SeatType is the seat-map browse filter. SeatAny matches every free seat
// of the required cabin class.
type SeatType string

const (
	SeatAny     SeatType = "any"
	SeatWindow  SeatType = "window"
	SeatLegroom SeatType = "legroom"
)

type Airport struct {
	ID        int64   `json:"id,omitempty"`
	Code      string  `json:"value"`
	Name      string  `json:"label"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Favor is a purchasable add-on. A favor with a non-empty SeatType implies
// choosing a specific seat of that type.
type Favor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Cost     float64  `json:"cost"`
	SeatType SeatType `json:"seatType,omitempty"`
}

func (f Favor) SeatImplying() bool {
	return f.SeatType != ""
}

// FlightLeg is one scheduled flight segment. Legs are fetched from the
// provider and never mutated by the purchase workflow.
type FlightLeg struct {
	ID               string        `json:"id"`
	DeparturePoint   string        `json:"departurePoint"`
	DestinationPoint string        `json:"destinationPoint"`
	DepartureDate    string        `json:"departureDate"`
	DepartureTime    string        `json:"departureTime"`
	DestinationDate  string        `json:"destinationDate"`
	DestinationTime  string        `json:"destinationTime"`
	EconomyCost      float64       `json:"economyCost"`
	BusinessCost     float64       `json:"businessCost"`
	FlightTime       int           `json:"flightTime"`
	Model            AircraftModel `json:"model"`
	Favors           []Favor       `json:"flightFavors,omitempty"`
}

// SeatTicket identifies one seat on one leg. The workflow only ever holds a
// local reservation candidate; the seat is not confirmed until the purchase
// is created server-side.
type SeatTicket struct {
	ID         string     `json:"id"`
	Class      CabinClass `json:"ticketType"`
	SeatNumber string     `json:"seatNumber"`
	FlightID   string     `json:"flightId"`
	CostFlight float64    `json:"costFlight"`
	CostFavors float64    `json:"costFavors"`
	IsEmpty    bool       `json:"isEmpty"`
	CanReturn  bool       `json:"canReturn"`
}

// HeatMap carries decorative seat popularity weights for one aircraft model.
type HeatMap struct {
	Aircraft string               `json:"airplane"`
	Seats    []map[string]float64 `json:"seats"`
}

// Weight returns the popularity weight for a seat label, or 0 when unknown.
func (h HeatMap) Weight(seatNumber string) float64 {
	for _, entry := range h.Seats {
		if w, ok := entry[seatNumber]; ok {
			return w
		}
	}
	return 0
}

// SeatTypeOf classifies a seat label for the browse filter. Window columns
// sit at the fuselage edge of each model; row 10 carries the extra-legroom
// seats on the A320 layout.
func SeatTypeOf(model AircraftModel, seatNumber string) SeatType {
	row, column := splitSeatNumber(seatNumber)
	switch model {
	case Airbus330:
		if column == "A" || column == "K" {
			return SeatWindow
		}
	default:
		if column == "A" || column == "F" {
			return SeatWindow
		}
		if row == 10 {
			return SeatLegroom
		}
	}
	return SeatAny
}

func splitSeatNumber(seatNumber string) (int, string) {
	digits := strings.TrimRightFunc(seatNumber, func(r rune) bool {
		return r < '0' || r > '9'
	})
	row, _ := strconv.Atoi(digits)
	return row, strings.TrimPrefix(seatNumber, digits)
}
