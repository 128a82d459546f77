package domain

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "BANKCARD"
	PaymentMethodQR   PaymentMethod = "SBP"
)

// Passenger is one identity record collected for a seat.
type Passenger struct {
	Email                     string `json:"email"`
	Gender                    string `json:"gender,omitempty"`
	FirstName                 string `json:"firstName"`
	LastName                  string `json:"lastName"`
	PhoneNumber               string `json:"phoneNumber,omitempty"`
	BirthDate                 string `json:"birthDate,omitempty"`
	Passport                  string `json:"passport,omitempty"`
	InternationalPassportNum  string `json:"internationalPassportNum,omitempty"`
	InternationalPassportDate string `json:"internationalPassportDate,omitempty"`
}

// Valid reports whether the record is complete enough to travel: contact and
// name fields plus either a national passport or an international passport
// with its issue date.
func (p Passenger) Valid() bool {
	if p.Email == "" || p.FirstName == "" || p.LastName == "" {
		return false
	}
	if p.Passport != "" {
		return true
	}
	return p.InternationalPassportNum != "" && p.InternationalPassportDate != ""
}

// Step is the purchase workflow step. Steps advance forward one at a time;
// see the orchestrator for the transition rules.
type Step int

const (
	StepReview Step = iota
	StepIdentities
	StepFavors
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepReview:
		return "review"
	case StepIdentities:
		return "identities"
	case StepFavors:
		return "favors"
	case StepPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// AssignmentKey addresses one passenger slot on one leg.
type AssignmentKey struct {
	Slot     int
	FlightID string
}

// LegAssignment is the mutable selection state for one slot on one leg.
// Values are replaced wholesale on every update, never mutated in place.
type LegAssignment struct {
	Favors []Favor
	Seat   *SeatTicket
}

// FavorCost sums the selected favor prices, counting each favor id once.
func (a LegAssignment) FavorCost() float64 {
	var total float64
	seen := make(map[string]bool, len(a.Favors))
	for _, f := range a.Favors {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		total += f.Cost
	}
	return total
}

// SeatImplyingFavor returns the active seat-implying favor, if any. At most
// one can be selected per assignment.
func (a LegAssignment) SeatImplyingFavor() *Favor {
	for i := range a.Favors {
		if a.Favors[i].SeatImplying() {
			return &a.Favors[i]
		}
	}
	return nil
}

// PurchaseDraft is the write-once aggregate submitted to create a purchase.
type PurchaseDraft struct {
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Payer         Passenger     `json:"user"`
	Passengers    []Passenger   `json:"passengers"`
	Tickets       []string      `json:"tickets"`
	IsAuth        bool          `json:"isAuth"`
}
