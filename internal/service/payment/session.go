package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viltskaa/prometei/internal/domain"
	"github.com/viltskaa/prometei/internal/kafka"
)

var (
	ErrNoPurchase    = errors.New("purchase has not been created yet")
	ErrNoMethod      = errors.New("payment method has not been chosen")
	ErrCardNotReady  = errors.New("card details are incomplete")
	ErrSessionClosed = errors.New("payment session is closed")
)

// StatusSuccess is the provider's settled payment status for QR polling.
const StatusSuccess = "Success"

// Outcome is the current settlement state. Success is terminal; timeout and
// failure send the user back to method selection with the purchase kept.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeFailed  Outcome = "failed"
)

// CardDetails is the card form as entered. Ready gates confirmation on the
// number, expiry month and security code lengths; the owner and year fields
// are collected but not checked.
type CardDetails struct {
	Number string `json:"number"`
	Owner  string `json:"owner"`
	Month  string `json:"month"`
	Year   string `json:"year"`
	CVV    string `json:"cvv"`
}

func (c CardDetails) Ready() bool {
	return len(c.Number) >= 16 && len(c.Month) == 2 && len(c.CVV) == 3
}

type Config struct {
	Countdown    time.Duration
	PollInterval time.Duration
}

// Provider is the payment side of the booking backend.
type Provider interface {
	CreatePurchase(ctx context.Context, draft domain.PurchaseDraft) (string, error)
	ConfirmPayment(ctx context.Context, hash string) (bool, error)
	CheckPaymentStatus(ctx context.Context, hash string) (string, error)
	CancelPayment(ctx context.Context, hash string) (bool, error)
	SendConfirmationEmail(ctx context.Context, email, hash string) (string, error)
}

// Events receives purchase lifecycle notifications. Publishing is best
// effort; a broker outage never blocks a payment.
type Events interface {
	Publish(ctx context.Context, key string, event kafka.PurchaseEvent) error
}

// Session drives one purchase through settlement. The purchase is created at
// most once; afterwards the hash survives method switches, timeouts and
// failed attempts until the session succeeds or is closed.
type Session struct {
	id       string
	cfg      Config
	provider Provider
	events   Events

	now    func() time.Time
	ticker func(time.Duration) (<-chan time.Time, func())

	// startMu сериализует создание покупки между конкурентными Start.
	startMu sync.Mutex

	mu         sync.Mutex
	hash       string
	method     domain.PaymentMethod
	outcome    Outcome
	totalCost  float64
	emails     []string
	closed     bool
	deadline   time.Time
	attempt    int
	cancelPoll context.CancelFunc
}

func NewSession(id string, cfg Config, provider Provider, events Events) *Session {
	if cfg.Countdown <= 0 {
		cfg.Countdown = 180 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Session{
		id:       id,
		cfg:      cfg,
		provider: provider,
		events:   events,
		now:      time.Now,
		ticker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		outcome: OutcomePending,
	}
}

// Start creates the purchase and fans out confirmation emails. Calling it
// again returns the existing hash without touching the provider.
func (s *Session) Start(ctx context.Context, draft domain.PurchaseDraft, emails []string, totalCost float64) (string, error) {
	// Второй конкурентный вызов ждёт здесь и получает уже созданный хэш.
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.hash != "" {
		hash := s.hash
		s.mu.Unlock()
		return hash, nil
	}
	s.mu.Unlock()

	hash, err := s.provider.CreatePurchase(ctx, draft)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.hash = hash
	s.totalCost = totalCost
	s.emails = append([]string(nil), emails...)
	s.mu.Unlock()

	s.publish(kafka.EventPurchaseCreated, string(draft.PaymentMethod))

	// Emails are a courtesy; the session does not wait on them.
	for _, addr := range emails {
		go func(addr string) {
			sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_, _ = s.provider.SendConfirmationEmail(sendCtx, addr, hash)
		}(addr)
	}
	return hash, nil
}

func (s *Session) Hash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hash
}

func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *Session) Method() domain.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// ChooseMethod selects how to pay. Choosing the QR method starts the
// countdown and the status poll loop; any previous loop is stopped first.
func (s *Session) ChooseMethod(method domain.PaymentMethod) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.hash == "" {
		s.mu.Unlock()
		return ErrNoPurchase
	}
	if s.outcome == OutcomeSuccess {
		s.mu.Unlock()
		return nil
	}
	s.stopPollLocked()
	s.attempt++
	s.method = method
	s.outcome = OutcomePending

	if method != domain.PaymentMethodQR {
		s.mu.Unlock()
		return nil
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancelPoll = cancel
	s.deadline = s.now().Add(s.cfg.Countdown)
	hash, deadline, attempt := s.hash, s.deadline, s.attempt
	s.mu.Unlock()

	go s.poll(pollCtx, hash, deadline, attempt)
	return nil
}

// Remaining reports how long the QR countdown has left, zero otherwise.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.method != domain.PaymentMethodQR || s.outcome != OutcomePending {
		return 0
	}
	left := s.deadline.Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

// poll checks the payment status on every tick until the purchase settles or
// the countdown runs out. A tick landing exactly on the deadline still gets
// one last check before the timeout is declared.
func (s *Session) poll(ctx context.Context, hash string, deadline time.Time, attempt int) {
	ticks, stop := s.ticker(s.cfg.PollInterval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			now := s.now()
			if !now.After(deadline) {
				status, err := s.provider.CheckPaymentStatus(ctx, hash)
				if err == nil && status == StatusSuccess {
					if s.commit(OutcomeSuccess, attempt) {
						s.publish(kafka.EventPaymentSuccess, string(domain.PaymentMethodQR))
					}
					return
				}
			}
			if !now.Before(deadline) {
				if s.commit(OutcomeTimeout, attempt) {
					s.publish(kafka.EventPaymentTimeout, string(domain.PaymentMethodQR))
				}
				return
			}
		}
	}
}

// ConfirmCard settles a card payment in a single call.
func (s *Session) ConfirmCard(ctx context.Context, card CardDetails) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.hash == "" {
		s.mu.Unlock()
		return ErrNoPurchase
	}
	if s.method != domain.PaymentMethodCard {
		s.mu.Unlock()
		return ErrNoMethod
	}
	hash, attempt := s.hash, s.attempt
	s.mu.Unlock()

	if !card.Ready() {
		return ErrCardNotReady
	}

	ok, err := s.provider.ConfirmPayment(ctx, hash)
	if err != nil {
		if s.commit(OutcomeFailed, attempt) {
			s.publish(kafka.EventPaymentFailed, string(domain.PaymentMethodCard))
		}
		return err
	}
	if !ok {
		if s.commit(OutcomeFailed, attempt) {
			s.publish(kafka.EventPaymentFailed, string(domain.PaymentMethodCard))
		}
		return nil
	}
	if s.commit(OutcomeSuccess, attempt) {
		s.publish(kafka.EventPaymentSuccess, string(domain.PaymentMethodCard))
	}
	return nil
}

// Retry sends the user back to method selection after a timeout or a failed
// attempt. The purchase hash is kept; the provider is not called again.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.outcome == OutcomeSuccess {
		return nil
	}
	s.stopPollLocked()
	s.attempt++
	s.method = ""
	s.outcome = OutcomePending
	return nil
}

// Close stops polling and cancels the purchase if it never settled. Closing
// twice is a no-op.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopPollLocked()
	hash, outcome := s.hash, s.outcome
	s.mu.Unlock()

	if hash != "" && outcome != OutcomeSuccess {
		_, _ = s.provider.CancelPayment(ctx, hash)
	}
}

// commit records a settlement outcome for one attempt. Success is terminal;
// a result from an attempt that was already superseded by a retry or a new
// method choice is discarded.
func (s *Session) commit(outcome Outcome, attempt int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.outcome == OutcomeSuccess || s.attempt != attempt {
		return false
	}
	s.outcome = outcome
	if outcome == OutcomeTimeout || outcome == OutcomeFailed {
		s.method = ""
	}
	return true
}

func (s *Session) stopPollLocked() {
	if s.cancelPoll != nil {
		s.cancelPoll()
		s.cancelPoll = nil
	}
}

func (s *Session) publish(eventType, method string) {
	if s.events == nil {
		return
	}

	s.mu.Lock()
	event := kafka.PurchaseEvent{
		Type:         eventType,
		SessionID:    s.id,
		PurchaseHash: s.hash,
		Method:       method,
		TotalCost:    s.totalCost,
		Emails:       append([]string(nil), s.emails...),
		OccurredAt:   s.now(),
	}
	s.mu.Unlock()

	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.events.Publish(pubCtx, s.id, event)
}
