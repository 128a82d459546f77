package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/viltskaa/prometei/internal/domain"
	"github.com/viltskaa/prometei/internal/service/passengers"
	"github.com/viltskaa/prometei/internal/service/payment"
	"github.com/viltskaa/prometei/internal/service/purchase"
	"github.com/viltskaa/prometei/internal/service/seats"
)

// Workflow is one live purchase session as the HTTP layer sees it.
type Workflow interface {
	ID() string
	State() (purchase.StateView, error)
	Next(ctx context.Context) (domain.Step, error)
	Back() (domain.Step, error)
	SetPassenger(slot int, p domain.Passenger) error
	ToggleFavor(ctx context.Context, slot int, flightID, favorID string) (domain.LegAssignment, error)
	Favors(ctx context.Context, flightID, query string) ([]domain.Favor, error)
	SeatMap(ctx context.Context, slot int, flightID string, withHeat bool) ([]seats.MapEntry, error)
	SelectSeat(slot int, flightID, ticketID string) (*domain.SeatTicket, error)
	StartPayment(ctx context.Context, method domain.PaymentMethod) (string, error)
	ConfirmCard(ctx context.Context, card payment.CardDetails) error
	RetryPayment() error
}

type WorkflowManager interface {
	Create(ctx context.Context, req purchase.OpenRequest) (Workflow, error)
	Get(id string) (Workflow, error)
	Close(ctx context.Context, id string) error
}

// ManagerAdapter exposes the purchase manager through the handler interfaces.
type ManagerAdapter struct {
	Manager *purchase.Manager
}

func (a ManagerAdapter) Create(ctx context.Context, req purchase.OpenRequest) (Workflow, error) {
	o, err := a.Manager.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (a ManagerAdapter) Get(id string) (Workflow, error) {
	o, err := a.Manager.Get(id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (a ManagerAdapter) Close(ctx context.Context, id string) error {
	return a.Manager.Close(ctx, id)
}

type SessionHandler struct {
	manager WorkflowManager
}

type createSessionRequest struct {
	FlightIDs []string          `json:"flightIds"`
	Economy   int               `json:"economy"`
	Business  int               `json:"business"`
	UserID    string            `json:"userId"`
	User      *domain.Passenger `json:"user"`
}

type toggleFavorRequest struct {
	Slot     int    `json:"slot"`
	FlightID string `json:"flightId"`
	FavorID  string `json:"favorId"`
}

type selectSeatRequest struct {
	Slot     int    `json:"slot"`
	FlightID string `json:"flightId"`
	TicketID string `json:"ticketId"`
}

type startPaymentRequest struct {
	Method string `json:"method"`
}

func NewSessionHandler(manager WorkflowManager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

func (h *SessionHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.state)
	router.DELETE("/:id", h.close)
	router.POST("/:id/next", h.next)
	router.POST("/:id/back", h.back)
	router.PUT("/:id/passengers/:slot", h.setPassenger)
	router.GET("/:id/favors/:flightId", h.favors)
	router.POST("/:id/favors", h.toggleFavor)
	router.GET("/:id/seatmap", h.seatMap)
	router.POST("/:id/seats", h.selectSeat)
	router.POST("/:id/payment", h.startPayment)
	router.POST("/:id/payment/card", h.confirmCard)
	router.POST("/:id/payment/retry", h.retryPayment)
}

func (h *SessionHandler) create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workflow, err := h.manager.Create(c.Request.Context(), purchase.OpenRequest{
		FlightIDs: req.FlightIDs,
		Economy:   req.Economy,
		Business:  req.Business,
		UserID:    req.UserID,
		User:      req.User,
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	state, err := workflow.State()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, state)
}

func (h *SessionHandler) state(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	state, err := workflow.State()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *SessionHandler) close(c *gin.Context) {
	if err := h.manager.Close(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) next(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	step, err := workflow.Next(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": int(step), "stepName": step.String()})
}

func (h *SessionHandler) back(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	step, err := workflow.Back()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": int(step), "stepName": step.String()})
}

func (h *SessionHandler) setPassenger(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}

	var record domain.Passenger
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := workflow.SetPassenger(slot, record); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": record.Valid()})
}

func (h *SessionHandler) favors(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	favors, err := workflow.Favors(c.Request.Context(), c.Param("flightId"), c.Query("query"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, favors)
}

func (h *SessionHandler) toggleFavor(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	var req toggleFavorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment, err := workflow.ToggleFavor(c.Request.Context(), req.Slot, req.FlightID, req.FavorID)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"favors":    assignment.Favors,
		"seat":      assignment.Seat,
		"favorCost": assignment.FavorCost(),
	})
}

func (h *SessionHandler) seatMap(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}
	slot, err := strconv.Atoi(c.Query("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}

	withHeat := c.Query("heat") == "true"
	entries, err := workflow.SeatMap(c.Request.Context(), slot, c.Query("flightId"), withHeat)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *SessionHandler) selectSeat(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	var req selectSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seat, err := workflow.SelectSeat(req.Slot, req.FlightID, req.TicketID)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, seat)
}

func (h *SessionHandler) startPayment(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	var req startPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := workflow.StartPayment(c.Request.Context(), domain.PaymentMethod(req.Method))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": hash})
}

func (h *SessionHandler) confirmCard(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	var card payment.CardDetails
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := workflow.ConfirmCard(c.Request.Context(), card); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	state, err := workflow.State()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state.Payment)
}

func (h *SessionHandler) retryPayment(c *gin.Context) {
	workflow, ok := h.workflow(c)
	if !ok {
		return
	}

	if err := workflow.RetryPayment(); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) workflow(c *gin.Context) (Workflow, bool) {
	workflow, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return nil, false
	}
	return workflow, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, purchase.ErrSessionNotFound),
		errors.Is(err, purchase.ErrUnknownLeg),
		errors.Is(err, purchase.ErrUnknownFavor),
		errors.Is(err, seats.ErrUnknownSeat):
		return http.StatusNotFound
	case errors.Is(err, purchase.ErrWrongStep),
		errors.Is(err, purchase.ErrSeatShortage),
		errors.Is(err, purchase.ErrClosed),
		errors.Is(err, seats.ErrSeatOccupied),
		errors.Is(err, payment.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, purchase.ErrIdentitiesIncomplete),
		errors.Is(err, purchase.ErrNoSeats),
		errors.Is(err, passengers.ErrSlotOutOfRange),
		errors.Is(err, seats.ErrWrongClass),
		errors.Is(err, payment.ErrCardNotReady),
		errors.Is(err, payment.ErrNoMethod),
		errors.Is(err, payment.ErrNoPurchase):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
