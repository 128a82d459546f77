package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/viltskaa/prometei/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/airports", h.airports)
	router.GET("/:id", h.get)
	router.GET("/:id/favors", h.favors)
	router.GET("/:id/tickets", h.tickets)
}

func (h *FlightHandler) airports(c *gin.Context) {
	airports, err := h.service.Airports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, airports)
}

func (h *FlightHandler) get(c *gin.Context) {
	leg, err := h.service.GetLeg(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, leg)
}

func (h *FlightHandler) favors(c *gin.Context) {
	favors, err := h.service.Favors(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, favors)
}

func (h *FlightHandler) tickets(c *gin.Context) {
	tickets, err := h.service.Tickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tickets)
}
