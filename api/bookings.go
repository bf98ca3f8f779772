package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/airbot/internal/domain"
)

type BookingLister interface {
	ListUserBookings(ctx context.Context, userID string) ([]domain.ExternalBooking, error)
}

type BookingHandler struct {
	service BookingLister
}

type bookingResponse struct {
	BookingID     string `json:"booking_id"`
	FlightNumber  string `json:"flight_number"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	Date          string `json:"date"`
	PassengerName string `json:"passenger_name"`
	Seat          string `json:"seat"`
	Status        string `json:"status"`
	PriceCents    int64  `json:"price_cents"`
}

func NewBookingHandler(service BookingLister) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/:user_id", h.list)
}

func (h *BookingHandler) list(c *gin.Context) {
	userID := c.Param("user_id")
	bookings, err := h.service.ListUserBookings(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingResponse{
			BookingID:     b.BookingID,
			FlightNumber:  b.FlightNumber,
			Origin:        b.Origin,
			Destination:   b.Destination,
			Date:          b.Date,
			PassengerName: b.PassengerName,
			Seat:          b.Seat,
			Status:        string(b.Status),
			PriceCents:    b.PriceCents,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "bookings": out})
}
