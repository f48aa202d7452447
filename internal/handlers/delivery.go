package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/snapcart-app/snapcart/internal/events"
	"github.com/snapcart-app/snapcart/internal/logging"
	"github.com/snapcart-app/snapcart/internal/middleware/sessionmw"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/store"
)

// DeliveryHandler records courier positions for orders in transit and
// feeds them to the live-tracking consumers via kafka.
type DeliveryHandler struct {
	Store    *store.Store
	Producer *events.Producer
}

// ReportLocation persists one position sample for an order. Admin only:
// position updates come from the courier side, not from shoppers.
func (h *DeliveryHandler) ReportLocation(c echo.Context) error {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	var order models.Order
	if err := db.First(&order, orderID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	point := models.DeliveryPoint{
		OrderID:    order.ID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		RecordedAt: time.Now().UTC(),
	}
	if err := db.Create(&point).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	event := map[string]any{
		"type":    "delivery_location",
		"orderID": order.ID,
		"lat":     point.Lat,
		"lng":     point.Lng,
		"at":      point.RecordedAt,
	}
	if err := h.Producer.PublishEvent(ctx, "delivery_events", fmt.Sprint(order.ID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}

	return c.JSON(http.StatusCreated, point)
}

// Track returns the recorded route for one of the caller's orders,
// oldest point first.
func (h *DeliveryHandler) Track(c echo.Context) error {
	userID, err := sessionmw.UserID(c)
	if err != nil {
		return err
	}
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	var order models.Order
	if err := db.Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	var points []models.DeliveryPoint
	if err := db.Where("order_id = ?", order.ID).Order("recorded_at ASC").Find(&points).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order_id": order.ID,
		"status":   order.Status,
		"route":    points,
	})
}
