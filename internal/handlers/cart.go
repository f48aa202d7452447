package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/snapcart-app/snapcart/internal/events"
	"github.com/snapcart-app/snapcart/internal/logging"
	"github.com/snapcart-app/snapcart/internal/middleware/sessionmw"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/store"
)

type CartHandler struct {
	Store    *store.Store
	Producer *events.Producer
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := sessionmw.UserID(c)
	if err != nil {
		return err
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	var items []models.CartItem
	if err := db.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := sessionmw.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	var item models.CartItem
	tx := db.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item)
	if tx.Error == nil {
		item.Quantity += req.Quantity
		if err := db.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		item = models.CartItem{UserID: userID, ProductID: req.ProductID, Quantity: req.Quantity}
		if err := db.Create(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteOneFromCart(c echo.Context) error {
	userID, err := sessionmw.UserID(c)
	if err != nil {
		return err
	}
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	var item models.CartItem
	if err := db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "item not in cart")
	}

	if item.Quantity > 1 {
		item.Quantity--
		if err := db.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		if err := db.Delete(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		item.Quantity = 0
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteAllFromCart(c echo.Context) error {
	userID, err := sessionmw.UserID(c)
	if err != nil {
		return err
	}
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	if err := db.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "cart_cleared_product",
		"userID":    userID,
		"productID": productID,
	})
	return c.NoContent(http.StatusNoContent)
}

// MakeOrder turns the cart into an order inside one transaction:
// price lookup, order row, item rows, cart cleanup.
func (h *CartHandler) MakeOrder(c echo.Context) error {
	userID, err := sessionmw.UserID(c)
	if err != nil {
		return err
	}

	db, err := h.Store.DB(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "please try again later")
	}

	var order models.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return gorm.ErrRecordNotFound
		}

		order = models.Order{
			UserID:    userID,
			CreatedAt: time.Now().Unix(),
			Status:    "pending",
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, item := range items {
			var prod models.Product
			if err := tx.First(&prod, item.ProductID).Error; err != nil {
				return err
			}
			oi := models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     prod.Price,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			order.Total += prod.Price * float64(item.Quantity)
		}

		if err := tx.Model(&order).Update("total", order.Total).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
		"total":   order.Total,
	})
	return c.JSON(http.StatusCreated, order)
}
