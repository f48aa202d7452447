package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/snapcart-app/snapcart/internal/events"
	"github.com/snapcart-app/snapcart/internal/models"
)

func withUser(c echo.Context, id uuid.UUID) {
	c.Set("userID", id.String())
	c.Set("role", "user")
}

func TestAddToCartAndOrder(t *testing.T) {
	authHandler := newAuthHandler(t)
	st := authHandler.Gateway.Users.Store
	h := &CartHandler{Store: st, Producer: &events.Producer{}}
	e := echo.New()

	db, err := st.DB(context.Background())
	require.NoError(t, err)

	prod := models.Product{Name: "mug", Description: "a mug", Price: 9.5, Count: 10}
	require.NoError(t, db.Create(&prod).Error)

	userID := uuid.New()

	cAdd, recAdd := jsonRequest(t, e, http.MethodPost, "/cart",
		map[string]uint{"product_id": prod.ID, "quantity": 2})
	withUser(cAdd, userID)
	require.NoError(t, h.AddToCart(cAdd))
	require.Equal(t, http.StatusOK, recAdd.Code)

	var item models.CartItem
	require.NoError(t, json.Unmarshal(recAdd.Body.Bytes(), &item))
	require.EqualValues(t, 2, item.Quantity)

	// Adding the same product again merges quantities.
	cAgain, recAgain := jsonRequest(t, e, http.MethodPost, "/cart",
		map[string]uint{"product_id": prod.ID, "quantity": 1})
	withUser(cAgain, userID)
	require.NoError(t, h.AddToCart(cAgain))
	require.NoError(t, json.Unmarshal(recAgain.Body.Bytes(), &item))
	require.EqualValues(t, 3, item.Quantity)

	cOrder, recOrder := jsonRequest(t, e, http.MethodPost, "/cart/order", nil)
	withUser(cOrder, userID)
	require.NoError(t, h.MakeOrder(cOrder))
	require.Equal(t, http.StatusCreated, recOrder.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(recOrder.Body.Bytes(), &order))
	require.Equal(t, "pending", order.Status)
	require.InDelta(t, 28.5, order.Total, 0.001)

	var left int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&left).Error)
	require.EqualValues(t, 0, left)
}

func TestMakeOrderEmptyCart(t *testing.T) {
	authHandler := newAuthHandler(t)
	h := &CartHandler{Store: authHandler.Gateway.Users.Store, Producer: &events.Producer{}}
	e := echo.New()

	c, _ := jsonRequest(t, e, http.MethodPost, "/cart/order", nil)
	withUser(c, uuid.New())

	err := h.MakeOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestDeliveryReportAndTrack(t *testing.T) {
	authHandler := newAuthHandler(t)
	st := authHandler.Gateway.Users.Store
	h := &DeliveryHandler{Store: st, Producer: &events.Producer{}}
	e := echo.New()

	db, err := st.DB(context.Background())
	require.NoError(t, err)

	userID := uuid.New()
	order := models.Order{UserID: userID, CreatedAt: 1, Total: 10, Status: "shipped"}
	require.NoError(t, db.Create(&order).Error)

	for _, pos := range [][2]float64{{45.0, -73.0}, {45.1, -73.1}} {
		c, rec := jsonRequest(t, e, http.MethodPost, "/admin/delivery/1/location",
			map[string]float64{"lat": pos[0], "lng": pos[1]})
		c.SetParamNames("id")
		c.SetParamValues("1")
		require.NoError(t, h.ReportLocation(c))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	cTrack, recTrack := jsonRequest(t, e, http.MethodGet, "/delivery/1/track", nil)
	cTrack.SetParamNames("id")
	cTrack.SetParamValues("1")
	withUser(cTrack, userID)
	require.NoError(t, h.Track(cTrack))
	require.Equal(t, http.StatusOK, recTrack.Code)

	var resp struct {
		Route []models.DeliveryPoint `json:"route"`
	}
	require.NoError(t, json.Unmarshal(recTrack.Body.Bytes(), &resp))
	require.Len(t, resp.Route, 2)
	require.Equal(t, 45.0, resp.Route[0].Lat)

	// Another shopper cannot track someone else's order.
	cOther, _ := jsonRequest(t, e, http.MethodGet, "/delivery/1/track", nil)
	cOther.SetParamNames("id")
	cOther.SetParamValues("1")
	withUser(cOther, uuid.New())
	errTrack := h.Track(cOther)
	he, ok := errTrack.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}
