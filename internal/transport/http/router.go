package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/snapcart-app/snapcart/internal/handlers"
	"github.com/snapcart-app/snapcart/internal/middleware/sessionmw"
	"github.com/snapcart-app/snapcart/internal/session"
)

type Deps struct {
	Codec           *session.Codec
	AuthHandler     *handlers.AuthHandler
	ProductHandler  *handlers.ProductHandler
	CartHandler     *handlers.CartHandler
	DeliveryHandler *handlers.DeliveryHandler
	SearchHandler   *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/auth/google", d.AuthHandler.GoogleStart)
	v1.GET("/auth/google/callback", d.AuthHandler.GoogleCallback)

	v1.GET("/user/me", d.AuthHandler.Me)

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}

	admin := v1.Group("/admin", sessionmw.AdminOnly(d.Codec))

	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.PATCH("/users/role", d.AuthHandler.UpdateRole)
	admin.POST("/delivery/:id/location", d.DeliveryHandler.ReportLocation)

	products := v1.Group("/products")

	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("", d.ProductHandler.GetProducts)

	cart := v1.Group("/cart", sessionmw.RequireLogin(d.Codec))

	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.POST("/order", d.CartHandler.MakeOrder)
	cart.DELETE("/:id", d.CartHandler.DeleteOneFromCart)
	cart.DELETE("/:id/all", d.CartHandler.DeleteAllFromCart)

	delivery := v1.Group("/delivery", sessionmw.RequireLogin(d.Codec))

	delivery.GET("/:id/track", d.DeliveryHandler.Track)
}
