package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/snapcart-app/snapcart/internal/auth"
	"github.com/snapcart-app/snapcart/internal/config"
	"github.com/snapcart-app/snapcart/internal/es"
	"github.com/snapcart-app/snapcart/internal/events"
	"github.com/snapcart-app/snapcart/internal/handlers"
	"github.com/snapcart-app/snapcart/internal/identity"
	"github.com/snapcart-app/snapcart/internal/logging"
	"github.com/snapcart-app/snapcart/internal/middleware/loggingmw"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/oauth"
	"github.com/snapcart-app/snapcart/internal/repo"
	"github.com/snapcart-app/snapcart/internal/session"
	"github.com/snapcart-app/snapcart/internal/store"
	httpserver "github.com/snapcart-app/snapcart/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.AuthSecret, "AUTH_SECRET")

	logger := logging.New(cfg.LogLevel)

	st := store.New(cfg.DatabaseURL, nil)

	// Migrate eagerly so a bad database surfaces at boot, not on the
	// first login.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := st.DB(ctx)
	cancel()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	users := &repo.UserRepo{Store: st}
	codec := session.NewCodec(cfg.AuthSecret, cfg.SessionMaxAge)
	gateway := &auth.Gateway{
		Users:    users,
		Resolver: &identity.Resolver{Users: users},
		Codec:    codec,
	}

	google := oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/api/v1/auth/google/callback")

	prod := events.NewProducer(cfg.KafkaBrokers)

	var searchHandler *handlers.SearchHandler
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			log.Fatal(err)
		}
		searchHandler = &handlers.SearchHandler{ES: esClient, Index: "product"}
	}

	e := echo.New()
	if cfg.TrustHost {
		// Behind a trusted proxy the client address comes from X-Forwarded-For.
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	}
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Codec: codec,
		AuthHandler: &handlers.AuthHandler{
			Gateway:  gateway,
			Google:   google,
			Producer: prod,
			BaseURL:  cfg.BaseURL,
			MaxAge:   cfg.SessionMaxAge,
		},
		ProductHandler:  &handlers.ProductHandler{Store: st, Producer: prod},
		CartHandler:     &handlers.CartHandler{Store: st, Producer: prod},
		DeliveryHandler: &handlers.DeliveryHandler{Store: st, Producer: prod},
		SearchHandler:   searchHandler,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Printf("db close error: %v", err)
	}
	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
