// Command cleardb wipes every table. One-off administrative tool for
// resetting a development or staging environment; refuses to run
// without the --yes flag.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/snapcart-app/snapcart/internal/config"
	"github.com/snapcart-app/snapcart/internal/models"
	"github.com/snapcart-app/snapcart/internal/store"
)

func main() {
	yes := flag.Bool("yes", false, "actually delete all data")
	flag.Parse()

	if !*yes {
		log.Fatal("refusing to wipe the database without --yes")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	st := store.New(cfg.DatabaseURL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := st.DB(ctx)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	for _, model := range models.All() {
		result := db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(model)
		if result.Error != nil {
			log.Fatalf("wipe error for %T: %v", model, result.Error)
		}
		log.Printf("deleted %d rows of %T", result.RowsAffected, model)
	}

	if err := st.Close(); err != nil {
		log.Printf("db close error: %v", err)
	}
	log.Println("database cleared")
}
