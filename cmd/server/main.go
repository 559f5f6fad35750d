package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/royal-iskon/api/internal/board"
	"github.com/royal-iskon/api/internal/config"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/router"
	"github.com/royal-iskon/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	// Kitchen board: warm snapshot now, then refresh on a timer.
	b := board.New()
	refresher := board.NewRefresher(b, queries, cfg.BoardRefreshInterval)
	go refresher.Run(ctx)

	r := router.New(cfg, queries, pool, hub, b)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
