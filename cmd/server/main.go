// Package main runs the sensor window service:
// - websocket and HTTP ingest for decoded sensor packets
// - window assembly with time sync correction, gap filling and truncation
// - SQLite persistence for window and segment summaries
// - Redis caching of assembled windows
// - Prometheus metrics export
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"sensor-window-service/config"
	"sensor-window-service/internal/api"
	"sensor-window-service/internal/cache"
	"sensor-window-service/internal/ingest"
	"sensor-window-service/internal/repository"
	"sensor-window-service/internal/service"
	"sensor-window-service/internal/store"
)

func main() {
	log.Println("Starting sensor window service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	repo, err := repository.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database ready at %s", cfg.DBPath)

	var windowCache *cache.WindowCache
	if cfg.RedisAddr != "" {
		for i := 0; i < 5; i++ {
			windowCache, err = cache.NewWindowCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err == nil {
				log.Printf("Connected to Redis at %s", cfg.RedisAddr)
				break
			}
			log.Printf("Redis connection attempt %d failed: %v", i+1, err)
			if i < 4 {
				time.Sleep(time.Duration(i+1) * time.Second)
			}
		}
		if windowCache == nil {
			log.Printf("Warning: running without window cache: %v", err)
		}
	} else {
		log.Println("Window cache disabled (no REDIS_ADDR)")
	}

	packetStore := store.NewPacketStore()
	windowService := service.NewWindowService(packetStore, repo, windowCache)

	hub := ingest.NewHub(windowService)
	go hub.Run()

	router := gin.Default()
	handler := api.NewHandler(windowService, hub)
	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if windowCache != nil {
		windowCache.Close()
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
