package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Nex2i/Polygloss/internal/agent"
	"github.com/Nex2i/Polygloss/internal/auth"
	"github.com/Nex2i/Polygloss/internal/chat"
	"github.com/Nex2i/Polygloss/internal/config"
	"github.com/Nex2i/Polygloss/internal/hub"
	"github.com/Nex2i/Polygloss/internal/httpapi"
	"github.com/Nex2i/Polygloss/internal/lessons"
	"github.com/Nex2i/Polygloss/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting polygloss server...")
	log.Printf("WebSocket Port: %d", cfg.WSPort)
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Store Driver: %s", cfg.StoreDriver)
	log.Printf("Agent Mode: %s", cfg.AgentMode)

	// Initialize store
	chatStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer chatStore.Close()

	// Initialize hub
	connectionHub := hub.NewHub()
	go connectionHub.Run()

	// Initialize agent gateway
	gateway := agent.NewGateway(cfg, chatStore)

	// Initialize auth verifier
	verifier := auth.NewVerifier(cfg.AuthSecret)
	if !verifier.Enabled() {
		log.Printf("AUTH_SECRET not set; all users are anonymous")
	}

	// Initialize WebSocket server
	chatServer := chat.NewServer(cfg, connectionHub, chatStore, gateway, verifier)

	// Create WebSocket Echo server
	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Logger())
	wsEcho.Use(middleware.Recover())
	wsEcho.GET("/ws", chatServer.HandleWebSocket)

	// Initialize HTTP API server
	apiServer := httpapi.NewServer(connectionHub, chatStore, lessons.NewDefaultProvider())

	// Start WebSocket server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := wsEcho.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start WebSocket server: %v", err)
		}
	}()

	// Start HTTP API server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := apiServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	log.Printf("WebSocket server started on port %d", cfg.WSPort)
	log.Printf("HTTP API server started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down polygloss server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsEcho.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown WebSocket server gracefully: %v", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("Polygloss server stopped")
}

// newStore selects the store implementation from configuration.
func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		return store.NewSQLiteStore(cfg.DatabaseURL)
	default:
		return store.NewMemoryStore(), nil
	}
}
