// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/auth"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/cache"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/database"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/handlers"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/matchstate"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/middleware"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/room"
)

func main() {
	privateKeyPath := os.Getenv("AUTH_PRIVATE_KEY_PATH")
	publicKeyPath := os.Getenv("AUTH_PUBLIC_KEY_PATH")
	if privateKeyPath != "" && publicKeyPath != "" {
		if err := auth.InitFromPath(privateKeyPath, publicKeyPath); err != nil {
			log.Fatalf("failed to load session signing keys: %v", err)
		}
	} else {
		auth.Init()
	}
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	store := database.NewStore(database.DB)
	if err := database.EnsureSchema(context.Background(), database.DB); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// Subscription attachments survive reconnects through Redis; without it
	// the registry still works, just without reconnect-durable filters.
	var attachments matchstate.AttachmentStore
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, subscriptions are connection-scoped: %v", err)
	} else {
		attachments = cache.NewSubscriptionAttachments(cache.Rdb)
	}

	registry := matchstate.NewRegistry(logger, attachments)
	composer := matchstate.NewComposer(store)
	dispatcher := matchstate.NewDispatcher(store, registry, composer, logger)
	rooms := room.NewRoomStore(store, logger)

	mux := http.NewServeMux()

	mux.Handle("/auth/token", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.TokenLoginHandler(logger),
	)))

	mux.Handle("/matches", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.MatchesHandler(logger, store),
	)))
	mux.Handle("/sets", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.SetsHandler(logger, store),
	)))

	mux.Handle("/room/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomHandler(logger, rooms),
	)))

	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, registry, dispatcher),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
