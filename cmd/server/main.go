// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/ilushkaDushni/walkmap-sub001/internal/achievements"
	"github.com/ilushkaDushni/walkmap-sub001/internal/auth"
	"github.com/ilushkaDushni/walkmap-sub001/internal/cache"
	"github.com/ilushkaDushni/walkmap-sub001/internal/database"
	"github.com/ilushkaDushni/walkmap-sub001/internal/handlers"
	"github.com/ilushkaDushni/walkmap-sub001/internal/lobby"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	server := &handlers.Server{
		Logger:   logger,
		Sessions: lobby.NewStore(),
		Users:    database.Directory{},
		RouteDir: database.Directory{},
	}
	server.Completion = lobby.NewCoordinator(
		server.Sessions,
		database.Directory{},
		database.Ledger{},
		achievements.Evaluator{},
		logger,
	)

	// Event publishing is best-effort: without Redis the API still runs,
	// it just emits no out-of-band events.
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, lobby events disabled: %v", err)
	} else {
		server.Publish = cache.PublishLobbyEvent
	}

	// Background reaper: closes expired lobbies and drops stale terminal
	// ones.
	go server.Sessions.RunReaper(context.Background(), time.Minute)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
