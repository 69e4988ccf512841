package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"school-planner/api"
	"school-planner/storage"
)

func main() {
	_ = godotenv.Load()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	kv, err := storage.NewKVFromEnv()
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	store := storage.NewStateStore(kv, os.Getenv("STATE_KEY"))

	feed, err := storage.NewQueueFeedFromEnv()
	if err != nil {
		log.Fatalf("change feed: %v", err)
	}
	var changeFeed api.ChangeFeed
	if feed != nil {
		changeFeed = feed
	}

	apiKey := os.Getenv("PLANNER_API_KEY")
	if apiKey == "" {
		log.Warn("PLANNER_API_KEY not set, state API is open")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.PUT},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-API-Key"},
	}))
	e.Use(api.DecompressRequests())

	logger := log.New()
	api.Register(e, store, changeFeed, apiKey, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	} else if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
