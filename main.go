package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"videosync/config"
	"videosync/handlers"
	"videosync/internal/collab"
	"videosync/internal/session"
	"videosync/internal/store"
	"videosync/internal/worker"
	"videosync/middleware"
)

func main() {
	config.InitLogger()
	log := config.Log

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.InitSupabase(cfg); err != nil {
		log.Fatalf("Failed to initialize Supabase: %v", err)
	}

	registry := session.NewRegistry(log)
	snapshots := store.New(config.SupabaseClient, log)

	dispatcher := worker.NewDispatcher(cfg.ProbeWorkers, 64, log)
	dispatcher.Run()
	defer dispatcher.Stop()

	hub := collab.NewHub(registry, log)
	go func() {
		if err := hub.Serve(":" + cfg.CollabPort); err != nil {
			log.Fatalf("Collaboration hub failed: %v", err)
		}
	}()

	api := &handlers.API{
		Registry:     registry,
		Dispatcher:   dispatcher,
		Store:        snapshots,
		Hub:          hub,
		Log:          log,
		RemoteHubURL: cfg.RemoteHubURL,
	}

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "videosync engine is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")

	apiV1.Post("/sessions", api.CreateSession)
	apiV1.Get("/sessions", api.ListSessions)
	apiV1.Get("/sessions/:sessionId", api.GetSession)
	apiV1.Post("/sessions/:sessionId/save", api.SaveSession)
	apiV1.Post("/sessions/:sessionId/restore", api.RestoreSession)
	apiV1.Delete("/sessions/:sessionId", api.DeleteSession)

	sessionScope := apiV1.Group("/sessions/:sessionId")

	sessionScope.Post("/clips", api.ImportClip)
	sessionScope.Delete("/clips/:clipId", api.DeleteClip)
	sessionScope.Post("/segments", api.AddSegment)
	sessionScope.Delete("/segments/:segmentId", api.DeleteSegment)
	sessionScope.Post("/bgm", api.AddBGMTrack)
	sessionScope.Delete("/bgm/:trackId", api.DeleteBGMTrack)
	sessionScope.Post("/updates", api.ApplyUpdate)

	sessionScope.Post("/playback/play", api.Play)
	sessionScope.Post("/playback/pause", api.Pause)
	sessionScope.Post("/playback/seek", api.Seek)
	sessionScope.Post("/playback/volume", api.SetVolume)
	sessionScope.Post("/playback/advance", api.Advance)
	sessionScope.Get("/playback", api.GetPlaybackState)

	sessionScope.Post("/drag/begin", api.BeginDrag)
	sessionScope.Post("/drag/move", api.MoveDrag)
	sessionScope.Post("/drag/commit", api.CommitDrag)
	sessionScope.Post("/drag/cancel", api.CancelDrag)

	log.Infof("Starting videosync engine on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
