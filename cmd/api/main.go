package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jwebster45206/storyforge/internal/assetcache"
	"github.com/jwebster45206/storyforge/internal/config"
	"github.com/jwebster45206/storyforge/internal/events"
	"github.com/jwebster45206/storyforge/internal/game"
	"github.com/jwebster45206/storyforge/internal/handlers"
	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/internal/logger"
	"github.com/jwebster45206/storyforge/internal/metrics"
	"github.com/jwebster45206/storyforge/internal/middleware"
	istorage "github.com/jwebster45206/storyforge/internal/storage"
	"github.com/jwebster45206/storyforge/pkg/catalog"
	"github.com/jwebster45206/storyforge/pkg/saves"
	"github.com/jwebster45206/storyforge/pkg/storage"
	"github.com/jwebster45206/storyforge/pkg/textfilter"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting StoryForge API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider)

	m := metrics.New()

	store, bus, err := openStorage(cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully", "backend", cfg.StorageBackend)

	saveManager, err := saves.NewManager(store, logger.Component(log, "saves"))
	if err != nil {
		log.Error("Failed to create save manager", "error", err)
		os.Exit(1)
	}

	stories, err := catalog.Default()
	if err != nil {
		log.Error("Failed to load story catalog", "error", err)
		os.Exit(1)
	}
	log.Info("Story catalog loaded", "stories", stories.Len())

	engine, err := newEngine(cfg, log)
	if err != nil {
		log.Error("Failed to create LLM engine", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	}
	loader := llm.NewModelLoader(engine, logger.Component(log, "llm"), llm.WithMetrics(m))
	if engine != nil {
		go loadDefaultModel(cfg, loader, saveManager, log)
	}

	assets, err := assetcache.Open(cfg.AssetCacheDir, logger.Component(log, "assetcache"))
	if err != nil {
		log.Error("Failed to open asset cache", "dir", cfg.AssetCacheDir, "error", err)
		os.Exit(1)
	}
	if cfg.AssetUpstream != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n := assets.Warm(ctx, cfg.AssetUpstream, assetcache.DefaultStaticAssets)
			log.Info("Static assets cached", "count", n)
		}()
	}

	registry := game.NewRegistry(game.Deps{
		Catalog:   stories,
		Generator: loader,
		Saves:     saveManager,
		Events:    bus,
		Filter:    textfilter.New(),
		Metrics:   m,
		Logger:    logger.Component(log, "game"),
	})

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, loader, log))
	mux.Handle("/metrics", m.Handler())

	storiesHandler := handlers.NewStoriesHandler(stories, log)
	mux.Handle("/v1/stories", storiesHandler)
	mux.Handle("/v1/stories/", storiesHandler)

	gamesHandler := handlers.NewGamesHandler(registry, log)
	mux.Handle("/v1/games", gamesHandler)
	mux.Handle("/v1/games/", gamesHandler)

	savesHandler := handlers.NewSavesHandler(saveManager, registry, log)
	mux.Handle("/v1/saves", savesHandler)
	mux.Handle("/v1/saves/", savesHandler)
	mux.HandleFunc("/v1/storage", savesHandler.StorageInfo)

	settingsHandler := handlers.NewSettingsHandler(saveManager, log)
	mux.Handle("/v1/settings", settingsHandler)
	mux.Handle("/v1/settings/", settingsHandler)

	modelsHandler := handlers.NewModelsHandler(loader, saveManager, log)
	mux.Handle("/v1/models", modelsHandler)
	mux.Handle("/v1/models/", modelsHandler)

	mux.Handle("/v1/events/", handlers.NewEventsHandler(bus, logger.Component(log, "events")))

	cacheHandler := handlers.NewCacheHandler(assets, log)
	mux.Handle("/v1/cache", cacheHandler)
	mux.Handle("/v1/cache/", cacheHandler)
	mux.Handle("/assets/", http.StripPrefix("/assets", assets.Handler(cfg.AssetUpstream)))

	handler := middleware.Metrics(m)(middleware.Logger(mux))
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout removed to enable streaming - SSE and generation handle their own timeouts
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	saveManager.Close()
	if err := assets.Close(); err != nil {
		log.Error("Error closing asset cache", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// openStorage connects the configured backend. Game events go over Redis
// pub/sub when Redis is the backend and through an in-process hub otherwise.
func openStorage(cfg *config.Config, log *slog.Logger) (storage.Store, events.Bus, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		rs, err := istorage.NewRedisStorage(cfg.RedisURL, log)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := rs.WaitForConnection(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		return rs, events.NewBroadcaster(rs.Client(), log), nil
	case config.StorageSQLite:
		s, err := istorage.OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, events.NewHub(), nil
	default:
		log.Warn("Using in-memory storage; saves are lost on restart")
		return storage.NewMockStorage(), events.NewHub(), nil
	}
}

func newEngine(cfg *config.Config, log *slog.Logger) (llm.Engine, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return llm.NewOllamaEngine(cfg.LLMBaseURL, cfg.LLMTimeout, log)
	case config.ProviderOpenAI:
		return llm.NewOpenAIEngine(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout, log), nil
	default:
		log.Info("No LLM provider configured; only authored stories are playable")
		return nil, nil
	}
}

// loadDefaultModel loads DEFAULT_MODEL, or the model the player last chose.
func loadDefaultModel(cfg *config.Config, loader *llm.ModelLoader, mgr *saves.Manager, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	id := cfg.DefaultModel
	if id == "" {
		preferred, err := saves.Setting(ctx, mgr, saves.SettingPreferredModel, "")
		if err != nil {
			log.Warn("Failed to read preferred model", "error", err)
		}
		id = preferred
	}
	if id == "" {
		return
	}
	if err := loader.Load(ctx, id, nil); err != nil {
		log.Error("Failed to load default model", "model", id, "error", err)
	}
}
