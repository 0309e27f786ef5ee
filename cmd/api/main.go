package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/internal/adapter"
	"github.com/dustin/showfinder/internal/audit"
	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/embedding"
	"github.com/dustin/showfinder/internal/interaction"
	"github.com/dustin/showfinder/internal/llm"
	"github.com/dustin/showfinder/internal/recommendation"
	"github.com/dustin/showfinder/internal/repository"
	"github.com/dustin/showfinder/internal/search"
	"github.com/dustin/showfinder/internal/user"
	"github.com/dustin/showfinder/internal/worker"
	"github.com/dustin/showfinder/pkg/breaker"
	"github.com/dustin/showfinder/pkg/database"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	// Environment variables override the optional TOML file
	cfg, err := config.LoadWithFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	appLogger.Info("Starting showfinder service")

	ctx := context.Background()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database: " + err.Error())
	}
	appLogger.Info("Database connection established")

	if err := database.EnableVectorExtension(db); err != nil {
		appLogger.Fatal(err.Error())
	}

	if err := db.AutoMigrate(
		&user.User{},
		&catalog.Genre{},
		&catalog.Show{},
		&interaction.Interaction{},
		&recommendation.UserRecommendation{},
		&audit.QueryLog{},
	); err != nil {
		appLogger.Fatal("Failed to migrate database: " + err.Error())
	}
	appLogger.Info("Database migration completed")

	breakerSettings, err := breaker.ParseSettings(&cfg.Breaker)
	if err != nil {
		appLogger.Fatal("Invalid breaker configuration: " + err.Error())
	}

	// Repositories
	userRepo := repository.NewGORMUserRepository(db, appLogger)
	catalogRepo := repository.NewGORMCatalogRepository(db, appLogger)
	interactionRepo := repository.NewGORMInteractionRepository(db, appLogger)
	recommendationRepo := repository.NewGORMRecommendationRepository(db, appLogger)

	facetStore, closeStore, err := newFacetStore(ctx, cfg, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize facet store: " + err.Error())
	}

	// Upstream models
	rawEmbedder, embedMeta, err := embedding.NewEmbedderFromConfig(ctx, &cfg.Embedding)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedder: " + err.Error())
	}
	if err := catalog.CheckDimensions(embedMeta.Dim); err != nil {
		appLogger.Fatal("Embedding configuration rejected: " + err.Error())
	}
	embedder := embedding.NewGuarded(rawEmbedder, breakerSettings, appLogger)
	appLogger.Info("Embedding provider initialized: " + embedMeta.Provider)

	var interpreter llm.Interpreter = llm.Static{}
	var narrator llm.Narrator
	chatModel, chatMeta, err := llm.NewChatModelFromConfig(ctx, &cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		appLogger.Warn("No LLM configured, queries are embedded without interpretation")
	case err != nil:
		appLogger.Fatal("Failed to initialize chat model: " + err.Error())
	default:
		interpreter = llm.NewInterpreter(chatModel, breakerSettings, appLogger)
		narrator = llm.NewNarrator(chatModel, breakerSettings, appLogger)
		appLogger.Info("Query interpreter initialized with model " + chatMeta.Model)
	}

	auditWriters, closeWriters, err := newAuditWriters(&cfg.Audit, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize audit sinks: " + err.Error())
	}
	auditRecorder, err := audit.NewRecorder(&cfg.Audit, auditWriters, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize audit recorder: " + err.Error())
	}

	// Services
	userService, err := user.NewService(&cfg.JWT, userRepo, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize user service: " + err.Error())
	}
	catalogService := catalog.NewService(catalogRepo, appLogger)

	recommendationService, err := recommendation.NewService(&cfg.Search, recommendation.Dependencies{
		Repo:    recommendationRepo,
		History: adapter.NewInteractionHistory(interactionRepo, catalogRepo),
		Store:   facetStore,
		Shows:   catalogService,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize recommendation service: " + err.Error())
	}

	interactionService := interaction.NewService(interactionRepo, catalogService, recommendationService, appLogger)

	engine, err := search.NewEngine(&cfg.Search, search.Dependencies{
		Interpreter:  interpreter,
		Embedder:     embedder,
		Store:        facetStore,
		Genres:       catalogService,
		Personalizer: recommendationService,
		Audit:        auditRecorder,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize search engine: " + err.Error())
	}
	explainer := search.NewExplainer(engine, catalogService, narrator, appLogger)

	// Handlers
	userHandler := user.NewHandler(userService)
	catalogHandler := catalog.NewHandler(catalogService)
	interactionHandler := interaction.NewHandler(interactionService)
	recommendationHandler := recommendation.NewHandler(recommendationService)
	searchHandler := search.NewHandler(engine, explainer, catalogService)

	refreshWorker, err := worker.NewRefreshWorker(&cfg.Worker, interactionRepo, recommendationService, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize refresh worker: " + err.Error())
	}
	if err := refreshWorker.Start(); err != nil {
		appLogger.Error("Failed to start refresh worker: " + err.Error())
	}

	router := gin.New()
	router.Use(requestid.New())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "showfinder",
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		dbStatus := "connected"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			dbStatus = "unreachable"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":             "healthy",
			"timestamp":          time.Now(),
			"service":            "showfinder",
			"database":           dbStatus,
			"store_backend":      storeBackend(cfg),
			"embedding_provider": embedMeta.Provider,
			"embedding_service":  embeddingServiceStatus(c.Request.Context(), rawEmbedder),
			"interpreter":        chatMeta.Model,
			"refresh_worker":     refreshWorker.IsRunning(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// the user handler's middleware also loads the user, which /users/me needs
	authMiddleware := userHandler.AuthMiddleware()

	v1 := router.Group("/api/v1")
	{
		userHandler.RegisterRoutes(v1, authMiddleware)
		catalogHandler.RegisterRoutes(v1)
		interactionHandler.RegisterRoutes(v1, authMiddleware)
		recommendationHandler.RegisterRoutes(v1, authMiddleware)
		searchHandler.RegisterRoutes(v1, optionalAuth(authMiddleware))
	}

	serverPort := cfg.Server.Port
	if serverPort == "" {
		serverPort = "8080"
	}

	serverReadTimeout := 30 * time.Second
	if cfg.Server.ReadTimeout != "" {
		if duration, err := time.ParseDuration(cfg.Server.ReadTimeout); err == nil {
			serverReadTimeout = duration
		}
	}

	// search waits on the interpreter and embedder, so allow more than the read side
	serverWriteTimeout := 60 * time.Second
	if cfg.Server.WriteTimeout != "" {
		if duration, err := time.ParseDuration(cfg.Server.WriteTimeout); err == nil {
			serverWriteTimeout = duration
		}
	}

	serverEnvironment := cfg.Server.Environment
	if serverEnvironment == "" {
		serverEnvironment = "development"
	}

	srv := &http.Server{
		Addr:         ":" + serverPort,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server: " + err.Error())
		}
	}()

	appLogger.Info("Server started successfully on port " + serverPort + " (" + serverEnvironment + " environment)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	if err := refreshWorker.Stop(); err != nil {
		appLogger.Error("Error stopping refresh worker: " + err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown: " + err.Error())
	}

	// in-flight requests are done; drain their background work
	recommendationService.Wait()
	auditRecorder.Close()
	for _, closeFn := range append(closeWriters, closeStore) {
		if closeFn == nil {
			continue
		}
		if err := closeFn(); err != nil {
			appLogger.Error("Error releasing resource: " + err.Error())
		}
	}

	appLogger.Info("Server shutdown complete")
}

func storeBackend(cfg *config.Config) string {
	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		return "postgres"
	}
	return backend
}

// newFacetStore selects the vector backend. The returned close func may be nil.
func newFacetStore(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (catalog.FacetStore, func() error, error) {
	switch backend := storeBackend(cfg); backend {
	case "postgres":
		return repository.NewGORMFacetStore(db, log), nil, nil
	case "milvus":
		return repository.NewMilvusFacetStore(ctx, &cfg.Store, log)
	case "memory":
		store := catalog.NewMemoryStore()
		var shows []*catalog.Show
		if err := db.WithContext(ctx).Find(&shows).Error; err != nil {
			return nil, nil, err
		}
		for _, show := range shows {
			store.PutShow(show)
		}
		log.Info("Loaded shows into the in-memory facet store")
		return store, nil, nil
	default:
		return nil, nil, errors.New("unknown store backend '" + backend + "'")
	}
}

// newAuditWriters builds the configured sinks; defaults to log and database
func newAuditWriters(cfg *config.AuditConfig, db *gorm.DB, log *logger.Logger) ([]audit.Writer, []func() error, error) {
	sinks := cfg.Sinks
	if strings.TrimSpace(sinks) == "" {
		sinks = "log,database"
	}

	var writers []audit.Writer
	var closers []func() error
	for _, sink := range strings.Split(sinks, ",") {
		switch strings.ToLower(strings.TrimSpace(sink)) {
		case "":
		case "none":
			return nil, nil, nil
		case "log":
			writers = append(writers, audit.NewLogWriter(log))
		case "database":
			writers = append(writers, repository.NewGORMQueryLogWriter(db, log))
		case "kafka":
			kw, err := audit.NewKafkaWriter(cfg)
			if err != nil {
				return nil, nil, err
			}
			writers = append(writers, kw)
			closers = append(closers, kw.Close)
		default:
			return nil, nil, errors.New("unknown audit sink '" + sink + "'")
		}
	}
	return writers, closers, nil
}

func embeddingServiceStatus(ctx context.Context, e interface{}) string {
	client, ok := e.(*embedding.Client)
	if !ok {
		return "n/a"
	}
	health, err := client.HealthCheck(ctx)
	if err != nil {
		return "unreachable"
	}
	return health.Status
}

// optionalAuth lets anonymous requests through but still rejects malformed
// or forged tokens
func optionalAuth(required gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		required(c)
	}
}
