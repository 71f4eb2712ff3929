package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trustcheck-backend/internal/analysis"
	"trustcheck-backend/internal/corpus"
	"trustcheck-backend/internal/llm"
	openaillm "trustcheck-backend/internal/llm/openai"
	"trustcheck-backend/internal/registry"
	"trustcheck-backend/internal/search"
	"trustcheck-backend/internal/shared/config"
	"trustcheck-backend/internal/shared/metrics"
	"trustcheck-backend/internal/shared/server/middleware"
	"trustcheck-backend/internal/shared/server/respond"
	"trustcheck-backend/internal/shared/storage/db"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var repo analysis.Repo
	if sqlDB != nil {
		repo = &analysis.PGRepo{DB: sqlDB}
	} else {
		repo = analysis.NewMemoryRepoWithRetention(time.Duration(cfg.JobRetentionHours) * time.Hour)
	}

	var llmClient llm.Client = llm.PlaceholderClient{}
	var embedder llm.Embedder = llm.PlaceholderEmbedder{}
	if cfg.OpenAIAPIKey != "" {
		client, err := openaillm.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel,
			openaillm.WithEmbeddingModel(cfg.EmbeddingModel),
			openaillm.WithEmbeddingDimension(cfg.EmbeddingDimension),
		)
		if err != nil {
			log.Printf("failed to init openai client, using placeholder: %v", err)
		} else {
			llmClient = client
			embedder = client
		}
	}

	var retriever analysis.Retriever
	if cfg.CorpusDir != "" {
		retriever = corpus.NewIndex(embedder, corpus.NewStore(cfg.CacheDir), cfg.CorpusDir)
	}

	var searcher search.Searcher
	if cfg.SerperAPIKey != "" {
		searcher = search.NewClient(cfg.SerperAPIKey)
	}

	var checker registry.Checker
	if cfg.DartAPIKey != "" {
		checker = registry.NewClient(cfg.DartAPIKey)
	}

	svc := &analysis.Service{
		Repo:              repo,
		LLM:               llmClient,
		Searcher:          searcher,
		Registry:          checker,
		Retriever:         retriever,
		SearchConcurrency: cfg.SearchConcurrency,
		RecentWindowDays:  cfg.RecentWindowDays,
		RetrievalTopK:     cfg.RetrievalTopK,
		ScriptTokenBudget: cfg.ScriptTokenBudget,
	}
	handler := analysis.NewHandler(svc)

	r.GET("/healthz", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	handler.RegisterRoutes(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
