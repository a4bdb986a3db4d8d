package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/markdave123-py/docqa/internal/config"
	"github.com/markdave123-py/docqa/internal/core"
	db "github.com/markdave123-py/docqa/internal/core/database"
	"github.com/markdave123-py/docqa/internal/core/embedding"
	"github.com/markdave123-py/docqa/internal/core/ingestion_engine"
	"github.com/markdave123-py/docqa/internal/core/llm"
	objectclient "github.com/markdave123-py/docqa/internal/core/object-client"
	"github.com/markdave123-py/docqa/internal/core/vectorindex"
	"github.com/markdave123-py/docqa/internal/observability"
	"github.com/markdave123-py/docqa/internal/services"
)

type App struct {
	Config       *config.Config
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Index        *vectorindex.Index
	DocProcessor ingestion_engine.Ingestor
	Server       *Server

	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
	tracer   *observability.TracerProvider
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	tracer, err := observability.InitTracing(appCtx, observability.TracingConfig{
		ServiceName:  "docqa",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.tracer = tracer

	a.DBClient, err = db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	if cfg.ObjectStorageEnabled() {
		a.ObjectClient, err = objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		log.Println("Object client initialized and ready.")
	} else {
		log.Println("Object storage not configured; uploads will not be kept and re-indexing is disabled.")
	}

	a.embedder, err = llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	a.llm, err = llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}

	gwCfg := embedding.DefaultConfig(cfg.EmbedDim)
	gwCfg.MaxRetries = cfg.EmbedMaxRetries
	gwCfg.RequestsPerSecond = cfg.EmbedRPS
	gwCfg.Concurrency = cfg.EmbedConcurrency
	gateway, err := embedding.NewGateway(a.embedder, gwCfg)
	if err != nil {
		return nil, fmt.Errorf("embedding gateway: %w", err)
	}

	store, err := newVectorStore(appCtx, cfg, a.DBClient)
	if err != nil {
		return nil, err
	}
	a.Index, err = vectorindex.New(store, gateway)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Printf("Vector index ready (backend=%s, dim=%d).", cfg.VectorBackend, cfg.EmbedDim)

	answers := services.NewAnswerService(gateway, a.Index, a.llm, cfg.RetrievalTopK)

	lemmatizer, err := ingestion_engine.NewEnglishLemmatizer()
	if err != nil {
		return nil, fmt.Errorf("lemmatizer: %w", err)
	}
	pipeline := ingestion_engine.NewPipeline(
		ingestion_engine.NewDocconvExtractor(false),
		ingestion_engine.NewNormalizer(lemmatizer),
		ingestion_engine.NewSplitter(
			ingestion_engine.WithChunkSize(cfg.ChunkSize),
			ingestion_engine.WithOverlap(cfg.ChunkOverlap),
		),
		answers,
		a.Index,
		ingestion_engine.WithTransitionHook(logTransition),
	)

	// nil interfaces, not typed nils, when storage is off
	var (
		objects   core.ObjectClient
		reindexer services.Reindexer
		bucket    string
	)
	if a.ObjectClient != nil {
		bucket = a.ObjectClient.Bucket()
		ingestor := ingestion_engine.NewDocumentIngestor(a.DBClient, a.ObjectClient, bucket, pipeline, &ingestion_engine.IngestConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		})
		a.DocProcessor = ingestor
		objects, reindexer = a.ObjectClient, ingestor
	}

	users := services.NewUserService(a.DBClient, cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	docs := services.NewDocumentService(a.DBClient, objects, bucket, pipeline, a.Index, answers, reindexer)

	a.Server = NewServer(cfg, users, docs)
	ok = true
	return a, nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, dbClient *db.DatabaseClient) (vectorindex.Store, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		return vectorindex.NewQdrantStore(ctx, vectorindex.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			Collection: cfg.QdrantCollection,
			Dimension:  cfg.EmbedDim,
		})
	case config.VectorBackendMemory:
		log.Println("Using the in-memory vector index; entries are lost on restart.")
		return vectorindex.NewMemoryStore(), nil
	default:
		return vectorindex.NewPgVectorStore(ctx, dbClient.DB(), cfg.EmbedDim)
	}
}

func logTransition(scope core.ScopeID, stage ingestion_engine.Stage) {
	log.Printf("Pipeline: %s reached %s", scope, stage)
}

// Start launches the re-ingestion workers when object storage is available.
func (a *App) Start(ctx context.Context) {
	if a.DocProcessor != nil {
		a.DocProcessor.Start(ctx, a.Config.IngestWorkers)
	}
}

// Close releases every client in reverse order of creation.
func (a *App) Close() {
	var errs []error
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.llm != nil {
		errs = append(errs, a.llm.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.DBClient != nil {
		errs = append(errs, a.DBClient.Close())
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.tracer.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("App: close: %v", err)
	}
}
