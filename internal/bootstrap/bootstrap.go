package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/config"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/usecase"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/chunking"
	neo4jgraph "github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/graph/neo4j"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/llm/ollama"
	natsqueue "github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/queue/nats"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/repository/postgres"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/resilience"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Assistant     ports.Assistant
	Indexer       ports.PassageIndexer
	Conversations ports.ConversationStore

	closeFn func(ctx context.Context)
}

// New wires the pipeline. NATS and Neo4j are optional: an empty URL
// leaves the audit trail and cross-reference expansion disabled.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	passageRepo := postgres.NewPassageRepository(db)
	if err := passageRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	conversationRepo := postgres.NewConversationRepository(db)

	runner := resilience.NewRunner(resilience.DefaultPolicy())
	// Model calls are never retried at the transport level. The classifier
	// retries a malformed verdict once itself, and a second transport retry
	// underneath would stack on top of that.
	llmRunner := resilience.NewRunner(resilience.SingleAttemptPolicy())
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, llmRunner)
	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDim)

	var audit ports.AuditTrail
	var publisher *natsqueue.Publisher
	if cfg.NATSURL != "" {
		publisher, err = natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{Runner: runner})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init audit publisher: %w", err)
		}
		audit = publisher
	}

	var crossRefs ports.CrossReferenceStore
	var refWriter ports.CrossReferenceWriter
	var graphStore *neo4jgraph.CrossReferenceStore
	if cfg.Neo4jURI != "" {
		graphStore, err = neo4jgraph.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			if publisher != nil {
				publisher.Close()
			}
			_ = db.Close()
			return nil, fmt.Errorf("init cross-reference store: %w", err)
		}
		crossRefs = graphStore
		refWriter = graphStore
	}

	classifier := usecase.NewIntentClassifier(ollamaClient)
	clarifier, err := usecase.NewClarifier(ollamaClient, logger)
	if err != nil {
		if publisher != nil {
			publisher.Close()
		}
		if graphStore != nil {
			_ = graphStore.Close(ctx)
		}
		_ = db.Close()
		return nil, fmt.Errorf("init clarifier: %w", err)
	}
	retriever := usecase.NewHybridRetriever(ollamaClient, vectorDB, crossRefs, passageRepo, logger, usecase.RetrieverOptions{
		CandidateLimit: cfg.RAGHybridCandidates,
		RRFConstant:    cfg.RAGFusionRRFK,
		CrossRefLimit:  cfg.RAGCrossRefLimit,
	})
	reranker := usecase.NewReranker(cfg.RAGRerankTopN)
	verifier := usecase.NewVerifier(ollamaClient, logger, cfg.RAGVerifyTopK)
	synthesizer := usecase.NewSynthesizer(ollamaClient)

	assistant := usecase.NewAssistantUseCase(
		classifier,
		clarifier,
		retriever,
		reranker,
		verifier,
		synthesizer,
		conversationRepo,
		audit,
		logger,
		usecase.AssistantOptions{
			TopK:         cfg.RAGTopK,
			HistoryTurns: cfg.HistoryTurns,
		},
	)
	splitter := chunking.NewSplitter(cfg.ChunkMaxRunes, cfg.ChunkOverlap)
	indexer := usecase.NewIndexPassagesUseCase(ollamaClient, vectorDB, passageRepo, splitter, refWriter, logger)

	return &App{
		Config: cfg,

		Assistant:     assistant,
		Indexer:       indexer,
		Conversations: conversationRepo,

		closeFn: func(ctx context.Context) {
			if publisher != nil {
				publisher.Close()
			}
			if graphStore != nil {
				if err := graphStore.Close(ctx); err != nil {
					logger.Warn("close neo4j driver", "error", err)
				}
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a.closeFn != nil {
		a.closeFn(ctx)
	}
}
