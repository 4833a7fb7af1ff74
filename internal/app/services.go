package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/analysis"
	"github.com/calegray/concepthub-backend/internal/clients/gcp"
	"github.com/calegray/concepthub-backend/internal/clients/neo4jdb"
	"github.com/calegray/concepthub-backend/internal/clients/openai"
	"github.com/calegray/concepthub-backend/internal/clients/rediscache"
	"github.com/calegray/concepthub-backend/internal/jobs"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/search"
	"github.com/calegray/concepthub-backend/internal/services"
	"github.com/calegray/concepthub-backend/internal/terminology"
)

type Services struct {
	Auth       services.AuthService
	Extraction services.ExtractionService
	Thumbnail  services.ThumbnailService
	Concept    services.ConceptService
	Document   services.DocumentService
	Search     services.SearchService

	Queue     *jobs.Queue
	JobWorker *jobs.Worker

	Bucket gcp.BucketService
	DocAI  gcp.DocAIService
	Neo4j  *neo4jdb.Client
	Cache  *rediscache.Cache
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	table, err := terminology.Load()
	if err != nil {
		return Services{}, fmt.Errorf("load terminology: %w", err)
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Services{}, fmt.Errorf("init storage: %w", err)
	}
	docai, err := gcp.NewDocAIService(log)
	if err != nil {
		return Services{}, fmt.Errorf("init document processor: %w", err)
	}
	embedClient, err := openai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init embeddings: %w", err)
	}
	entityExtractor, err := openai.NewEntityExtractor(log)
	if err != nil {
		return Services{}, fmt.Errorf("init entity extractor: %w", err)
	}
	cache, err := rediscache.NewFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init redis: %w", err)
	}
	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init neo4j: %w", err)
	}

	var enhancer analysis.EntityEnhancer
	if entityExtractor != nil {
		enhancer = entityExtractor
	}
	extractor := analysis.NewExtractor(table, analysis.ExtractorConfigFromEnv(log), enhancer, log)
	builder := analysis.NewRelationBuilder(analysis.RelationConfigFromEnv(log))

	var embedder search.Embedder
	if embedClient != nil {
		embedder = embedClient
	}
	index := search.NewIndex(embedder, log)
	scorer := search.NewScorer(search.WeightsFromEnv(log))

	authService, err := services.NewAuthService(db, reposet.User, reposet.UserToken, log)
	if err != nil {
		return Services{}, fmt.Errorf("init auth: %w", err)
	}
	extractionService := services.NewExtractionService(docai, log)
	thumbnailService := services.NewThumbnailService(reposet.Document, bucket, log)
	conceptService := services.NewConceptService(
		db,
		reposet.Concept,
		reposet.DocumentConcept,
		reposet.ConceptRelation,
		reposet.Document,
		builder,
		neo4jClient,
		cache,
		log,
	)

	queue := jobs.NewQueue(cfg.QueueSize)
	documentService := services.NewDocumentService(
		db,
		reposet.Document,
		reposet.DocumentConcept,
		extractionService,
		extractor,
		conceptService,
		thumbnailService,
		bucket,
		queue,
		log,
	)
	searchService := services.NewSearchService(
		reposet.Document,
		reposet.DocumentConcept,
		reposet.Concept,
		index,
		scorer,
		log,
	)

	worker := jobs.NewWorker(queue, documentService.Process, log)

	return Services{
		Auth:       authService,
		Extraction: extractionService,
		Thumbnail:  thumbnailService,
		Concept:    conceptService,
		Document:   documentService,
		Search:     searchService,
		Queue:      queue,
		JobWorker:  worker,
		Bucket:     bucket,
		DocAI:      docai,
		Neo4j:      neo4jClient,
		Cache:      cache,
	}, nil
}
