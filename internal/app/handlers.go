package app

import (
	"github.com/calegray/concepthub-backend/internal/handlers"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Document *handlers.DocumentHandler
	Concept  *handlers.ConceptHandler
	Search   *handlers.SearchHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:     handlers.NewAuthHandler(serviceset.Auth),
		Document: handlers.NewDocumentHandler(serviceset.Document, serviceset.Thumbnail),
		Concept:  handlers.NewConceptHandler(serviceset.Concept),
		Search:   handlers.NewSearchHandler(serviceset.Search),
	}
}
