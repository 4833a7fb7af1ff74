package app

import (
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/repos"
)

type Repos struct {
	User            repos.UserRepo
	UserToken       repos.UserTokenRepo
	Document        repos.DocumentRepo
	Concept         repos.ConceptRepo
	DocumentConcept repos.DocumentConceptRepo
	ConceptRelation repos.ConceptRelationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:            repos.NewUserRepo(db, log),
		UserToken:       repos.NewUserTokenRepo(db, log),
		Document:        repos.NewDocumentRepo(db, log),
		Concept:         repos.NewConceptRepo(db, log),
		DocumentConcept: repos.NewDocumentConceptRepo(db, log),
		ConceptRelation: repos.NewConceptRelationRepo(db, log),
	}
}
