package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := envutil.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := envutil.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := envutil.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := envutil.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := envutil.GetEnv("POSTGRES_NAME", "concepthub", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Document{},
		&types.Concept{},
		&types.DocumentConcept{},
		&types.ConceptRelation{},
		&types.ConceptRelationSource{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []string{
		`ALTER TABLE "user_token"
		 ADD CONSTRAINT "fk_user_token_user_id"
		 FOREIGN KEY ("user_id") REFERENCES "user"("id") ON DELETE CASCADE`,
		`ALTER TABLE "document_concept"
		 ADD CONSTRAINT "fk_document_concept_document_id"
		 FOREIGN KEY ("document_id") REFERENCES "document"("id") ON DELETE CASCADE`,
		`ALTER TABLE "document_concept"
		 ADD CONSTRAINT "fk_document_concept_concept_id"
		 FOREIGN KEY ("concept_id") REFERENCES "concept"("id") ON DELETE CASCADE`,
		`ALTER TABLE "concept_relation"
		 ADD CONSTRAINT "fk_concept_relation_a"
		 FOREIGN KEY ("concept_a_id") REFERENCES "concept"("id") ON DELETE CASCADE`,
		`ALTER TABLE "concept_relation"
		 ADD CONSTRAINT "fk_concept_relation_b"
		 FOREIGN KEY ("concept_b_id") REFERENCES "concept"("id") ON DELETE CASCADE`,
		`ALTER TABLE "concept_relation_source"
		 ADD CONSTRAINT "fk_relation_source_relation"
		 FOREIGN KEY ("relation_id") REFERENCES "concept_relation"("id") ON DELETE CASCADE`,
	}
	for _, stmt := range constraints {
		if err := s.db.Exec(stmt).Error; err != nil {
			// Re-running migrations against an existing schema is fine.
			s.log.Debug("Constraint already present or not applicable", "error", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
