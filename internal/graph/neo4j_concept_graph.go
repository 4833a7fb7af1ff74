// Package graph mirrors the relational concept graph into Neo4j. The
// mirror is best-effort; a nil client turns every sync into a no-op.
package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/calegray/concepthub-backend/internal/clients/neo4jdb"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

// UpsertConceptGraph batch-merges concept nodes and relation edges.
func UpsertConceptGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, concepts []*types.Concept, relations []*types.ConceptRelation) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":        c.ID.String(),
			"name":      c.Name,
			"category":  c.Category,
			"frequency": c.Frequency,
			"synced_at": now,
		})
	}

	edges := make([]map[string]any, 0, len(relations))
	for _, r := range relations {
		if r == nil || r.ConceptAID == uuid.Nil || r.ConceptBID == uuid.Nil {
			continue
		}
		edges = append(edges, map[string]any{
			"id":            r.ID.String(),
			"a_id":          r.ConceptAID.String(),
			"b_id":          r.ConceptBID.String(),
			"relation_type": r.RelationType,
			"strength":      r.Strength,
			"doc_count":     int64(r.DocCount),
			"synced_at":     now,
		})
	}
	if len(nodes) == 0 && len(edges) == 0 {
		return nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers are best-effort; restricted users may not create them.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {id: n.id})
SET c += n
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $edges AS e
MATCH (a:Concept {id: e.a_id})
MATCH (b:Concept {id: e.b_id})
MERGE (a)-[r:RELATED_TO {id: e.id}]-(b)
SET r.relation_type = e.relation_type,
    r.strength = e.strength,
    r.doc_count = e.doc_count,
    r.synced_at = e.synced_at
`, map[string]any{"edges": edges})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// RemoveConcept detaches and deletes a node, taking its edges with it.
// Used after merges and concept deletions.
func RemoveConcept(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, conceptID uuid.UUID) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if conceptID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {id: $id})
DETACH DELETE c
`, map[string]any{"id": conceptID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil && log != nil {
		log.Warn("neo4j concept removal failed", "concept_id", conceptID, "error", err)
	}
	return err
}
