package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// CrossReferenceStore answers "which passages does this passage cite"
// from the statute citation graph. Edges are undirected for lookup: a
// passage that is cited is as relevant as one that cites.
type CrossReferenceStore struct {
	driver neo4j.DriverWithContext
}

func New(ctx context.Context, uri, username, password string) (*CrossReferenceStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &CrossReferenceStore{driver: driver}, nil
}

func (s *CrossReferenceStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *CrossReferenceStore) Related(ctx context.Context, passageID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (p:Passage {id: $id})-[:REFERS_TO]-(q:Passage)
RETURN DISTINCT q.id AS id
LIMIT $limit
`, map[string]any{"id": passageID, "limit": limit})
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, limit)
		for result.Next(ctx) {
			value, ok := result.Record().Get("id")
			if !ok {
				continue
			}
			if id, ok := value.(string); ok && id != "" && id != passageID {
				ids = append(ids, id)
			}
		}
		return ids, result.Err()
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "neo4j related passages", err)
	}
	return records.([]string), nil
}

// UpsertReferences records the citation edges for one passage. Called
// at ingestion time alongside vector indexing.
func (s *CrossReferenceStore) UpsertReferences(ctx context.Context, passageID string, refs []string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
MERGE (p:Passage {id: $id})
WITH p
UNWIND $refs AS ref
MERGE (q:Passage {id: ref})
MERGE (p)-[:REFERS_TO]->(q)
`, map[string]any{"id": passageID, "refs": refs})
		return nil, err
	})
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "neo4j upsert references", err)
	}
	return nil
}
