package provenance

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j links each document node to its chunk nodes.
type Neo4j struct {
	driver neo4j.DriverWithContext
}

func NewNeo4j(ctx context.Context, uri, user, password string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4j{driver: driver}, nil
}

func chunkParams(entries []Entry) []map[string]any {
	chunks := make([]map[string]any, len(entries))
	for i, e := range entries {
		chunks[i] = map[string]any{
			"chunk_id": e.ChunkID,
			"position": e.Position,
			"preview":  e.Preview,
		}
	}
	return chunks
}

func (n *Neo4j) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"session":  entries[0].SessionID,
		"document": entries[0].Document,
		"chunks":   chunkParams(entries),
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {name: $document, session: $session})
			SET d.updated_at = datetime()
			WITH d
			UNWIND $chunks AS c
			MERGE (k:Chunk {id: c.chunk_id, session: $session, document: $document})
			SET k.position = c.position,
			    k.preview = c.preview
			MERGE (k)-[:DERIVED_FROM]->(d)
		`, params); err != nil {
			return nil, fmt.Errorf("upsert chunk provenance: %w", err)
		}
		return nil, nil
	})
	return err
}

func (n *Neo4j) Close() error {
	return n.driver.Close(context.Background())
}
