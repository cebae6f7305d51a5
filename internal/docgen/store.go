package docgen

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists generated documents in Postgres. Versions are
// immutable: a regeneration inserts the next version, it never
// overwrites.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// InsertDocuments inserts every document as version MAX+1 for its
// (application, type) pair, all in one transaction: a generation
// attempt stores either every document or none. The claim protocol
// ensures a single worker generates for an application at a time; the
// unique constraint on (application_id, doc_type, version) backstops
// that. Returns the stored version per doc type.
func (s *PGStore) InsertDocuments(ctx context.Context, applicationID string, docs []DocumentInsert) (map[string]int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert documents: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO generated_documents (application_id, doc_type, version, content, artifact_ref)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4
		FROM generated_documents
		WHERE application_id = $1 AND doc_type = $2
		RETURNING version`

	versions := make(map[string]int, len(docs))
	for _, d := range docs {
		var version int
		err := tx.QueryRow(ctx, query, applicationID, d.DocType, d.Content, d.ArtifactRef).Scan(&version)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", d.DocType, err)
		}
		versions[d.DocType] = version
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("insert documents commit: %w", err)
	}
	return versions, nil
}

// LatestArtifacts returns the newest artifact reference per document
// type for an application, keyed by doc type.
func (s *PGStore) LatestArtifacts(ctx context.Context, applicationID string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (doc_type) doc_type, artifact_ref
		FROM generated_documents
		WHERE application_id = $1
		ORDER BY doc_type, version DESC`,
		applicationID)
	if err != nil {
		return nil, fmt.Errorf("latest artifacts: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		var docType, ref string
		if err := rows.Scan(&docType, &ref); err != nil {
			return nil, fmt.Errorf("latest artifacts scan: %w", err)
		}
		refs[docType] = ref
	}
	return refs, nil
}
