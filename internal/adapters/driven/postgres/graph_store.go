package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.GraphStore = (*GraphStore)(nil)

// GraphStore implements driven.GraphStore using PostgreSQL. Documents
// and their chunks are written in one transaction, so a document with a
// partial chunk set is never observable. Dedup rides on the
// (user_id, file_hash) unique constraint: the second writer of the same
// content loses the race and gets domain.ErrDuplicateDocument.
type GraphStore struct {
	db *DB
}

// NewGraphStore creates a new GraphStore
func NewGraphStore(db *DB) *GraphStore {
	return &GraphStore{db: db}
}

const documentColumns = `
	id, user_id, source, file_hash, title, file_type,
	confidence, completeness, needs_review, review_status,
	chunk_count, metadata, created_at, updated_at
`

// CheckDuplicate returns the ID of an existing document with the same
// (user, content hash), or domain.ErrNotFound.
func (s *GraphStore) CheckDuplicate(ctx context.Context, userID, fileHash string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE user_id = $1 AND file_hash = $2`,
		userID, fileHash,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateDocumentWithChunks persists the document and all its chunks in
// one transaction.
func (s *GraphStore) CreateDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []*domain.Chunk) error {
	metadataJSON, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return err
	}

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		docQuery := `
			INSERT INTO documents (` + documentColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`

		_, err := tx.ExecContext(ctx, docQuery,
			doc.ID,
			doc.UserID,
			string(doc.Source),
			doc.FileHash,
			doc.Title,
			string(doc.FileType),
			doc.Confidence,
			doc.Completeness,
			doc.NeedsReview,
			string(doc.ReviewStatus),
			len(chunks),
			metadataJSON,
			doc.CreatedAt,
			doc.UpdatedAt,
		)
		if err != nil {
			return err
		}

		if len(chunks) == 0 {
			return nil
		}

		chunkQuery := `
			INSERT INTO chunks (id, document_id, user_id, chunk_index, content, start_char, end_char, overlap_chars, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`

		stmt, err := tx.PrepareContext(ctx, chunkQuery)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			var embedding any
			if len(chunk.Embedding) > 0 {
				data, err := json.Marshal(chunk.Embedding)
				if err != nil {
					return err
				}
				embedding = data
			}

			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.DocumentID,
				chunk.UserID,
				chunk.Index,
				chunk.Content,
				chunk.StartChar,
				chunk.EndChar,
				chunk.Overlap,
				embedding,
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})

	if isUniqueViolation(err, "documents_user_hash_unique") {
		return domain.ErrDuplicateDocument
	}
	if err != nil {
		return err
	}
	doc.ChunkCount = len(chunks)
	return nil
}

// GetDocument retrieves a document by ID
func (s *GraphStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetChunks retrieves a document's chunks ordered by index
func (s *GraphStore) GetChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	query := `
		SELECT id, document_id, user_id, chunk_index, content, start_char, end_char, overlap_chars, embedding, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var (
			chunk     domain.Chunk
			embedding []byte
		)
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.UserID,
			&chunk.Index,
			&chunk.Content,
			&chunk.StartChar,
			&chunk.EndChar,
			&chunk.Overlap,
			&embedding,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(embedding) > 0 {
			if err := json.Unmarshal(embedding, &chunk.Embedding); err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// ListByUser retrieves a user's documents, newest first
func (s *GraphStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// ListNeedingReview retrieves documents flagged by the quality scorer
// whose review is still pending, oldest first so the queue drains in
// arrival order.
func (s *GraphStore) ListNeedingReview(ctx context.Context, userID string) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1 AND needs_review = TRUE AND review_status = $2
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, userID, string(domain.ReviewStatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// UpdateReviewStatus resolves the review flag on a document
func (s *GraphStore) UpdateReviewStatus(ctx context.Context, documentID string, status domain.ReviewStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET review_status = $2, updated_at = NOW() WHERE id = $1`,
		documentID, string(status),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; its chunks go with it via cascade
func (s *GraphStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByUser returns the number of documents a user owns
func (s *GraphStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE user_id = $1`,
		userID,
	).Scan(&count)
	return count, err
}

func scanDocument(row scanner) (*domain.Document, error) {
	var (
		doc          domain.Document
		source       string
		fileType     string
		reviewStatus string
		metadataJSON []byte
	)

	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&source,
		&doc.FileHash,
		&doc.Title,
		&fileType,
		&doc.Confidence,
		&doc.Completeness,
		&doc.NeedsReview,
		&reviewStatus,
		&doc.ChunkCount,
		&metadataJSON,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Source = domain.SyncSource(source)
	doc.FileType = domain.FileType(fileType)
	doc.ReviewStatus = domain.ReviewStatus(reviewStatus)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on one named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
