package domain

import "time"

// ReviewStatus tracks the manual QA loop over low-confidence documents
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Document is a persisted graph record for one ingested file or synced
// item. Uniqueness is enforced by (UserID, FileHash); the hash is the
// dedup key for the whole pipeline.
type Document struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Source       SyncSource        `json:"source,omitempty"` // set for synced records, empty for uploads
	FileHash     string            `json:"file_hash"`
	Title        string            `json:"title"`
	FileType     FileType          `json:"file_type"`
	Confidence   float64           `json:"confidence"`
	Completeness float64           `json:"completeness"`
	NeedsReview  bool              `json:"needs_review"`
	ReviewStatus ReviewStatus      `json:"review_status,omitempty"`
	ChunkCount   int               `json:"chunk_count"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewDocument creates a graph document for an upload
func NewDocument(userID, fileHash, title string, fileType FileType) *Document {
	now := time.Now()
	return &Document{
		ID:        GenerateID(),
		UserID:    userID,
		FileHash:  fileHash,
		Title:     title,
		FileType:  fileType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyAssessment copies a quality verdict onto the document
func (d *Document) ApplyAssessment(q QualityAssessment) {
	d.Confidence = q.Confidence
	d.Completeness = q.Completeness
	d.NeedsReview = q.NeedsReview
	if q.NeedsReview {
		d.ReviewStatus = ReviewStatusPending
	}
}

// Chunk is one ordered slice of a document's text. Index gives the
// reconstruction order; StartChar/EndChar locate the slice in the source
// text; Overlap counts the characters shared with the previous chunk.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	Overlap    int       `json:"overlap"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MinChunkLength is the floor below which a trimmed chunk is dropped as
// noise rather than persisted.
const MinChunkLength = 20

// DocumentWithChunks combines a document with its ordered chunks
type DocumentWithChunks struct {
	Document *Document `json:"document"`
	Chunks   []*Chunk  `json:"chunks"`
}
