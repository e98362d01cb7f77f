package domain

import "testing"

func TestParseFileType(t *testing.T) {
	tests := []struct {
		input   string
		want    FileType
		wantErr bool
	}{
		{"pdf", FileTypePDF, false},
		{"docx", FileTypeDOCX, false},
		{"text", FileTypeText, false},
		{"markdown", FileTypeMarkdown, false},
		{"code", FileTypeCode, false},
		{"xlsx", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFileType(tt.input)
			if tt.wantErr {
				if err != ErrUnsupportedFileType {
					t.Errorf("expected ErrUnsupportedFileType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFileStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   FileStatus
		terminal bool
	}{
		{FileStatusUploaded, false},
		{FileStatusValidating, false},
		{FileStatusRejected, true},
		{FileStatusDuplicate, true},
		{FileStatusParsing, false},
		{FileStatusChunking, false},
		{FileStatusScoring, false},
		{FileStatusWriting, false},
		{FileStatusCompleted, true},
		{FileStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("expected %v, got %v", tt.terminal, got)
			}
		})
	}
}

func TestNewUploadedFile(t *testing.T) {
	f := NewUploadedFile("user-1", "notes.pdf", "application/pdf", 2048)

	if f.ID == "" {
		t.Error("expected non-empty ID")
	}
	if f.UserID != "user-1" {
		t.Errorf("expected user ID user-1, got %s", f.UserID)
	}
	if f.Status != FileStatusUploaded {
		t.Errorf("expected status %s, got %s", FileStatusUploaded, f.Status)
	}
	if f.FileSize != 2048 {
		t.Errorf("expected size 2048, got %d", f.FileSize)
	}
}

func TestUploadedFile_SetStatus(t *testing.T) {
	f := NewUploadedFile("user-1", "notes.pdf", "application/pdf", 2048)
	before := f.UpdatedAt

	f.SetStatus(FileStatusParsing, "")

	if f.Status != FileStatusParsing {
		t.Errorf("expected status %s, got %s", FileStatusParsing, f.Status)
	}
	if f.UpdatedAt.Before(before) {
		t.Error("expected UpdatedAt to advance")
	}
}

func TestNewQualityAssessment_ReviewFlag(t *testing.T) {
	tests := []struct {
		name        string
		confidence  float64
		needsReview bool
	}{
		{"well below threshold", 0.3, true},
		{"just below threshold", 0.79, true},
		{"at threshold", 0.8, false},
		{"above threshold", 0.95, false},
		{"full confidence", 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQualityAssessment(tt.confidence, 1.0, nil, DefaultReviewThreshold)
			if q.NeedsReview != tt.needsReview {
				t.Errorf("confidence %.2f: expected needsReview %v, got %v",
					tt.confidence, tt.needsReview, q.NeedsReview)
			}
			if q.IsAcceptable() == tt.needsReview {
				t.Error("IsAcceptable must be the inverse of NeedsReview")
			}
		})
	}
}
