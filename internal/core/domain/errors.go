package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrUnknownSource indicates the sync source is not one of the
	// supported set
	ErrUnknownSource = errors.New("unknown sync source")

	// ErrNoIntegration indicates the user has no integration provisioned
	// for the source; per-user syncs treat this as a success no-op
	ErrNoIntegration = errors.New("no integration provisioned")

	// ErrSyncInProgress indicates another worker holds the per-user lease
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUnsupportedFileType indicates the blob's content signature does
	// not match any supported format
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge indicates the blob exceeds the configured size cap
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile indicates a zero-length upload
	ErrEmptyFile = errors.New("empty file")

	// ErrParseFailed indicates the decoder could not extract text; the
	// input is corrupt and retrying cannot succeed
	ErrParseFailed = errors.New("parse failed")

	// ErrDuplicateDocument indicates a document with the same
	// (user, file hash) already exists
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrLockNotAcquired indicates a distributed lock is held elsewhere
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrQueueUnavailable indicates the queue substrate cannot be reached
	ErrQueueUnavailable = errors.New("queue unavailable")
)
