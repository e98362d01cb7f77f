package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ComponentHealth reports the health of one dependency
// @Description Health of a single component
type ComponentHealth struct {
	Status string `json:"status" example:"healthy"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse aggregates component health
// @Description Aggregated health report
type HealthResponse struct {
	Status     string                     `json:"status" example:"healthy"`
	Components map[string]ComponentHealth `json:"components"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health of the API and its dependencies. Always 200; a failing dependency degrades the status instead of failing the check.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status: "healthy",
		Components: map[string]ComponentHealth{
			"server": {Status: "healthy"},
		},
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
		} else {
			resp.Components["database"] = ComponentHealth{Status: "healthy"}
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["redis"] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
		} else {
			resp.Components["redis"] = ComponentHealth{Status: "healthy"}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns 200 once the API can reach its backing stores, 503 otherwise
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backing store is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "queue unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// File endpoints

// handleUploadFile godoc
// @Summary      Upload a file
// @Description  Accepts one multipart file upload and runs it through validation, parsing, chunking, scoring and the graph write. Processing is asynchronous: the receipt says whether the file was queued, was a duplicate, or failed validation.
// @Tags         Files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File to ingest"
// @Success      200   {object}  domain.UploadReceipt  "Duplicate of an already ingested file"
// @Success      202   {object}  domain.UploadReceipt  "Accepted for processing"
// @Failure      400   {object}  ErrorResponse  "Malformed upload"
// @Failure      401   {object}  ErrorResponse  "Unauthorized"
// @Failure      413   {object}  ErrorResponse  "File exceeds the size limit"
// @Failure      422   {object}  domain.UploadReceipt  "Rejected by validation"
// @Failure      500   {object}  ErrorResponse  "Internal server error"
// @Router       /files [post]
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	receipt, err := s.ingestService.Upload(r.Context(), driving.UploadRequest{
		UserID:       authCtx.UserID,
		FileName:     header.Filename,
		DeclaredMime: header.Header.Get("Content-Type"),
		Data:         data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	switch receipt.Outcome {
	case domain.UploadOutcomeProcessing:
		writeJSON(w, http.StatusAccepted, receipt)
	case domain.UploadOutcomeDuplicate:
		writeJSON(w, http.StatusOK, receipt)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, receipt)
	}
}

// handleListFiles godoc
// @Summary      List uploads
// @Description  Lists the caller's uploads with their pipeline state
// @Tags         Files
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.UploadedFile
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /files [get]
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	files, err := s.ingestService.ListFiles(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// handleGetFile godoc
// @Summary      Get upload state
// @Description  Reports the pipeline state of one upload. Callers only see their own uploads.
// @Tags         Files
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "File ID"
// @Success      200  {object}  domain.UploadedFile
// @Failure      400  {object}  ErrorResponse  "Missing file ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "File not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /files/{id} [get]
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing file id")
		return
	}

	file, err := s.ingestService.GetFile(r.Context(), authCtx.UserID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get file")
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Document endpoints

// handleListDocuments godoc
// @Summary      List documents
// @Description  Lists the caller's documents, newest first
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "Page size (default 50, max 1000)"
// @Param        offset  query     int  false  "Offset into the result set"
// @Success      200  {array}   domain.Document
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	docs, err := s.docService.List(r.Context(), authCtx.UserID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

// handleListReviewDocuments godoc
// @Summary      List documents needing review
// @Description  Lists the caller's documents flagged by the quality scorer and still awaiting a verdict
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Document
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/review [get]
func (s *Server) handleListReviewDocuments(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	docs, err := s.docService.ListNeedingReview(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list review documents")
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Gets a document by ID. Callers only see their own documents.
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      400  {object}  ErrorResponse  "Missing document ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	doc, err := s.docService.Get(r.Context(), authCtx.UserID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentChunks godoc
// @Summary      Get document with chunks
// @Description  Gets a document together with its ordered chunks
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.DocumentWithChunks
// @Failure      400  {object}  ErrorResponse  "Missing document ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id}/chunks [get]
func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	doc, err := s.docService.GetWithChunks(r.Context(), authCtx.UserID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// reviewRequest carries a review verdict
// @Description Review verdict for a flagged document
type reviewRequest struct {
	Status string `json:"status" example:"approved" enums:"pending,approved,rejected"`
}

// handleReviewDocument godoc
// @Summary      Review a document
// @Description  Records a review verdict on a document the quality scorer flagged
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "Document ID"
// @Param        request  body      reviewRequest  true  "Review verdict"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Invalid verdict"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Document not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id}/review [put]
func (s *Server) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.docService.UpdateReviewStatus(r.Context(), authCtx.UserID, id, domain.ReviewStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid review status")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update review status")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Device endpoints

// handleReportNetwork godoc
// @Summary      Report network state
// @Description  Records a device's network transition and returns the device with its recomputed sync cadence. Unknown devices are registered on first report.
// @Tags         Devices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Device ID"
// @Param        request  body      driving.NetworkReport  true  "Observed network state"
// @Success      200      {object}  domain.Device
// @Failure      400      {object}  ErrorResponse  "Invalid report"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Device not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /devices/{id}/network [post]
func (s *Server) handleReportNetwork(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing device id")
		return
	}

	var report driving.NetworkReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, err := s.deviceService.ReportNetwork(r.Context(), authCtx.UserID, id, report)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid network quality")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "device not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to record network report")
		}
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// handleListDevices godoc
// @Summary      List devices
// @Description  Lists the caller's devices with their current sync cadence
// @Tags         Devices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Device
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /devices [get]
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	devices, err := s.deviceService.ListDevices(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice godoc
// @Summary      Get device
// @Description  Gets one device. Callers only see their own devices.
// @Tags         Devices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Device ID"
// @Success      200  {object}  domain.Device
// @Failure      400  {object}  ErrorResponse  "Missing device ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Device not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /devices/{id} [get]
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing device id")
		return
	}

	device, err := s.deviceService.GetDevice(r.Context(), authCtx.UserID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// Sync endpoints

// handleGetSyncStates godoc
// @Summary      Get sync state
// @Description  Returns the caller's per-source sync states. Pass ?source= to fetch a single source.
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        source  query     string  false  "Source name"  Enums(calendar,contacts,health)
// @Success      200     {array}   domain.SyncState
// @Failure      400     {object}  ErrorResponse  "Unknown source"
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Failure      404     {object}  ErrorResponse  "No sync state recorded"
// @Failure      500     {object}  ErrorResponse  "Internal server error"
// @Router       /sync/state [get]
func (s *Server) handleGetSyncStates(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if name := r.URL.Query().Get("source"); name != "" {
		source, err := domain.ParseSyncSource(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown source")
			return
		}

		state, err := s.syncStatus.GetSyncState(r.Context(), authCtx.UserID, source)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no sync state recorded")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to get sync state")
			return
		}

		writeJSON(w, http.StatusOK, state)
		return
	}

	states, err := s.syncStatus.ListSyncStates(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sync states")
		return
	}

	writeJSON(w, http.StatusOK, states)
}

// triggerSyncRequest asks for an on-demand sync
// @Description On-demand sync request
type triggerSyncRequest struct {
	Source string `json:"source" example:"calendar" enums:"calendar,contacts,health"`
	UserID string `json:"user_id,omitempty" example:"usr_123"`
}

// taskAcceptedResponse acknowledges an enqueued task
// @Description Enqueued task acknowledgement
type taskAcceptedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status" example:"queued"`
}

// handleTriggerSync godoc
// @Summary      Trigger a sync
// @Description  Enqueues an on-demand sync job (operator only). With a user_id the job syncs that one user; without it the job fans out across all eligible users.
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      triggerSyncRequest  true  "Sync to enqueue"
// @Success      202      {object}  taskAcceptedResponse
// @Failure      400      {object}  ErrorResponse  "Unknown source"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Operator access required"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Failure      503      {object}  ErrorResponse  "Queue unavailable"
// @Router       /sync/trigger [post]
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var req triggerSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	taskID, err := s.scheduler.EnqueueSyncJob(r.Context(), domain.SyncSource(req.Source), req.UserID, 0)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownSource):
			writeError(w, http.StatusBadRequest, "unknown source")
		case errors.Is(err, domain.ErrQueueUnavailable):
			writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to enqueue sync")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, taskAcceptedResponse{TaskID: taskID, Status: "queued"})
}

// handleSchedulerStatus godoc
// @Summary      Scheduler status
// @Description  Reports queue depth and the installed recurring triggers (operator only)
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driving.SchedulerStatus
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Operator access required"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /sync/status [get]
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.scheduler.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get scheduler status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleListSourceStates godoc
// @Summary      List sync states for a source
// @Description  Lists every user's sync state for one source (operator only)
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        source  path      string  true  "Source name"  Enums(calendar,contacts,health)
// @Success      200     {array}   domain.SyncState
// @Failure      400     {object}  ErrorResponse  "Unknown source"
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Failure      403     {object}  ErrorResponse  "Operator access required"
// @Failure      500     {object}  ErrorResponse  "Internal server error"
// @Router       /sync/sources/{source} [get]
func (s *Server) handleListSourceStates(w http.ResponseWriter, r *http.Request) {
	source, err := domain.ParseSyncSource(r.PathValue("source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown source")
		return
	}

	states, err := s.syncStatus.ListSourceStates(r.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sync states")
		return
	}

	writeJSON(w, http.StatusOK, states)
}

// Response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
