package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"urltree/internal/logging"
	"urltree/internal/source"
	"urltree/internal/tree"
	"urltree/pkg/types"
)

// FilesProvider returns the current tree snapshot.
type FilesProvider interface {
	Files(ctx context.Context) (*types.Snapshot, error)
	Refresh(ctx context.Context) (*types.Snapshot, error)
}

type APIHandler struct {
	files FilesProvider
}

func NewAPIHandler(files FilesProvider) *APIHandler {
	return &APIHandler{
		files: files,
	}
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type RefreshResponse struct {
	tree.Stats
	BuiltAt string `json:"built_at"`
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 2 || pathParts[0] != "api" || pathParts[1] != "files" {
		h.sendError(w, http.StatusNotFound, "Invalid API endpoint")
		return
	}

	switch {
	case len(pathParts) == 2:
		if r.Method != http.MethodGet {
			h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.handleGetFiles(w, r)
	case len(pathParts) == 3 && pathParts[2] == "refresh":
		if r.Method != http.MethodPost {
			h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.handleRefresh(w, r)
	default:
		h.sendError(w, http.StatusNotFound, "Invalid API endpoint")
	}
}

// GET /api/files - the host trees, directories before files
func (h *APIHandler) handleGetFiles(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.files.Files(r.Context())
	if err != nil {
		h.sendBuildError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshot.Tree); err != nil {
		logging.WithContext(r.Context()).Error("encoding tree failed", zap.Error(err))
	}
}

// POST /api/files/refresh - rebuild from the upstream source
func (h *APIHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.files.Refresh(r.Context())
	if err != nil {
		h.sendBuildError(w, r, err)
		return
	}

	h.sendSuccess(w, http.StatusOK, "Tree rebuilt successfully", RefreshResponse{
		Stats:   snapshot.Stats,
		BuiltAt: snapshot.BuiltAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

func (h *APIHandler) sendBuildError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	logging.WithContext(r.Context()).Error("serving tree failed", zap.Int("status", status), zap.Error(err))
	h.sendError(w, status, err.Error())
}

// StatusForError maps build failures to HTTP status codes.
func StatusForError(err error) int {
	var fetchErr *source.FetchError
	var parseErr *tree.ParseError
	var conflictErr *tree.ConflictError

	// Fetch errors wrap the context error when the deadline hits mid-request.
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr), errors.As(err, &conflictErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) sendSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
	json.NewEncoder(w).Encode(response)
}

func (h *APIHandler) sendError(w http.ResponseWriter, statusCode int, errorMsg string) {
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   errorMsg,
	}
	json.NewEncoder(w).Encode(response)
}
