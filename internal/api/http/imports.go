package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockyard/stockyard/internal/storage"
)

// ImportURLResponse carries the upload URL for a reserved import slot.
type ImportURLResponse struct {
	UploadURL string `json:"uploadURL"`
}

// ImportHandler brokers catalog file uploads into the pending prefix.
type ImportHandler struct {
	store         storage.ObjectStorage
	pendingPrefix string
	uploadTTL     time.Duration
}

// NewImportHandler creates an import broker.
func NewImportHandler(store storage.ObjectStorage, pendingPrefix string, uploadTTL time.Duration) *ImportHandler {
	return &ImportHandler{
		store:         store,
		pendingPrefix: pendingPrefix,
		uploadTTL:     uploadTTL,
	}
}

// GetImportURL handles GET /v1/import/url?name=<file>.csv. It reserves the
// pending slot with a zero-byte placeholder and returns a URL the client can
// PUT the file content to.
func (h *ImportHandler) GetImportURL(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	name := r.URL.Query().Get("name")
	if err := validateImportName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	key := h.pendingPrefix + name
	if err := h.store.Put(r.Context(), key, "text/csv", strings.NewReader("")); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reserving import slot: %v", err), requestID)
		return
	}

	uploadURL, err := h.store.PresignPut(r.Context(), key, "text/csv", h.uploadTTL)
	if errors.Is(err, storage.ErrPresignUnsupported) {
		// Local storage has no presigned URLs; the broker serves the
		// upload itself.
		uploadURL = brokerUploadURL(r, name)
		err = nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("presigning upload: %v", err), requestID)
		return
	}

	writeJSON(w, http.StatusOK, ImportURLResponse{UploadURL: uploadURL})
}

// Upload handles PUT /v1/import/upload/{name}, the broker-served upload path
// for storage backends without presigned URLs.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name", requestID)
		return
	}
	if err := validateImportName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	key := h.pendingPrefix + name
	if err := h.store.Put(r.Context(), key, "text/csv", r.Body); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("storing upload: %v", err), requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// validateImportName enforces the import contract: a bare file name ending
// in .csv, no path separators.
func validateImportName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.New("name must not contain path separators")
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return errors.New("name must end in .csv")
	}
	return nil
}

// brokerUploadURL builds the broker-served upload URL from the incoming
// request's host.
func brokerUploadURL(r *http.Request, name string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/v1/import/upload/%s", scheme, r.Host, url.PathEscape(name))
}
