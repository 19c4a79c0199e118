package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockyard/stockyard/internal/catalog"
	"github.com/stockyard/stockyard/internal/observability"
	"github.com/stockyard/stockyard/internal/storage"
)

// RouterConfig carries the dependencies of the API surface.
type RouterConfig struct {
	Store         catalog.Store
	Storage       storage.ObjectStorage
	Stats         *observability.PipelineStats
	PendingPrefix string
	UploadTTL     time.Duration
}

// NewRouter builds the API router with the standard middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	imports := NewImportHandler(cfg.Storage, cfg.PendingPrefix, cfg.UploadTTL)
	products := NewProductsHandler(cfg.Store)

	r := chi.NewRouter()
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/import/url", imports.GetImportURL)
		r.Put("/import/upload/{name}", imports.Upload)

		r.Get("/products", products.List)
		r.Post("/products", products.Create)
		r.Get("/products/{id}", products.Get)

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, cfg.Stats.SnapshotNow())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
