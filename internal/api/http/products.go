package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockyard/stockyard/internal/catalog"
	"github.com/stockyard/stockyard/internal/commit"
	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/pkg/types"
)

// ProductsHandler serves catalog reads and the direct create path.
type ProductsHandler struct {
	store catalog.Store
}

// NewProductsHandler creates a products handler over the catalog store.
func NewProductsHandler(store catalog.Store) *ProductsHandler {
	return &ProductsHandler{store: store}
}

// List handles GET /v1/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("listing products: %v", err), GetRequestID(r.Context()))
		return
	}
	if products == nil {
		products = []types.ProductWithStock{}
	}
	writeJSON(w, http.StatusOK, products)
}

// Get handles GET /v1/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	id := chi.URLParam(r, "id")

	product, err := h.store.GetProduct(r.Context(), id)
	if pErrors.GetCode(err) == pErrors.CodeNotFound {
		writeError(w, http.StatusNotFound, "product not found", requestID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reading product: %v", err), requestID)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// Create handles POST /v1/products. The record goes through the same
// validation and atomic dual write as the pipeline's commit stage, with a
// random id assigned when the body carries none.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	// JSON null decodes without error but leaves the map nil.
	if raw == nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object", requestID)
		return
	}
	if _, ok := raw["id"]; !ok {
		id, _ := json.Marshal(uuid.New().String())
		raw["id"] = id
	}
	body, err := json.Marshal(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding record", requestID)
		return
	}

	cand, verr := commit.ParseCandidate(body)
	if verr != nil {
		writeError(w, http.StatusBadRequest, verr.Message, requestID)
		return
	}

	if err := h.store.CreateProduct(r.Context(), cand.Product, cand.Count); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("creating product: %v", err), requestID)
		return
	}

	created, err := h.store.GetProduct(r.Context(), cand.Product.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reading created product: %v", err), requestID)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
