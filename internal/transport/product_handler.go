package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront-gateway/internal/domain"
	"storefront-gateway/internal/jubelio"
	"storefront-gateway/internal/middleware"
	"storefront-gateway/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgProductNotFound = "Product not found"
	msgInvalidID       = "Invalid product ID"
	msgInternal        = "Internal server error"
)

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := parseProductQuery(r)
	callerToken, _ := middleware.GetBearerToken(r.Context())

	if q.WantsCSV() {
		h.exportProducts(w, r, q, callerToken)
		return
	}

	page, err := h.productService.ListProducts(r.Context(), q, callerToken)
	if err != nil {
		h.respondListError(w, err, false)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) exportProducts(w http.ResponseWriter, r *http.Request, q domain.ProductQuery, callerToken string) {
	export, err := h.productService.ExportProducts(r.Context(), q, callerToken)
	if err != nil {
		h.respondListError(w, err, true)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Body); err != nil {
		h.logger.Warn("Failed to write CSV export", zap.Error(err))
	}
}

// respondListError maps listing failures. Non-404 upstream statuses are
// reported as not found with the status in details.
func (h *ProductHandler) respondListError(w http.ResponseWriter, err error, csv bool) {
	var statusErr *jubelio.StatusError
	hasStatus := errors.As(err, &statusErr)

	switch {
	case errors.Is(err, jubelio.ErrInternal) && hasStatus:
		h.logger.Error("Jubelio products fetch failed", zap.Int("status", statusErr.Status), zap.String("body", statusErr.Body))
		middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, msgInternal, statusErr.Body)
	case errors.Is(err, service.ErrProductNotFound):
		if !hasStatus || statusErr.Status == http.StatusNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, msgProductNotFound)
			return
		}
		h.logger.Warn("Jubelio products fetch failed", zap.Int("status", statusErr.Status), zap.String("body", statusErr.Body))
		details := fmt.Sprintf("upstream status %d: %s", statusErr.Status, statusErr.Body)
		if csv {
			details = fmt.Sprintf("upstream status %d", statusErr.Status)
		}
		middleware.RespondWithErrorDetails(w, http.StatusNotFound, msgProductNotFound, details)
	default:
		h.logger.Error("Jubelio API error", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, msgInternal, err.Error())
	}
}

// GetProduct handles GET /products/{id}. The raw upstream item is returned
// unless ?normalized is set.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	callerToken, _ := middleware.GetBearerToken(r.Context())

	detail, err := h.productService.GetProduct(r.Context(), id, callerToken)
	if err != nil {
		var statusErr *jubelio.StatusError
		switch {
		case errors.Is(err, jubelio.ErrInternal) && errors.As(err, &statusErr):
			h.logger.Error("Jubelio item fetch failed", zap.Int64("id", id), zap.String("body", statusErr.Body))
			middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, msgInternal, statusErr.Body)
		case errors.Is(err, service.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, msgProductNotFound)
		default:
			h.logger.Error("Jubelio product detail error", zap.Int64("id", id), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	if truthy(r.URL.Query().Get("normalized")) {
		middleware.RespondWithJSON(w, http.StatusOK, detail.Product)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, detail.Raw)
}

// parseProductQuery reads the listing parameters. Unparseable numbers fall
// back to the defaults; clamping happens in the service.
func parseProductQuery(r *http.Request) domain.ProductQuery {
	values := r.URL.Query()

	pageSizeRaw := values.Get("pageSize")
	if pageSizeRaw == "" {
		pageSizeRaw = values.Get("limit")
	}

	return domain.ProductQuery{
		Page:          intOrDefault(values.Get("page"), 1),
		PageSize:      intOrDefault(pageSizeRaw, domain.DefaultPageSize),
		SortDirection: values.Get("sortDirection"),
		SortBy:        values.Get("sortBy"),
		Q:             values.Get("q"),
		ChannelID:     values.Get("channelId"),
		IsFavourite:   values.Get("isFavourite"),
		CSV:           values.Get("csv"),
	}
}

func intOrDefault(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

func truthy(v string) bool {
	v = strings.TrimSpace(v)
	return v == "true" || v == "1"
}
