package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garmentshop/catalog/internal/platform/httpx"
)

// Handler exposes the catalog over JSON HTTP.
type Handler struct {
	logger  *slog.Logger
	catalog Catalog
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog Catalog) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, catalog: catalog}
}

// MountRoutes registers product routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/search", h.search)
	r.Get("/category/{category}", h.listByCategory)
	r.Get("/brand/{brand}", h.listByBrand)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/view", h.view)
		r.Put("/images", h.replaceImages)
		r.Get("/stock", h.checkStock)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, httpx.BadRequest("request body must be a product document", err))
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+p.ID.String())
	httpx.OK(w, http.StatusCreated, "Product created successfully", p)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, httpx.BadRequest("request body must be a product document", err))
		return
	}
	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if expected == nil {
		expected = req.ExpectedVersion
	}
	p, err := h.catalog.UpdateProduct(r.Context(), id, req.ProductInput, expected)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product updated successfully", p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product deleted successfully", nil)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	includeInactive := q.boolParam("includeInactive")
	req := q.page(SortDesc)
	if err := q.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.catalog.ListProducts(r.Context(), isTrue(includeInactive), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", page)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	f := q.filter()
	req := q.page(SortDesc)
	if err := q.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.catalog.SearchProducts(r.Context(), f, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", page)
}

func (h *Handler) listByCategory(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	req := q.page(SortAsc)
	if err := q.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.catalog.ListByCategory(r.Context(), chi.URLParam(r, "category"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", page)
}

func (h *Handler) listByBrand(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	req := q.page(SortAsc)
	if err := q.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.catalog.ListByBrand(r.Context(), chi.URLParam(r, "brand"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", page)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.IncrementViewCount(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", p)
}

func (h *Handler) replaceImages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req imagesRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, httpx.BadRequest("request body must contain imageUrls", err))
		return
	}
	if err := h.catalog.ReplaceImages(r.Context(), id, req.ImageURLs); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product images updated successfully", nil)
}

func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	q := newQueryReader(r)
	quantity := q.intParam("quantity", 0)
	if err := q.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.catalog.CheckStock(r.Context(), id, quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", stockResponse{ProductID: id.String(), Quantity: quantity, Available: true})
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, invalid("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	mapped := toHTTPError(err)
	var httpErr *httpx.Error
	if !errors.As(mapped, &httpErr) || httpErr.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "catalog request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	httpx.RespondError(w, mapped)
}
