package transport

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gamestore/internal/domain"
	"gamestore/internal/middleware"
	"gamestore/internal/repository"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ImageRequest is one image of a product write
type ImageRequest struct {
	URL       string `json:"url" validate:"required,url,max=1000"`
	IsPrimary bool   `json:"is_primary"`
}

// ProductRequest is the body of product create and update
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	IsFeatured  bool            `json:"is_featured"`
	Description string          `json:"description"`
	Warranty    string          `json:"warranty"`
	Images      []ImageRequest  `json:"images" validate:"dive"`
	CategoryIDs []uuid.UUID     `json:"category_ids"`
}

func (req ProductRequest) input() service.ProductInput {
	images := make([]service.ImageInput, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, service.ImageInput{URL: img.URL, IsPrimary: img.IsPrimary})
	}
	return service.ProductInput{
		Name:        req.Name,
		Price:       req.Price,
		IsFeatured:  req.IsFeatured,
		Description: req.Description,
		Warranty:    req.Warranty,
		Images:      images,
		CategoryIDs: req.CategoryIDs,
	}
}

// ProductResponse is a product with its derived figures
type ProductResponse struct {
	*domain.Product
	ThumbnailURL  string  `json:"thumbnail_url"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		Product:       p,
		ThumbnailURL:  p.ThumbnailURL(),
		AverageRating: p.AverageRating(),
		ReviewCount:   len(p.Reviews),
	}
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	productService service.ProductService
	reviewService  service.ReviewService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, reviewService service.ReviewService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		reviewService:  reviewService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/reviews", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(routes.Authenticated, routes.Admin)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Put("/{id}/images/{imageId}/primary", h.SetPrimaryImage)
		})
	})
}

// List handles GET /api/products?page=&pageSize=&categoryIds=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := parseProductQuery(r.URL.Query())
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.productService.List(r.Context(), query)
	if err != nil {
		respondServiceError(w, h.logger, err, "list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// parseProductQuery reads paging and the category filter. Category ids may be
// repeated or comma separated.
func parseProductQuery(values url.Values) (service.ProductQuery, error) {
	var query service.ProductQuery

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return query, errors.New("page must be an integer")
		}
		query.Page = page
	}
	if raw := values.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return query, errors.New("pageSize must be an integer")
		}
		query.PageSize = size
	}

	for _, raw := range values["categoryIds"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return query, errors.New("categoryIds must be UUIDs")
			}
			query.CategoryIDs = append(query.CategoryIDs, id)
		}
	}
	return query, nil
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// ListReviews handles GET /api/products/{id}/reviews, newest first
func (h *ProductHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	reviews, err := h.reviewService.ListForProduct(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list reviews")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.Create(r.Context(), req.input())
	if err != nil {
		h.respondWriteError(w, err, "create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.Update(r.Context(), id, req.input())
	if err != nil {
		h.respondWriteError(w, err, "update product")
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// SetPrimaryImage handles PUT /api/products/{id}/images/{imageId}/primary
func (h *ProductHandler) SetPrimaryImage(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := uuidParam(w, r, "imageId")
	if !ok {
		return
	}

	product, err := h.productService.SetPrimaryImage(r.Context(), id, imageID)
	if err != nil {
		respondServiceError(w, h.logger, err, "set primary image")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// respondWriteError treats unknown category ids in the body as a bad request
func (h *ProductHandler) respondWriteError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, repository.ErrCategoryNotFound) {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondServiceError(w, h.logger, err, action)
}
