package transport

import (
	"net/http"

	"gamestore/internal/middleware"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewRequest is the body of POST /api/reviews
type ReviewRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Title     *string   `json:"title" validate:"omitempty,max=200"`
	Text      *string   `json:"text"`
}

// ReviewHandler handles HTTP requests for reviews
type ReviewHandler struct {
	reviewService service.ReviewService
	logger        *zap.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger,
	}
}

func (h *ReviewHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.With(routes.Authenticated).Post("/api/reviews", h.Create)
}

// Create stores the caller's review of a product
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Review validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	review, err := h.reviewService.Create(r.Context(), identity.UserID, service.ReviewInput{
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Title:     req.Title,
		Text:      req.Text,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "create review")
		return
	}

	h.logger.Info("Review created",
		zap.String("review_id", review.ID.String()),
		zap.String("product_id", review.ProductID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, review)
}
