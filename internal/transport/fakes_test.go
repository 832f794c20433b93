package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamestore/internal/auth"
	"gamestore/internal/domain"
	"gamestore/internal/middleware"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCookieName = "gamestore_session"

var testTokens = auth.NewTokenIssuer("transport-test-secret", "gamestore", 15*time.Minute)

type tokenValidator struct{}

func (tokenValidator) ValidateToken(token string) (*auth.Claims, error) {
	return testTokens.Parse(token)
}

type sessionTable map[string]*domain.Session

func (s sessionTable) Resolve(ctx context.Context, id string) (*domain.Session, error) {
	session, ok := s[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return session, nil
}

// testRoutes wires the real authentication middleware over sessions
func testRoutes(sessions middleware.SessionResolver) Routes {
	logger := zap.NewNop()
	bearer := middleware.BearerAuthenticator{Tokens: tokenValidator{}}
	cookie := middleware.CookieAuthenticator{CookieName: testCookieName, Sessions: sessions}
	return Routes{
		Authenticated: middleware.AuthMiddleware(logger, cookie, bearer),
		Admin:         middleware.RequireAdmin(logger),
		Session:       middleware.AuthMiddleware(logger, cookie),
		RateLimit:     func(next http.Handler) http.Handler { return next },
	}
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router, routes Routes)
}

func newTestRouter(sessions middleware.SessionResolver, handlers ...routeRegistrar) chi.Router {
	r := chi.NewRouter()
	routes := testRoutes(sessions)
	for _, h := range handlers {
		h.RegisterRoutes(r, routes)
	}
	return r
}

func bearerFor(t *testing.T, roles ...string) (uuid.UUID, string) {
	t.Helper()
	user := &domain.User{ID: uuid.New(), Email: "someone@example.com", Roles: roles}
	token, err := testTokens.IssueAccessToken(user)
	require.NoError(t, err)
	return user.ID, "Bearer " + token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type fakeProductService struct {
	listQuery  service.ProductQuery
	page       *domain.ProductPage
	product    *domain.Product
	lastInput  service.ProductInput
	deletedID  uuid.UUID
	primaryIDs [2]uuid.UUID
	err        error
}

func (f *fakeProductService) List(ctx context.Context, query service.ProductQuery) (*domain.ProductPage, error) {
	f.listQuery = query
	return f.page, f.err
}

func (f *fakeProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return f.product, f.err
}

func (f *fakeProductService) Create(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	f.lastInput = input
	return f.product, f.err
}

func (f *fakeProductService) Update(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error) {
	f.lastInput = input
	return f.product, f.err
}

func (f *fakeProductService) Delete(ctx context.Context, id uuid.UUID) error {
	f.deletedID = id
	return f.err
}

func (f *fakeProductService) SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) (*domain.Product, error) {
	f.primaryIDs = [2]uuid.UUID{productID, imageID}
	return f.product, f.err
}

type fakeReviewService struct {
	userID  uuid.UUID
	input   service.ReviewInput
	reviews []*domain.ProductReview
	err     error
}

func (f *fakeReviewService) Create(ctx context.Context, userID uuid.UUID, input service.ReviewInput) (*domain.ProductReview, error) {
	f.userID = userID
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProductReview{
		Base:      domain.Base{ID: uuid.New()},
		ProductID: input.ProductID,
		UserID:    userID,
		Rating:    input.Rating,
		Title:     input.Title,
		Text:      input.Text,
	}, nil
}

func (f *fakeReviewService) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductReview, error) {
	return f.reviews, f.err
}

type fakeCategoryService struct {
	categories []*domain.Category
	deletedID  uuid.UUID
	err        error
}

func (f *fakeCategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	return f.categories, f.err
}

func (f *fakeCategoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.categories[0], nil
}

func (f *fakeCategoryService) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Category{Base: domain.Base{ID: uuid.New()}, Name: name, Description: description}, nil
}

func (f *fakeCategoryService) Update(ctx context.Context, id uuid.UUID, name, description string) (*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Category{Base: domain.Base{ID: id}, Name: name, Description: description}, nil
}

func (f *fakeCategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	f.deletedID = id
	return f.err
}

type fakeAuthorizationService struct {
	userID   uuid.UUID
	request  service.AuthorizeRequest
	redirect string
	token    service.TokenRequest
	response *service.TokenResponse
	err      error
}

func (f *fakeAuthorizationService) Authorize(ctx context.Context, userID uuid.UUID, req service.AuthorizeRequest) (string, error) {
	f.userID = userID
	f.request = req
	return f.redirect, f.err
}

func (f *fakeAuthorizationService) Exchange(ctx context.Context, req service.TokenRequest) (*service.TokenResponse, error) {
	f.token = req
	return f.response, f.err
}

func (f *fakeAuthorizationService) Discovery() *service.Discovery {
	return &service.Discovery{Issuer: "http://localhost:8080", CodeChallengeMethodsSupported: []string{"S256"}}
}
