package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"gamestore/internal/auth"
	"gamestore/internal/config"
	custommiddleware "gamestore/internal/middleware"
	"gamestore/internal/repository"
	"gamestore/internal/service"
	"gamestore/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services are the application services the HTTP layer is built over
type Services struct {
	Users         service.UserService
	Sessions      service.SessionService
	Products      service.ProductService
	Categories    service.CategoryService
	Reviews       service.ReviewService
	Authorization service.AuthorizationService
}

// NewServices builds repositories and services over the given stores
func NewServices(cfg *config.Config, db *sql.DB, redisClient *redis.Client) *Services {
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	uow := repository.NewUnitOfWork(db)

	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL())

	return &Services{
		Users:         service.NewUserService(userRepo, refreshTokenRepo, tokens, cfg.JWT.RefreshTTL()),
		Sessions:      service.NewSessionService(repository.NewSessionRepository(redisClient), cfg.Session.Lifetime()),
		Products:      service.NewProductService(productRepo, categoryRepo, uow, cfg.Catalog),
		Categories:    service.NewCategoryService(categoryRepo, uow),
		Reviews:       service.NewReviewService(reviewRepo, productRepo, uow),
		Authorization: service.NewAuthorizationService(repository.NewAuthorizationCodeRepository(redisClient), userRepo, tokens, cfg.OIDC),
	}
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client, services *Services) *Server {
	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      NewRouter(cfg, logger, redisClient, services),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

// NewRouter mounts every handler behind the shared middleware stack
func NewRouter(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client, services *Services) chi.Router {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack(logger)...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondRaw(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	cookie := custommiddleware.CookieAuthenticator{CookieName: cfg.Session.CookieName, Sessions: services.Sessions}
	bearer := custommiddleware.BearerAuthenticator{Tokens: services.Users}

	routes := transport.Routes{
		Authenticated: custommiddleware.AuthMiddleware(logger, cookie, bearer),
		Admin:         custommiddleware.RequireAdmin(logger),
		Session:       custommiddleware.AuthMiddleware(logger, cookie),
		RateLimit: custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.WindowDuration(),
			KeyPrefix:         "rate_limit:auth",
		}, logger),
	}

	sessionCookie := transport.SessionCookie{
		Name:   cfg.Session.CookieName,
		TTL:    cfg.Session.Lifetime(),
		Secure: cfg.Session.Secure,
	}

	transport.NewAuthHandler(services.Users, services.Sessions, sessionCookie, logger).RegisterRoutes(router, routes)
	transport.NewUserHandler(services.Users, logger).RegisterRoutes(router, routes)
	transport.NewProductHandler(services.Products, services.Reviews, logger).RegisterRoutes(router, routes)
	transport.NewCategoryHandler(services.Categories, logger).RegisterRoutes(router, routes)
	transport.NewReviewHandler(services.Reviews, logger).RegisterRoutes(router, routes)
	transport.NewOIDCHandler(services.Authorization, logger).RegisterRoutes(router, routes)

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
