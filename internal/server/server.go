package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront-gateway/internal/config"
	"storefront-gateway/internal/jubelio"
	custommiddleware "storefront-gateway/internal/middleware"
	"storefront-gateway/internal/service"
	"storefront-gateway/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoutePrefix is the alternate mount point kept for existing storefront clients
const RoutePrefix = "/api/jubelio"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      NewRouter(cfg, logger, redisClient),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		redis:  redisClient,
	}

	return server
}

// NewRouter wires the upstream client, token provider, services and
// handlers. A nil redisClient disables rate limiting.
func NewRouter(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	router.Get("/health", healthHandler(redisClient))

	// Upstream
	client := jubelio.NewClient(jubelio.Options{
		BaseURL:  cfg.Jubelio.BaseURL,
		LoginURL: cfg.Jubelio.LoginURL,
		Timeout:  cfg.Jubelio.Timeout,
	}, logger)
	tokens := jubelio.NewTokenProvider(client, jubelio.Credentials{
		APIKey:       cfg.Jubelio.APIKey,
		ClientID:     cfg.Jubelio.ClientID,
		ClientSecret: cfg.Jubelio.ClientSecret,
		Email:        cfg.Jubelio.Email,
		Password:     cfg.Jubelio.Password,
	}, jubelio.NewCredentialCache(), logger)

	// Initialize services
	productService := service.NewProductService(client, tokens, logger)
	authService := service.NewAuthService(client, logger)

	// Initialize handlers
	productHandler := transport.NewProductHandler(productService, logger)
	authHandler := transport.NewAuthHandler(authService, logger)

	routes := func(r chi.Router) {
		if redisClient != nil {
			r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "storefront_rate_limit",
			}, logger))
		}
		r.Use(custommiddleware.BearerTokenMiddleware(logger))

		authHandler.RegisterRoutes(r)
		productHandler.RegisterRoutes(r)
	}

	router.Group(routes)
	router.Route(RoutePrefix, routes)

	logger.Info("Jubelio upstream configured", zap.String("base_url", client.BaseURL()))

	return router
}

func healthHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				body["redis"] = "unavailable"
			} else {
				body["redis"] = "ok"
			}
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, body)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
