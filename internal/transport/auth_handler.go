package transport

import (
	"errors"
	"net/http"

	"storefront-gateway/internal/jubelio"
	"storefront-gateway/internal/middleware"
	"storefront-gateway/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler proxies storefront logins
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes registers the login route
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
}

// Login handles POST /login and returns the upstream payload unchanged
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed",
			zap.Error(err),
			zap.Any("fields", middleware.FormatValidationErrors(err)),
		)
		middleware.RespondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	payload, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var authErr *jubelio.AuthError
		if errors.As(err, &authErr) && authErr.Status == http.StatusInternalServerError {
			h.logger.Info("Jubelio rejected login", zap.String("email", req.Email))
			middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, "Invalid Username or Password", rawOrNull(authErr.Raw))
			return
		}

		h.logger.Error("Jubelio authentication failed", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusBadGateway, "Unable to authenticate with Jubelio", err.Error())
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, payload)
}

// rawOrNull keeps a "details": null key when the upstream sent no body
func rawOrNull(raw any) any {
	if raw == nil {
		return jsonNull{}
	}
	return raw
}

type jsonNull struct{}

func (jsonNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}
