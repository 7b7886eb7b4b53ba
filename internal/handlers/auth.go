package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/forwardbot/internal/auth"
)

type AuthHandler struct {
	jwtSecret string
	expiresIn time.Duration
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewAuthHandler(jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{jwtSecret: jwtSecret, expiresIn: expiresIn}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/refresh", h.Refresh)
}

// Refresh godoc
// @Summary Refresh admin token
// @Description Issue a new token for the presented one, keeping its lifetime
// @Tags auth
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	token, expiresAt, err := auth.RefreshTokenFromContext(c, h.jwtSecret, h.expiresIn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}
