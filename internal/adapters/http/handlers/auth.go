package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gourmetlog/report-service/internal/adapters/http/dto"
	"github.com/gourmetlog/report-service/internal/app"
)

// AuthHandler handles sign-in.
type AuthHandler struct {
	service *app.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service *app.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// SignIn handles POST /api/v1/auth/sign-in.
//
// @Summary Sign in as the administrator
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} dto.SignInResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/v1/auth/sign-in [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	token, err := h.service.SignIn(c.Request.Context(), req.Email)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SignInResponse{Token: token})
}

// RegisterRoutes registers the auth routes on rg.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/sign-in", h.SignIn)
}
