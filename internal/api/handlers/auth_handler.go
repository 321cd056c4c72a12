// internal/api/handlers/auth_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdcredvip/crm-backend/internal/api/responses"
	"github.com/jdcredvip/crm-backend/internal/core/auth"
)

type AuthHandler struct {
	service auth.Service
}

func NewAuthHandler(service auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login autentica o usuário e devolve um token JWT com as permissões.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Informe usuário e senha.", err.Error())
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		responses.Error(c, http.StatusUnauthorized, err.Error())
		return
	}

	responses.Success(c, gin.H{"token": token}, "Login realizado com sucesso.")
}
