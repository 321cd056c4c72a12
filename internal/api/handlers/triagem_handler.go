// internal/api/handlers/triagem_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdcredvip/crm-backend/internal/api/responses"
	"github.com/jdcredvip/crm-backend/internal/core/triagem"
	"github.com/jdcredvip/crm-backend/internal/domain"
)

type TriagemHandler struct{}

func NewTriagemHandler() *TriagemHandler {
	return &TriagemHandler{}
}

type aplicarRegrasRequest struct {
	Registros  []domain.RegistroNormalizado `json:"registros" binding:"required"`
	Parametros domain.BusinessParams        `json:"parametros"`
	SeqInicial int                          `json:"seqInicial"`
}

// HandleAplicarRegras aplica as regras comerciais a um lote de registros já
// normalizados, sem persistir nada.
func (h *TriagemHandler) HandleAplicarRegras(c *gin.Context) {
	var req aplicarRegrasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Requisição inválida.", err.Error())
		return
	}

	registros := triagem.AplicarRegrasComerciais(req.Registros, triagem.Contexto{
		Parametros:    req.Parametros,
		ReferenceDate: time.Now(),
		SeqInicial:    req.SeqInicial,
	})

	responses.Success(c, gin.H{
		"registros": registros,
		"total":     len(registros),
	}, "Regras comerciais aplicadas.")
}

// HandleParametros expõe a tabela padrão de parâmetros comerciais.
func (h *TriagemHandler) HandleParametros(c *gin.Context) {
	responses.Success(c, triagem.DefaultBusinessParams(), "")
}
