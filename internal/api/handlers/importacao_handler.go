// internal/api/handlers/importacao_handler.go
package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdcredvip/crm-backend/internal/api/middleware"
	"github.com/jdcredvip/crm-backend/internal/api/responses"
	"github.com/jdcredvip/crm-backend/internal/core/importacao"
	"github.com/jdcredvip/crm-backend/internal/core/ptbr"
	"github.com/jdcredvip/crm-backend/internal/domain"
	"github.com/jdcredvip/crm-backend/internal/repository"
)

type ImportacaoHandler struct {
	service   importacao.Service
	pipeline  *importacao.Pipeline
	historico *repository.HistoryRepo
}

func NewImportacaoHandler(service importacao.Service, pipeline *importacao.Pipeline, historico *repository.HistoryRepo) *ImportacaoHandler {
	return &ImportacaoHandler{
		service:   service,
		pipeline:  pipeline,
		historico: historico,
	}
}

// HandleUpload processa o upload multipart de um relatório de produção.
func (h *ImportacaoHandler) HandleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Selecione um arquivo para importar.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o arquivo enviado.")
		return
	}
	defer file.Close()

	summary, err := h.pipeline.ProcessarArquivo(file, importacao.ProcessOptions{
		Filename:  ptbr.SafeFilename(fileHeader.Filename),
		Promotora: c.PostForm("promotora"),
		Actor:     middleware.Actor(c),
		Persist:   true,
	})
	if err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	responses.Success(c, summary, "Importação concluída com sucesso.")
}

type analisarRequest struct {
	Filename  string                `json:"filename"`
	Data      string                `json:"data"`
	Promotora string                `json:"promotora"`
	Persist   bool                  `json:"persist"`
	Params    domain.BusinessParams `json:"parametros"`
}

// HandleAnalisar processa um relatório enviado como base64, persistindo
// apenas quando solicitado.
func (h *ImportacaoHandler) HandleAnalisar(c *gin.Context) {
	var req analisarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Requisição inválida.", err.Error())
		return
	}
	if req.Filename == "" || req.Data == "" {
		responses.Error(c, http.StatusBadRequest, "Informe o nome do arquivo e o conteúdo base64 para análise.")
		return
	}

	conteudo, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Conteúdo base64 inválido.")
		return
	}

	summary, err := h.pipeline.ProcessarArquivo(bytes.NewReader(conteudo), importacao.ProcessOptions{
		Filename:   ptbr.SafeFilename(req.Filename),
		Promotora:  req.Promotora,
		Actor:      middleware.Actor(c),
		Persist:    req.Persist,
		Parametros: req.Params,
	})
	if err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	responses.Success(c, summary, "Relatório analisado com sucesso.")
}

type sugerirColunasRequest struct {
	Colunas []string `json:"colunas" binding:"required"`
}

// HandleSugerirColunas sugere o alias conhecido mais próximo para cada
// cabeçalho não reconhecido.
func (h *ImportacaoHandler) HandleSugerirColunas(c *gin.Context) {
	var req sugerirColunasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Informe as colunas do relatório.", err.Error())
		return
	}

	responses.Success(c, h.service.SugerirColunas(req.Colunas), "Sugestões geradas.")
}

// HandleHistorico lista o histórico paginado de importações.
func (h *ImportacaoHandler) HandleHistorico(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	historico, err := h.historico.ListarHistorico(repository.FiltroHistorico{
		Limit:     limit,
		Offset:    offset,
		Promotora: strings.TrimSpace(c.Query("promotora")),
	})
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Falha ao listar importações.")
		return
	}

	responses.Success(c, historico, "")
}

// HandleRemover remove uma importação e seus registros pelo id do relatório.
func (h *ImportacaoHandler) HandleRemover(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		responses.Error(c, http.StatusBadRequest, "Identificador de importação inválido.")
		return
	}

	detalhes, err := h.historico.RemoverImportacao(id)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repository.ErrIdentificadorInvalido):
			status = http.StatusBadRequest
		case errors.Is(err, repository.ErrImportacaoNaoEncontrada):
			status = http.StatusNotFound
		}
		responses.Error(c, status, err.Error())
		return
	}

	responses.Success(c, detalhes, "Importação removida.")
}

type limparRequest struct {
	IDs []int64 `json:"ids"`
}

// HandleLimpar remove as importações selecionadas ou, sem ids, todo o
// histórico de importação.
func (h *ImportacaoHandler) HandleLimpar(c *gin.Context) {
	var req limparRequest
	_ = c.ShouldBindJSON(&req)
	if len(req.IDs) == 0 {
		req.IDs = parseIDsQuery(c.Query("ids"))
	}

	if len(req.IDs) > 0 {
		removidos, err := h.historico.RemoverSelecionadas(req.IDs)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, repository.ErrIdentificadorInvalido):
				status = http.StatusBadRequest
			case errors.Is(err, repository.ErrImportacaoNaoEncontrada):
				status = http.StatusNotFound
			}
			responses.Error(c, status, err.Error())
			return
		}
		responses.Success(c, gin.H{"removidos": removidos}, "Importações removidas.")
		return
	}

	removidos, err := h.historico.LimparImportacoes()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Falha ao limpar importações.")
		return
	}

	responses.Success(c, gin.H{"removidos": removidos}, "Limpeza completa de importações.")
}

func parseIDsQuery(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
