// internal/core/importacao/pipeline.go
package importacao

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdcredvip/crm-backend/internal/core/triagem"
	"github.com/jdcredvip/crm-backend/internal/domain"
	"github.com/jdcredvip/crm-backend/internal/repository"
)

// Pipeline executa o fluxo completo de um upload: leitura da planilha,
// normalização, regras comerciais, persistência, histórico e auditoria.
type Pipeline struct {
	importador Service
	registros  *repository.ImportRepo
	historico  *repository.HistoryRepo
	auditoria  *repository.AuditRepo
	logger     *zap.Logger
}

func NewPipeline(importador Service, registros *repository.ImportRepo, historico *repository.HistoryRepo, auditoria *repository.AuditRepo, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		importador: importador,
		registros:  registros,
		historico:  historico,
		auditoria:  auditoria,
		logger:     logger,
	}
}

// ProcessOptions parametriza o processamento de um arquivo.
type ProcessOptions struct {
	Filename   string
	Promotora  string
	Actor      string
	Persist    bool
	Parametros domain.BusinessParams
}

// ProcessSummary é o resumo devolvido ao chamador após o processamento.
type ProcessSummary struct {
	BatchID             string                 `json:"batchId"`
	Filename            string                 `json:"filename"`
	Promotora           string                 `json:"promotora"`
	TotalRegistros      int                    `json:"totalRegistros"`
	VolumeBruto         float64                `json:"volumeBruto"`
	VolumeTotal         float64                `json:"volumeTotal"`
	ComissaoTotal       float64                `json:"comissaoTotal"`
	ColunasReconhecidas []string               `json:"colunasReconhecidas"`
	Persistidos         int                    `json:"persistidos"`
	Produtos            []domain.ProdutoVolume `json:"produtos"`
	Status              []string               `json:"status"`
}

// audit registra a trilha de auditoria. Falha de auditoria nunca aborta a
// importação; só aparece no log estruturado.
func (p *Pipeline) audit(acao, status, mensagem string, detalhes any) {
	if p.auditoria == nil {
		return
	}
	if err := p.auditoria.Registrar("importacao", acao, status, mensagem, detalhes); err != nil && p.logger != nil {
		p.logger.Warn("falha ao registrar auditoria de importação",
			zap.String("acao", acao), zap.Error(err))
	}
}

// ProcessarArquivo executa o pipeline sobre o conteúdo de um arquivo enviado.
func (p *Pipeline) ProcessarArquivo(file io.Reader, opts ProcessOptions) (*ProcessSummary, error) {
	actor := opts.Actor
	if actor == "" {
		actor = "api"
	}

	batchID := uuid.NewString()
	p.audit("batch-start", "info", fmt.Sprintf("Batch iniciado (%s)", opts.Promotora), map[string]any{
		"batchId":   batchID,
		"promotora": opts.Promotora,
		"arquivo":   opts.Filename,
		"actor":     actor,
	})

	resultado, err := p.importador.ImportarPlanilha(file, opts.Filename, Options{
		Filename:      opts.Filename,
		PromotoraHint: opts.Promotora,
	})
	if err != nil {
		p.audit("upload", "erro", err.Error(), map[string]any{
			"batchId": batchID,
			"arquivo": opts.Filename,
			"actor":   actor,
		})
		return nil, err
	}

	registros := triagem.AplicarRegrasComerciais(resultado.Registros, triagem.Contexto{
		Parametros:    opts.Parametros,
		ReferenceDate: time.Now(),
		SeqInicial:    1,
	})

	resumo := resultado.Resumo
	summary := &ProcessSummary{
		BatchID:             batchID,
		Filename:            opts.Filename,
		Promotora:           resumo.Promotora,
		TotalRegistros:      resumo.TotalRegistros,
		VolumeBruto:         resumo.VolumeBruto,
		VolumeTotal:         resumo.VolumeTotal,
		ComissaoTotal:       resumo.ComissaoTotal,
		ColunasReconhecidas: resumo.ColunasReconhecidas,
		Produtos:            resumo.Produtos,
		Status:              resumo.Status,
	}

	if opts.Persist {
		fonte := resumo.Promotora
		if fonte == "" {
			fonte = opts.Promotora
		}
		stats, err := p.registros.PersistirLoteNormalizado(fonte, opts.Filename, resumo.Promotora, batchID, registros)
		if err != nil {
			p.audit("upload", "erro", err.Error(), map[string]any{
				"batchId": batchID,
				"arquivo": opts.Filename,
				"actor":   actor,
			})
			return nil, fmt.Errorf("persistir lote: %w", err)
		}
		summary.Persistidos = stats.Inseridos

		if err := p.historico.RegistrarImportacao(repository.RelatorioImportado{
			Filename:       opts.Filename,
			Promotora:      resumo.Promotora,
			TotalRegistros: resumo.TotalRegistros,
			VolumeBruto:    stats.VolumeBruto,
			VolumeTotal:    resumo.VolumeTotal,
			ComissaoTotal:  resumo.ComissaoTotal,
			Metadata: map[string]any{
				"colunasReconhecidas": resumo.ColunasReconhecidas,
				"produtos":            resumo.Produtos,
				"status":              resumo.Status,
				"usuario":             actor,
				"batchId":             batchID,
			},
		}); err != nil {
			return nil, fmt.Errorf("registrar histórico: %w", err)
		}

		p.audit("upload", "sucesso", fmt.Sprintf("Importacao %s", opts.Filename), map[string]any{
			"batchId":        batchID,
			"arquivo":        opts.Filename,
			"promotora":      resumo.Promotora,
			"totalRegistros": resumo.TotalRegistros,
			"persistidos":    stats.Inseridos,
			"actor":          actor,
		})
	}

	p.audit("batch-finish", "sucesso", fmt.Sprintf("Batch concluido (%s)", batchID), map[string]any{
		"batchId": batchID,
		"actor":   actor,
		"resumo":  summary,
	})

	return summary, nil
}
