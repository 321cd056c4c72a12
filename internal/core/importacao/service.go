// internal/core/importacao/service.go
package importacao

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/jdcredvip/crm-backend/internal/core/mapping"
	"github.com/jdcredvip/crm-backend/internal/core/ptbr"
	"github.com/jdcredvip/crm-backend/internal/domain"
	"github.com/schollz/closestmatch"
)

// Service define a interface do pipeline de importação de relatórios.
type Service interface {
	ImportarRegistros(rows []*domain.RawRow, opts Options) (*domain.ResultadoImportacao, error)
	ImportarPlanilha(file io.Reader, filename string, opts Options) (*domain.ResultadoImportacao, error)
	SugerirColunas(colunas []string) map[string]string
}

// Options parametriza uma importação.
type Options struct {
	Filename      string
	PromotoraHint string
}

type service struct {
	cfg mapping.Config
	cm  *closestmatch.ClosestMatch
}

// NewService cria o serviço de importação com a configuração de aliases dada.
func NewService(cfg mapping.Config) Service {
	return &service{
		cfg: cfg,
		cm:  closestmatch.New(cfg.AllAliases(), []int{2, 3}),
	}
}

var (
	currencyHintRegex = regexp.MustCompile(`(?i)\$|valor|bruto|liquido|r\$|recebido`)
	percentHintRegex  = regexp.MustCompile(`(?i)%|percent`)
	naoDigitosRegex   = regexp.MustCompile(`\D`)
)

func hasCurrencyHint(key string) bool { return currencyHintRegex.MatchString(key) }
func hasPercentHint(key string) bool  { return percentHintRegex.MatchString(key) }

type pickOptions struct {
	preferCurrency bool
	excludePercent bool
	requirePercent bool
}

type match struct {
	chave string
	valor domain.Valor
}

// pickValue resolve o valor de um campo semântico numa linha bruta.
// "Primeiro match" segue a ordem das colunas na planilha de origem; entre
// colunas duplicadas com o mesmo alias isso decide em silêncio, uma
// ambiguidade herdada dos relatórios e não uma regra de negócio garantida.
func pickValue(row *domain.RawRow, aliases mapping.AliasSet, columnsUsed map[string]struct{}, opts pickOptions) (domain.Valor, bool) {
	if row == nil {
		return domain.Valor{}, false
	}

	var matches []match
	for _, c := range row.Celulas() {
		if aliases.Has(ptbr.NormalizeKey(c.Chave)) && !c.Valor.IsVazio() {
			matches = append(matches, match{chave: c.Chave, valor: c.Valor})
		}
	}
	if len(matches) == 0 {
		return domain.Valor{}, false
	}

	selectMatch := func(candidates []match) (domain.Valor, bool) {
		if len(candidates) == 0 {
			return domain.Valor{}, false
		}
		m := candidates[0]
		if columnsUsed != nil {
			columnsUsed[m.chave] = struct{}{}
		}
		return m.valor, true
	}

	if opts.requirePercent {
		var percentMatches []match
		for _, m := range matches {
			if hasPercentHint(m.chave) {
				percentMatches = append(percentMatches, m)
			}
		}
		return selectMatch(percentMatches)
	}

	if opts.preferCurrency {
		var currencyMatches []match
		for _, m := range matches {
			if hasCurrencyHint(m.chave) && (!opts.excludePercent || !hasPercentHint(m.chave)) {
				currencyMatches = append(currencyMatches, m)
			}
		}
		if v, ok := selectMatch(currencyMatches); ok {
			return v, true
		}
	}

	if opts.excludePercent {
		var nonPercent []match
		for _, m := range matches {
			if !hasPercentHint(m.chave) {
				nonPercent = append(nonPercent, m)
			}
		}
		if v, ok := selectMatch(nonPercent); ok {
			return v, true
		}
	}

	return selectMatch(matches)
}

func aliasOr(override, padrao mapping.AliasSet) mapping.AliasSet {
	if override != nil {
		return override
	}
	return padrao
}

func textoOuVazio(v domain.Valor, ok bool) string {
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

type rowContext struct {
	columnsUsed map[string]struct{}
	override    *mapping.PromotoraOverride
	hint        string
}

func (svc *service) normalizeRow(row *domain.RawRow, rc rowContext) domain.RegistroNormalizado {
	aliases := svc.cfg.Aliases
	var ov mapping.PromotoraOverride
	if rc.override != nil {
		ov = *rc.override
	}

	pick := func(set mapping.AliasSet, opts pickOptions) (domain.Valor, bool) {
		return pickValue(row, set, rc.columnsUsed, opts)
	}
	pickOnly := func(set mapping.AliasSet, opts pickOptions) domain.Valor {
		v, _ := pick(set, opts)
		return v
	}

	// Quando o relatório só traz um dos valores, líquido e bruto saem iguais:
	// degradação intencional, não erro.
	valorLiquido := ptbr.ParseCurrency(pickOnly(aliasOr(ov.ValorLiquidoAlias, aliases.ValorLiquido), pickOptions{}), 0)
	if valorLiquido == 0 {
		valorLiquido = ptbr.ParseCurrency(pickOnly(aliases.ValorBruto, pickOptions{}), 0)
	}

	valorBruto := ptbr.ParseCurrency(pickOnly(aliasOr(ov.ValorBrutoAlias, aliases.ValorBruto), pickOptions{}), 0)

	// Uma coluna "Comissão (%)" nunca pode ser lida como valor monetário.
	comissao := ptbr.ParseCurrency(pickOnly(aliasOr(ov.ComissaoAlias, aliases.Comissao), pickOptions{
		preferCurrency: true,
		excludePercent: true,
	}), 0)

	comissaoPercentualValor, temPercentual := pick(aliasOr(ov.ComissaoAlias, aliases.Comissao), pickOptions{requirePercent: true})
	var comissaoPercentual *float64
	if temPercentual {
		comissaoPercentual = ptbr.ParsePercent(comissaoPercentualValor)
	}

	var dataReferencia string
	if v, ok := pick(aliasOr(ov.DataAlias, aliases.DataReferencia), pickOptions{}); ok {
		if t, ok := ptbr.ParseDate(v); ok {
			dataReferencia = ptbr.ToISOString(t)
		}
	}

	promotoraValor := textoOuVazio(pick(aliasOr(ov.PromotoraAlias, aliases.Promotora), pickOptions{}))
	if promotoraValor == "" {
		promotoraValor = rc.hint
	}
	promotora := svc.cfg.MatchPromotoraAlias(promotoraValor)
	if promotora == "" {
		promotora = ptbr.DetectPromotoraFromValue(promotoraValor)
	}
	if promotora == "" {
		promotora = rc.hint
	}

	contratoID := textoOuVazio(pick(aliasOr(ov.ContratoAlias, aliases.Contrato), pickOptions{}))
	if contratoID == "" {
		contratoID = textoOuVazio(pick(aliasOr(ov.ContratoAdeAlias, aliases.ContratoAde), pickOptions{}))
	}

	documento := textoOuVazio(pick(aliasOr(ov.DocumentoAlias, aliases.Documento), pickOptions{}))
	documento = naoDigitosRegex.ReplaceAllString(documento, "")

	produto := textoOuVazio(pick(aliasOr(ov.ProdutoAlias, aliases.Produto), pickOptions{}))

	return domain.RegistroNormalizado{
		Cliente:            textoOuVazio(pick(aliasOr(ov.ClienteAlias, aliases.Cliente), pickOptions{})),
		Documento:          documento,
		ContratoID:         contratoID,
		Produto:            produto,
		ProdutoOriginal:    produto,
		Banco:              textoOuVazio(pick(aliasOr(ov.BancoAlias, aliases.Banco), pickOptions{})),
		Status:             textoOuVazio(pick(aliasOr(ov.StatusAlias, aliases.Status), pickOptions{})),
		Promotora:          promotora,
		ValorLiquido:       valorLiquido,
		ValorBruto:         valorBruto,
		Comissao:           comissao,
		ComissaoPercentual: comissaoPercentual,
		DataReferencia:     dataReferencia,
		DataPagamento:      dataReferencia,
		Raw:                row,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (svc *service) aggregateResumo(registros []domain.RegistroNormalizado, rows []*domain.RawRow, opts Options) domain.Resumo {
	var volumeTotal, volumeBrutoTotal, comissaoTotal float64

	produtoOrdem := []string{}
	produtosMap := make(map[string]float64)
	statusVistos := make(map[string]bool)
	var status []string
	promotorasVistas := make(map[string]bool)
	var promotoras []string

	for _, registro := range registros {
		// Fallback em três níveis, repetido na agregação para tolerar
		// registros parcialmente normalizados.
		var volume float64
		switch {
		case isFinite(registro.ValorLiquido):
			volume = registro.ValorLiquido
		case isFinite(registro.ValorBruto):
			volume = registro.ValorBruto
		}

		volumeBruto := volume
		if isFinite(registro.ValorBruto) {
			volumeBruto = registro.ValorBruto
		}

		comissao := 0.0
		if isFinite(registro.Comissao) {
			comissao = registro.Comissao
		}

		volumeTotal += volume
		volumeBrutoTotal += volumeBruto
		comissaoTotal += comissao

		if registro.Produto != "" {
			if _, ok := produtosMap[registro.Produto]; !ok {
				produtoOrdem = append(produtoOrdem, registro.Produto)
			}
			produtosMap[registro.Produto] += volume
		}
		if registro.Status != "" && !statusVistos[registro.Status] {
			statusVistos[registro.Status] = true
			status = append(status, registro.Status)
		}
		if registro.Promotora != "" && !promotorasVistas[registro.Promotora] {
			promotorasVistas[registro.Promotora] = true
			promotoras = append(promotoras, registro.Promotora)
		}
	}

	resumoPromotora := opts.PromotoraHint
	if resumoPromotora == "" && len(promotoras) > 0 {
		resumoPromotora = promotoras[0]
	}
	if resumoPromotora == "" {
		resumoPromotora = ptbr.DetectPromotoraFromFilename(opts.Filename)
	}
	if resumoPromotora == "" {
		resumoPromotora = "Desconhecida"
	}

	produtos := make([]domain.ProdutoVolume, 0, len(produtoOrdem))
	for _, nome := range produtoOrdem {
		produtos = append(produtos, domain.ProdutoVolume{
			Produto: nome,
			Volume:  round2(produtosMap[nome]),
		})
	}

	return domain.Resumo{
		TotalRegistros:      len(registros),
		VolumeBruto:         round2(volumeBrutoTotal),
		VolumeTotal:         round2(volumeTotal),
		ComissaoTotal:       round2(comissaoTotal),
		ColunasReconhecidas: ptbr.SummarizeColumns(rows, 80),
		Produtos:            produtos,
		Status:              status,
		Promotora:           resumoPromotora,
	}
}

// ImportarRegistros normaliza um lote de linhas brutas e agrega o resumo.
// Lote vazio é violação de contrato do chamador e falha; linha com dado ruim
// nunca derruba o lote, apenas degrada campo a campo.
func (svc *service) ImportarRegistros(rows []*domain.RawRow, opts Options) (*domain.ResultadoImportacao, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("nenhum dado encontrado no relatório")
	}

	columnsUsed := make(map[string]struct{})
	override := svc.cfg.OverridesPara(opts.PromotoraHint)

	registros := make([]domain.RegistroNormalizado, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			row = domain.NewRawRow()
		}
		registros = append(registros, svc.normalizeRow(row, rowContext{
			columnsUsed: columnsUsed,
			override:    override,
			hint:        opts.PromotoraHint,
		}))
	}

	resumo := svc.aggregateResumo(registros, rows, opts)

	return &domain.ResultadoImportacao{
		Registros: registros,
		Resumo:    resumo,
	}, nil
}

// SugerirColunas aproxima cabeçalhos não reconhecidos do alias conhecido
// mais parecido, para revisão humana nos metadados da importação.
func (svc *service) SugerirColunas(colunas []string) map[string]string {
	sugestoes := make(map[string]string)
	for _, coluna := range colunas {
		if svc.cfg.Reconhece(coluna) {
			continue
		}
		key := ptbr.NormalizeKey(coluna)
		if key == "" {
			continue
		}
		if proxima := svc.cm.Closest(key); proxima != "" {
			sugestoes[coluna] = proxima
		}
	}
	return sugestoes
}
