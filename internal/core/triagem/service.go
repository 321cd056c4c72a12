// internal/core/triagem/service.go
package triagem

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jdcredvip/crm-backend/internal/core/mapping"
	"github.com/jdcredvip/crm-backend/internal/core/ptbr"
	"github.com/jdcredvip/crm-backend/internal/domain"
)

// Rótulos canônicos dos produtos comerciais.
const (
	ProdutoINSS    = "INSS"
	ProdutoFGTS    = "FGTS - Saque-aniversario"
	ProdutoCLT     = "Trabalhador CLT"
	ProdutoBolsa   = "Bolsa Familia"
	ProdutoLuz     = "Conta de Luz"
	ProdutoPessoal = "Credito Pessoal"
)

var followupParamMap = map[string]string{
	ProdutoINSS:    "INSS",
	ProdutoFGTS:    "FGTS_SAQUE_ANIVERSARIO",
	ProdutoCLT:     "TRABALHADOR_CLT",
	ProdutoBolsa:   "BOLSA_FAMILIA",
	ProdutoLuz:     "CONTA_DE_LUZ",
	ProdutoPessoal: "CREDITO_PESSOAL",
}

var commissionParamMap = map[string]string{
	ProdutoINSS:    "COMISSAO_INSS",
	ProdutoFGTS:    "COMISSAO_FGTS",
	ProdutoCLT:     "COMISSAO_TRABALHADOR_CLT",
	ProdutoBolsa:   "COMISSAO_BOLSA_FAMILIA",
	ProdutoLuz:     "COMISSAO_CONTA_DE_LUZ",
	ProdutoPessoal: "COMISSAO_CREDITO_PESSOAL",
}

// DefaultBusinessParams é a tabela padrão de parâmetros comerciais,
// sobreponível chave a chave em cada chamada.
func DefaultBusinessParams() domain.BusinessParams {
	return domain.BusinessParams{
		"PADRAO":                   90,
		"INSS":                     90,
		"FGTS_SAQUE_ANIVERSARIO":   30,
		"TRABALHADOR_CLT":          60,
		"BOLSA_FAMILIA":            90,
		"CONTA_DE_LUZ":             45,
		"CREDITO_PESSOAL":          90,
		"LIMITE_BOLSA":             750,
		"LIMITE_LUZ_RN":            2100,
		"LIMITE_LUZ_DEFAULT":       5000,
		"COMISSAO_INSS":            0.17,
		"COMISSAO_FGTS":            0.12,
		"COMISSAO_TRABALHADOR_CLT": 0.10,
		"COMISSAO_BOLSA_FAMILIA":   0.09,
		"COMISSAO_CONTA_DE_LUZ":    0.08,
		"COMISSAO_CREDITO_PESSOAL": 0.08,
		"COMISSAO_DEFAULT":         0.10,
	}
}

// MergeParams sobrepõe parâmetros do chamador à tabela padrão, sem mutar
// nenhum dos dois.
func MergeParams(custom domain.BusinessParams) domain.BusinessParams {
	merged := DefaultBusinessParams()
	for k, v := range custom {
		merged[k] = v
	}
	return merged
}

var rawFieldAliases = struct {
	convenio         mapping.AliasSet
	tabela           mapping.AliasSet
	ultimoContato    mapping.AliasSet
	observacoes      mapping.AliasSet
	origemComissao   mapping.AliasSet
	situacaoComissao mapping.AliasSet
}{
	convenio: mapping.NewAliasSet("convenio", "conv", "parcela_convenio"),
	tabela:   mapping.NewAliasSet("tabela", "tabela_nome", "produto_tabela"),
	ultimoContato: mapping.NewAliasSet(
		"ultimo_contato",
		"ultimo contato",
		"last_contact",
		"lastcontact",
		"data_ultimo_contato",
		"ultimo contato realizado",
	),
	observacoes: mapping.NewAliasSet(
		"observacoes",
		"observacoes_estrategicas",
		"observacoes estrategicas",
		"observacao",
		"obs",
		"anotacoes",
	),
	origemComissao:   mapping.NewAliasSet("origem_comissao", "origem comissao", "origem"),
	situacaoComissao: mapping.NewAliasSet("situacao_comissao", "situacao comissao", "status_comissao"),
}

func pickRawValue(raw *domain.RawRow, aliases mapping.AliasSet) domain.Valor {
	for _, c := range raw.Celulas() {
		if aliases.Has(ptbr.NormalizeKey(c.Chave)) {
			return c.Valor
		}
	}
	return domain.Vazio()
}

var parcelasRegex = regexp.MustCompile(`\d+x`)

// ClassificarProdutoPorConvenio aplica a escada genérica de palavras-chave
// sobre convênio e produto. A ordem das categorias é decisão de política
// ("bolsa" antes de "inss") porque os textos se sobrepõem.
func ClassificarProdutoPorConvenio(convenio, produto string) string {
	conv := ptbr.NormalizeText(convenio)
	prod := ptbr.NormalizeText(produto)
	combo := strings.TrimSpace(prod + " " + conv)

	if combo == "" {
		return ""
	}

	contains := func(value string) bool { return strings.Contains(combo, value) }

	switch {
	case contains("energia") || contains("luz") || contains("fatura"):
		return ProdutoLuz
	case contains("bolsa") || contains("baixa renda") || strings.Contains(conv, "ba") || strings.Contains(combo, "cp baixa renda"):
		return ProdutoBolsa
	case contains("fgts"):
		return ProdutoFGTS
	case contains("clt") || contains("trabalhador") || contains("privado"):
		return ProdutoCLT
	case contains("inss") || strings.Contains(conv, "%") || parcelasRegex.MatchString(conv) || parcelasRegex.MatchString(prod):
		return ProdutoINSS
	case contains("pessoal") || contains("debito em conta") || contains("credito pessoal"):
		return ProdutoPessoal
	}
	return ""
}

// DadosClassificacao reúne os campos usados na reclassificação de produto.
type DadosClassificacao struct {
	Promotora string
	Convenio  string
	Produto   string
	Tabela    string
}

// ClassificarProdutoSmart reclassifica o produto de um registro. A Yuppie
// tem escada própria sobre o campo tabela; as demais promotoras caem na
// escada genérica por convênio/produto.
func ClassificarProdutoSmart(dados DadosClassificacao) string {
	promotora := ptbr.NormalizeText(dados.Promotora)
	tabela := ptbr.NormalizeText(dados.Tabela)
	convenio := ptbr.NormalizeText(dados.Convenio)
	produto := ptbr.NormalizeText(dados.Produto)

	if promotora == "" && convenio == "" && produto == "" && tabela == "" {
		return ""
	}

	if promotora == "yuppie" {
		switch {
		case strings.Contains(tabela, "excluindo") && strings.Contains(tabela, "baixa renda"):
			return ProdutoPessoal
		case strings.Contains(tabela, "energia") || strings.Contains(tabela, "luz") || strings.Contains(tabela, "fatura"):
			return ProdutoLuz
		case strings.Contains(tabela, "baixa renda") || strings.Contains(tabela, "bolsa"):
			return ProdutoBolsa
		case strings.Contains(tabela, "fgts"):
			return ProdutoFGTS
		case strings.Contains(tabela, "clt") || strings.Contains(tabela, "trabalhador") || strings.Contains(tabela, "privado"):
			return ProdutoCLT
		case strings.Contains(tabela, "inss") || strings.Contains(convenio, "%") || parcelasRegex.MatchString(convenio):
			return ProdutoINSS
		}

		combined := produto + " " + convenio
		switch {
		case strings.Contains(combined, "energia") || strings.Contains(combined, "luz") || strings.Contains(combined, "fatura"):
			return ProdutoLuz
		case strings.Contains(combined, "baixa renda") || strings.Contains(combined, "bolsa"):
			return ProdutoBolsa
		case strings.Contains(combined, "fgts"):
			return ProdutoFGTS
		case strings.Contains(combined, "clt") || strings.Contains(combined, "trabalhador") || strings.Contains(combined, "privado"):
			return ProdutoCLT
		case strings.Contains(combined, "inss") || strings.Contains(convenio, "%") || parcelasRegex.MatchString(convenio):
			return ProdutoINSS
		}
		return ProdutoPessoal
	}

	if resultado := ClassificarProdutoPorConvenio(dados.Convenio, dados.Produto); resultado != "" {
		return resultado
	}

	if produto != "" {
		switch {
		case strings.Contains(produto, "fgts"):
			return ProdutoFGTS
		case strings.Contains(produto, "clt"):
			return ProdutoCLT
		case strings.Contains(produto, "bolsa") || strings.Contains(produto, "baixa renda"):
			return ProdutoBolsa
		case strings.Contains(produto, "luz") || strings.Contains(produto, "energia"):
			return ProdutoLuz
		case strings.Contains(produto, "inss"):
			return ProdutoINSS
		case strings.Contains(produto, "pessoal"):
			return ProdutoPessoal
		}
	}

	return ""
}

// PerfilCliente são flags independentes derivadas do texto do registro;
// mais de uma pode ser verdadeira ao mesmo tempo.
type PerfilCliente struct {
	IsINSS    bool
	IsCLT     bool
	IsBA      bool
	IsLOASBPC bool
}

// DadosPerfil reúne os campos textuais vasculhados na detecção de perfil.
type DadosPerfil struct {
	Produto          string
	Convenio         string
	Tabela           string
	Observacoes      string
	OrigemComissao   string
	SituacaoComissao string
}

// DetectarPerfilCliente deriva o perfil do cliente por substring sobre a
// concatenação dos campos textuais.
func DetectarPerfilCliente(dados DadosPerfil) PerfilCliente {
	partes := []string{
		dados.Produto,
		dados.Convenio,
		dados.Tabela,
		dados.Observacoes,
		dados.OrigemComissao,
		dados.SituacaoComissao,
	}
	for i, parte := range partes {
		partes[i] = ptbr.NormalizeText(parte)
	}
	textoBase := strings.Join(partes, " ")

	return PerfilCliente{
		IsINSS:    strings.Contains(textoBase, "inss") || strings.Contains(textoBase, "aposent") || strings.Contains(textoBase, "pension"),
		IsCLT:     strings.Contains(textoBase, "clt") || strings.Contains(textoBase, "trabalhador") || strings.Contains(textoBase, "privado"),
		IsBA:      strings.Contains(textoBase, "baixa renda") || strings.Contains(textoBase, "bolsa"),
		IsLOASBPC: strings.Contains(textoBase, "loas") || strings.Contains(textoBase, "bpc"),
	}
}

// SugerirUpsell devolve a sugestão comercial para o produto de destino,
// ou "" quando não há oferta aplicável.
func SugerirUpsell(abaDestino string, perfil PerfilCliente) string {
	switch abaDestino {
	case ProdutoLuz:
		if perfil.IsINSS || perfil.IsLOASBPC {
			return "Oferecer linha INSS (consignado, port ou cartao)"
		}
		if perfil.IsCLT {
			return "Oferecer Credito do Trabalhador (CLT)"
		}
		return "Cliente BA - manter Luz como principal"
	case ProdutoCLT:
		return "Complementar: FGTS ou Conta de Luz"
	case ProdutoBolsa:
		if perfil.IsLOASBPC {
			return "Oferecer INSS ou Credito Pessoal acima de 750"
		}
		return "Complementar Luz"
	case ProdutoPessoal:
		if perfil.IsINSS || perfil.IsLOASBPC {
			return "Portabilidade/Refin/Cartao INSS"
		}
		return ""
	case ProdutoFGTS:
		return "Complementar Luz ou Credito do Trabalhador (CLT)"
	default:
		return ""
	}
}

// CalcularProximoContato soma ao último contato o prazo de follow-up do
// produto (padrão 90 dias). Sem último contato válido não há follow-up.
func CalcularProximoContato(abaDestino string, ultimoContato time.Time, params domain.BusinessParams) (time.Time, bool) {
	if ultimoContato.IsZero() {
		return time.Time{}, false
	}
	merged := MergeParams(params)
	paramKey, ok := followupParamMap[abaDestino]
	if !ok {
		paramKey = "PADRAO"
	}
	dias, ok := merged[paramKey]
	if !ok {
		dias = merged["PADRAO"]
	}
	if dias == 0 {
		dias = 90
	}
	return ultimoContato.AddDate(0, 0, int(dias)), true
}

// GetComissaoPercent resolve o percentual de comissão: chave do produto de
// destino, depois chave derivada do nome do produto, depois o padrão global.
// Valores acima de 1 são percentuais cheios e viram fração.
func GetComissaoPercent(params domain.BusinessParams, abaDestino, produto string) float64 {
	merged := MergeParams(params)

	var keysToCheck []string
	if abaDestino != "" {
		if key, ok := commissionParamMap[abaDestino]; ok {
			keysToCheck = append(keysToCheck, key)
		}
	}
	if produto != "" {
		keysToCheck = append(keysToCheck, "COMISSAO_"+strings.ToUpper(ptbr.NormalizeKey(produto)))
	}
	keysToCheck = append(keysToCheck, "COMISSAO_DEFAULT")

	for _, key := range keysToCheck {
		if value, ok := merged[key]; ok && value > 0 {
			if value > 1 {
				return value / 100
			}
			return value
		}
	}
	return merged["COMISSAO_DEFAULT"]
}

func sanitizeDocumento(value string) string {
	digits := naoDigitosRegex.ReplaceAllString(value, "")
	if digits == "" {
		return "0000"
	}
	return digits
}

var naoDigitosRegex = regexp.MustCompile(`\D`)

// GerarIDUnicoParaContrato produz um identificador sintético
// AUTO-YYYYMMDD-HHmmss-<cpf4>-<seq3> para registros sem contrato externo.
// A unicidade real fica a cargo do índice único da camada de persistência.
func GerarIDUnicoParaContrato(documento string, sequencia int, referenceDate time.Time) string {
	doc := sanitizeDocumento(documento)
	if sequencia < 1 {
		sequencia = 1
	}
	if referenceDate.IsZero() {
		referenceDate = time.Now()
	}

	cpf4 := doc
	if len(cpf4) > 4 {
		cpf4 = cpf4[len(cpf4)-4:]
	}

	return fmt.Sprintf("AUTO-%s-%s-%s-%03d",
		referenceDate.Format("20060102"),
		referenceDate.Format("150405"),
		cpf4,
		sequencia,
	)
}

// Contexto parametriza a aplicação das regras comerciais a um lote.
type Contexto struct {
	Parametros      domain.BusinessParams
	ReferenceDate   time.Time
	SeqInicial      int
	NotasAdicionais []string
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func diffInDays(future, base time.Time) int {
	return int(dateOnly(future).Sub(dateOnly(base)).Hours() / 24)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func appendObservacao(base string, notas []string) string {
	var filtradas []string
	for _, nota := range notas {
		if nota != "" {
			filtradas = append(filtradas, nota)
		}
	}
	if len(filtradas) == 0 {
		return base
	}
	joined := strings.Join(filtradas, " | ")
	if base != "" {
		return base + " | " + joined
	}
	return joined
}

// AplicarRegrasComerciaisAoRegistro enriquece uma cópia do registro com
// reclassificação de produto, perfil, upsell, follow-up, comissão e contrato
// sintético. Nenhuma etapa falha com entrada malformada: toda leitura tem
// fallback e todo parse ruim degrada para vazio ou zero.
func AplicarRegrasComerciaisAoRegistro(registro domain.RegistroNormalizado, ctx Contexto, seqAtual int) domain.RegistroNormalizado {
	result := registro
	raw := registro.Raw
	params := MergeParams(ctx.Parametros)
	if seqAtual < 1 {
		seqAtual = 1
	}

	convenioRaw := pickRawValue(raw, rawFieldAliases.convenio)
	tabelaRaw := pickRawValue(raw, rawFieldAliases.tabela)
	obsRaw := pickRawValue(raw, rawFieldAliases.observacoes)
	origemComissaoRaw := pickRawValue(raw, rawFieldAliases.origemComissao)
	situacaoComissaoRaw := pickRawValue(raw, rawFieldAliases.situacaoComissao)

	produtoDestino := ClassificarProdutoSmart(DadosClassificacao{
		Promotora: result.Promotora,
		Convenio:  convenioRaw.String(),
		Produto:   result.Produto,
		Tabela:    tabelaRaw.String(),
	})
	if produtoDestino == "" {
		produtoDestino = result.Produto
	}

	result.ProdutoClassificado = produtoDestino
	if produtoDestino != "" {
		result.Produto = produtoDestino
	}

	obsParaPerfil := obsRaw.String()
	if obsParaPerfil == "" {
		obsParaPerfil = result.Observacoes
	}
	perfil := DetectarPerfilCliente(DadosPerfil{
		Produto:          result.Produto,
		Convenio:         convenioRaw.String(),
		Tabela:           tabelaRaw.String(),
		Observacoes:      obsParaPerfil,
		OrigemComissao:   origemComissaoRaw.String(),
		SituacaoComissao: situacaoComissaoRaw.String(),
	})

	upsell := SugerirUpsell(produtoDestino, perfil)
	if upsell != "" {
		result.UpsellSugerido = upsell
	}

	if ultimoContatoRaw := pickRawValue(raw, rawFieldAliases.ultimoContato); !ultimoContatoRaw.IsVazio() {
		if ultimoContato, ok := ptbr.ParseDate(ultimoContatoRaw); ok {
			result.UltimoContato = ptbr.ToISOString(ultimoContato)
			if proximo, ok := CalcularProximoContato(produtoDestino, ultimoContato, params); ok {
				result.ProximoContato = ptbr.ToISOString(proximo)
				dias := diffInDays(proximo, time.Now())
				result.DiasAteFollowup = &dias
				switch {
				case dias < 0:
					result.StatusFollowup = "Atrasado"
				case dias == 0:
					result.StatusFollowup = "Hoje"
				default:
					result.StatusFollowup = "Ok"
				}
			}
		}
	}

	var comPerc float64
	if result.ComissaoPercentual != nil && isFinite(*result.ComissaoPercentual) {
		comPerc = *result.ComissaoPercentual
	} else {
		comPerc = GetComissaoPercent(params, produtoDestino, result.Produto)
	}
	result.ComissaoPercentual = &comPerc
	if !isFinite(result.Comissao) || result.Comissao == 0 {
		result.Comissao = round2(result.ValorLiquido * comPerc)
	}

	if result.Contrato == "" && result.ContratoID == "" {
		autoContrato := GerarIDUnicoParaContrato(result.Documento, seqAtual, ctx.ReferenceDate)
		result.ContratoAutoGerado = true
		result.ContratoID = autoContrato
		result.Contrato = autoContrato
	} else if result.Contrato == "" {
		result.Contrato = result.ContratoID
	}

	observacaoAtual := result.Observacoes
	if observacaoAtual == "" {
		observacaoAtual = strings.TrimSpace(obsRaw.String())
	}
	notas := append([]string{}, ctx.NotasAdicionais...)
	if upsell != "" {
		notas = append(notas, "Upsell sugerido: "+upsell)
	}
	result.Observacoes = appendObservacao(observacaoAtual, notas)

	return result
}

// AplicarRegrasComerciais aplica as regras a cada registro do lote em ordem,
// encadeando o contador de sequência dos contratos sintéticos. O contador
// avança exatamente uma vez por registro; lotes concorrentes não podem
// compartilhar a mesma base.
func AplicarRegrasComerciais(registros []domain.RegistroNormalizado, ctx Contexto) []domain.RegistroNormalizado {
	if len(registros) == 0 {
		return nil
	}

	sequencia := ctx.SeqInicial
	if sequencia < 1 {
		sequencia = 1
	}

	enriched := make([]domain.RegistroNormalizado, 0, len(registros))
	for _, registro := range registros {
		enriched = append(enriched, AplicarRegrasComerciaisAoRegistro(registro, ctx, sequencia))
		sequencia++
	}
	return enriched
}
