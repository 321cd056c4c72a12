// internal/core/ptbr/ptbr.go
package ptbr

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jdcredvip/crm-backend/internal/domain"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]`)
	currencyNoiseRegex   = regexp.MustCompile(`(?i)[r$\s]`)
	percentNoiseRegex    = regexp.MustCompile(`[%\s]`)
	dayFirstRegex        = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
)

// StripAccents remove os diacríticos de uma string via decomposição NFD.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeKey normaliza um cabeçalho de coluna para comparação com os
// alias sets: minúsculas, sem acentos, só [a-z0-9]. A mesma função precisa
// ser aplicada na construção dos aliases e no cabeçalho em runtime, senão a
// resolução falha em silêncio.
func NormalizeKey(s string) string {
	return nonAlphanumericRegex.ReplaceAllString(StripAccents(strings.ToLower(s)), "")
}

// NormalizeText normaliza texto livre para busca por substring: minúsculas e
// sem acentos, preservando espaços e pontuação.
func NormalizeText(s string) string {
	return StripAccents(strings.ToLower(strings.TrimSpace(s)))
}

// ParseCurrency converte um valor de planilha em número seguindo a convenção
// brasileira: "R$" e espaços são descartados; com "," e "." juntos, "." é
// separador de milhar; só "," é separador decimal. Valor não interpretável
// vira fallback, nunca erro.
func ParseCurrency(v domain.Valor, fallback float64) float64 {
	switch v.Kind {
	case domain.ValorNumero:
		if !math.IsNaN(v.Numero) && !math.IsInf(v.Numero, 0) {
			return v.Numero
		}
		return fallback
	case domain.ValorTexto:
		return ParseCurrencyText(v.Texto, fallback)
	default:
		return fallback
	}
}

// ParseCurrencyText é ParseCurrency para entradas já textuais.
func ParseCurrencyText(texto string, fallback float64) float64 {
	text := strings.TrimSpace(texto)
	if text == "" {
		return fallback
	}

	text = currencyNoiseRegex.ReplaceAllString(text, "")

	hasComma := strings.Contains(text, ",")
	hasDot := strings.Contains(text, ".")

	if hasComma && hasDot {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	} else if hasComma {
		text = strings.ReplaceAll(text, ",", ".")
	}

	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return fallback
	}
	return parsed
}

// ParsePercent interpreta uma coluna percentual. Entradas acima de 1 são
// lidas como percentual cheio ("12" significa 12%) e divididas por 100;
// o resultado é sempre uma fração arredondada a 6 casas. Devolve nil quando
// o valor não é interpretável.
func ParsePercent(v domain.Valor) *float64 {
	var text string
	switch v.Kind {
	case domain.ValorNumero:
		text = strconv.FormatFloat(v.Numero, 'f', -1, 64)
	case domain.ValorTexto:
		text = v.Texto
	default:
		return nil
	}

	text = percentNoiseRegex.ReplaceAllString(text, "")
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", ".")

	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil
	}
	if parsed > 1 {
		parsed = parsed / 100
	}
	rounded := math.Round(parsed*1e6) / 1e6
	return &rounded
}

// excelEpochOffset é o dia zero do Excel em dias antes da época Unix.
const excelEpochOffset = 25569

// ParseDate interpreta datas de planilha: instâncias de data, seriais do
// Excel, timestamps em milissegundos, strings ISO e os formatos DD/MM/YYYY
// ou DD-MM-YYYY. Datas com barra são sempre dia-primeiro (convenção
// brasileira); anos de dois dígitos viram 20XX.
func ParseDate(v domain.Valor) (time.Time, bool) {
	switch v.Kind {
	case domain.ValorData:
		return v.Data.UTC(), true
	case domain.ValorNumero:
		if v.Numero > 1_000_000_000_000 {
			return time.UnixMilli(int64(math.Round(v.Numero))).UTC(), true
		}
		ms := math.Round((v.Numero - excelEpochOffset) * 86400 * 1000)
		return time.UnixMilli(int64(ms)).UTC(), true
	case domain.ValorTexto:
		return ParseDateText(v.Texto)
	default:
		return time.Time{}, false
	}
}

// ParseDateText é ParseDate para entradas textuais.
func ParseDateText(texto string) (time.Time, bool) {
	text := strings.TrimSpace(texto)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}

	if m := dayFirstRegex.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		yearText := m[3]
		if len(yearText) == 2 {
			yearText = "20" + yearText
		}
		year, _ := strconv.Atoi(yearText)
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Year() == year && int(t.Month()) == month && t.Day() == day {
			return t, true
		}
	}

	return time.Time{}, false
}

// ToISOString formata uma data no padrão persistido nos registros.
func ToISOString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type promotoraHint struct {
	nome   string
	tokens []string
}

// Tabela de detecção por substring. Mais ampla que os aliases exatos do
// mapeamento: inclui a própria casa.
var promotoraHints = []promotoraHint{
	{nome: "Nexxo", tokens: []string{"nexxo", "nx"}},
	{nome: "WorkBank", tokens: []string{"workbank", "work bank", "work-bank", "wb"}},
	{nome: "Yuppie", tokens: []string{"yuppie"}},
	{nome: "JD CRED VIP", tokens: []string{"jdcred", "jd_cred", "jd cred"}},
}

// DetectPromotoraFromFilename tenta identificar a promotora pelo nome do
// arquivo. Devolve "" quando nenhum indício bate.
func DetectPromotoraFromFilename(filename string) string {
	lower := NormalizeText(filename)
	for _, hint := range promotoraHints {
		for _, token := range hint.tokens {
			if strings.Contains(lower, token) {
				return hint.nome
			}
		}
	}
	return ""
}

// DetectPromotoraFromValue identifica a promotora num valor de coluna.
// Nome desconhecido passa adiante como veio (aparado), nunca é rejeitado.
func DetectPromotoraFromValue(value string) string {
	text := NormalizeText(value)
	for _, hint := range promotoraHints {
		for _, token := range hint.tokens {
			if strings.Contains(text, token) {
				return hint.nome
			}
		}
	}
	return strings.TrimSpace(value)
}

// SummarizeColumns lista os cabeçalhos distintos de um conjunto de linhas,
// na ordem em que aparecem, limitado para não inflar os metadados.
func SummarizeColumns(rows []*domain.RawRow, limit int) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for _, c := range row.Celulas() {
			if !seen[c.Chave] {
				seen[c.Chave] = true
				columns = append(columns, c.Chave)
			}
		}
	}
	if limit > 0 && len(columns) > limit {
		columns = columns[:limit]
	}
	return columns
}

var filenameUnsafeRegex = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeFilename higieniza um nome de arquivo enviado pelo usuário.
func SafeFilename(name string) string {
	base := StripAccents(strings.Join(strings.Fields(name), "-"))
	cleaned := filenameUnsafeRegex.ReplaceAllString(base, "")
	if cleaned == "" {
		return "arquivo"
	}
	return cleaned
}
