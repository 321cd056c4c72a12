package ptbr

import (
	"testing"
	"time"

	"github.com/jdcredvip/crm-backend/internal/domain"
)

func TestNormalizeKey(t *testing.T) {
	casos := []struct {
		entrada  string
		esperado string
	}{
		{"Valor Líquido", "valorliquido"},
		{"CONTRATO_ADE", "contratoade"},
		{"Comissão (%)", "comissao"},
		{"  cpf  ", "cpf"},
		{"", ""},
	}

	for _, caso := range casos {
		if got := NormalizeKey(caso.entrada); got != caso.esperado {
			t.Errorf("NormalizeKey(%q) = %q, esperava %q", caso.entrada, got, caso.esperado)
		}
	}
}

func TestStripAccents(t *testing.T) {
	if got := StripAccents("promoção à vista"); got != "promocao a vista" {
		t.Errorf("StripAccents = %q, esperava %q", got, "promocao a vista")
	}
}

func TestParseCurrencyText(t *testing.T) {
	casos := []struct {
		entrada  string
		esperado float64
	}{
		{"1.234,56", 1234.56},
		{"1234,56", 1234.56},
		{"R$ 50", 50},
		{"R$ 1.000.000,00", 1000000},
		{"12.5", 12.5},
		{"-150,75", -150.75},
	}

	for _, caso := range casos {
		if got := ParseCurrencyText(caso.entrada, 0); got != caso.esperado {
			t.Errorf("ParseCurrencyText(%q) = %v, esperava %v", caso.entrada, got, caso.esperado)
		}
	}

	t.Run("Entrada inválida usa fallback", func(t *testing.T) {
		if got := ParseCurrencyText("abc", 99); got != 99 {
			t.Errorf("esperava fallback 99, obteve %v", got)
		}
		if got := ParseCurrencyText("", 7); got != 7 {
			t.Errorf("esperava fallback 7, obteve %v", got)
		}
	})
}

func TestParsePercent(t *testing.T) {
	t.Run("Percentual cheio vira fração", func(t *testing.T) {
		got := ParsePercent(domain.Texto("12%"))
		if got == nil || *got != 0.12 {
			t.Fatalf("ParsePercent(12%%) = %v, esperava 0.12", got)
		}
	})

	t.Run("Fração decimal é preservada", func(t *testing.T) {
		got := ParsePercent(domain.Texto("0,12"))
		if got == nil || *got != 0.12 {
			t.Fatalf("ParsePercent(0,12) = %v, esperava 0.12", got)
		}
	})

	t.Run("Número acima de 1 é dividido por 100", func(t *testing.T) {
		got := ParsePercent(domain.Numero(12))
		if got == nil || *got != 0.12 {
			t.Fatalf("ParsePercent(12) = %v, esperava 0.12", got)
		}
	})

	t.Run("Valor vazio devolve nil", func(t *testing.T) {
		if got := ParsePercent(domain.Vazio()); got != nil {
			t.Fatalf("esperava nil, obteve %v", *got)
		}
	})
}

func TestParseDateText(t *testing.T) {
	t.Run("Barra é sempre dia primeiro", func(t *testing.T) {
		got, ok := ParseDateText("05/03/2024")
		if !ok {
			t.Fatal("esperava data válida")
		}
		if got.Day() != 5 || got.Month() != time.March || got.Year() != 2024 {
			t.Errorf("05/03/2024 = %v, esperava 5 de março de 2024", got)
		}
	})

	t.Run("ISO é aceito direto", func(t *testing.T) {
		got, ok := ParseDateText("2024-03-05")
		if !ok || got.Day() != 5 || got.Month() != time.March {
			t.Errorf("2024-03-05 = %v (ok=%v), esperava 5 de março", got, ok)
		}
	})

	t.Run("Ano de dois dígitos vira 20XX", func(t *testing.T) {
		got, ok := ParseDateText("05-03-24")
		if !ok || got.Year() != 2024 {
			t.Errorf("05-03-24 = %v (ok=%v), esperava ano 2024", got, ok)
		}
	})

	t.Run("Data impossível é rejeitada", func(t *testing.T) {
		if _, ok := ParseDateText("31/02/2024"); ok {
			t.Error("31/02/2024 não deveria ser aceita")
		}
		if _, ok := ParseDateText("sem data"); ok {
			t.Error("texto livre não deveria ser aceito")
		}
	})
}

func TestParseDateNumero(t *testing.T) {
	t.Run("Serial do Excel", func(t *testing.T) {
		got, ok := ParseDate(domain.Numero(45357))
		if !ok {
			t.Fatal("esperava data válida")
		}
		esperado := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
		if !got.Equal(esperado) {
			t.Errorf("serial 45357 = %v, esperava %v", got, esperado)
		}
	})

	t.Run("Timestamp em milissegundos", func(t *testing.T) {
		got, ok := ParseDate(domain.Numero(1709683200000))
		if !ok {
			t.Fatal("esperava data válida")
		}
		esperado := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
		if !got.Equal(esperado) {
			t.Errorf("timestamp = %v, esperava %v", got, esperado)
		}
	})
}

func TestDetectPromotora(t *testing.T) {
	t.Run("Pelo nome do arquivo", func(t *testing.T) {
		if got := DetectPromotoraFromFilename("relatorio-nexxo-marco.xlsx"); got != "Nexxo" {
			t.Errorf("esperava Nexxo, obteve %q", got)
		}
		if got := DetectPromotoraFromFilename("vendas.ods"); got != "" {
			t.Errorf("esperava vazio, obteve %q", got)
		}
	})

	t.Run("Pelo valor da coluna", func(t *testing.T) {
		if got := DetectPromotoraFromValue("WORK BANK"); got != "WorkBank" {
			t.Errorf("esperava WorkBank, obteve %q", got)
		}
		// Promotora desconhecida passa adiante como veio.
		if got := DetectPromotoraFromValue("  Alfa Promotora  "); got != "Alfa Promotora" {
			t.Errorf("esperava passthrough aparado, obteve %q", got)
		}
	})
}

func TestSummarizeColumns(t *testing.T) {
	linha1 := domain.NewRawRow()
	linha1.Set("Cliente", domain.Texto("A"))
	linha1.Set("CPF", domain.Texto("1"))
	linha2 := domain.NewRawRow()
	linha2.Set("CPF", domain.Texto("2"))
	linha2.Set("Valor", domain.Numero(10))

	colunas := SummarizeColumns([]*domain.RawRow{linha1, linha2}, 80)
	esperado := []string{"Cliente", "CPF", "Valor"}
	if len(colunas) != len(esperado) {
		t.Fatalf("esperava %d colunas, obteve %d (%v)", len(esperado), len(colunas), colunas)
	}
	for i := range esperado {
		if colunas[i] != esperado[i] {
			t.Errorf("coluna %d = %q, esperava %q", i, colunas[i], esperado[i])
		}
	}

	t.Run("Limite é aplicado", func(t *testing.T) {
		limitadas := SummarizeColumns([]*domain.RawRow{linha1, linha2}, 2)
		if len(limitadas) != 2 {
			t.Errorf("esperava 2 colunas, obteve %d", len(limitadas))
		}
	})
}

func TestSafeFilename(t *testing.T) {
	if got := SafeFilename("relatório março 2024.xlsx"); got != "relatorio-marco-2024.xlsx" {
		t.Errorf("SafeFilename = %q", got)
	}
	if got := SafeFilename("///"); got != "arquivo" {
		t.Errorf("esperava fallback 'arquivo', obteve %q", got)
	}
}
