package importacao

import (
	"strings"
	"testing"

	"github.com/jdcredvip/crm-backend/internal/core/mapping"
	"github.com/jdcredvip/crm-backend/internal/domain"
)

type celulaTeste struct {
	chave string
	valor domain.Valor
}

func linhaDe(celulas ...celulaTeste) *domain.RawRow {
	row := domain.NewRawRow()
	for _, c := range celulas {
		row.Set(c.chave, c.valor)
	}
	return row
}

func TestImportarRegistros(t *testing.T) {
	svc := NewService(mapping.DefaultConfig())

	linha := linhaDe(
		celulaTeste{"Nome do Cliente", domain.Texto("João Lima")},
		celulaTeste{"CPF", domain.Texto("123.456.789-09")},
		celulaTeste{"Contrato", domain.Texto("CT-001")},
		celulaTeste{"Produto", domain.Texto("FGTS")},
		celulaTeste{"Etapa", domain.Texto("Pago")},
		celulaTeste{"Valor Líquido", domain.Texto("1.234,56")},
		celulaTeste{"Comissão", domain.Texto("650,50")},
		celulaTeste{"Comissão (%)", domain.Texto("12")},
		celulaTeste{"Data Pagamento", domain.Texto("05/03/2024")},
	)

	resultado, err := svc.ImportarRegistros([]*domain.RawRow{linha}, Options{
		Filename:      "relatorio.xlsx",
		PromotoraHint: "Yuppie",
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if len(resultado.Registros) != 1 {
		t.Fatalf("esperava 1 registro, obteve %d", len(resultado.Registros))
	}

	registro := resultado.Registros[0]

	t.Run("Campos canônicos", func(t *testing.T) {
		if registro.Cliente != "João Lima" {
			t.Errorf("Cliente = %q", registro.Cliente)
		}
		if registro.Documento != "12345678909" {
			t.Errorf("Documento = %q, esperava só dígitos", registro.Documento)
		}
		if registro.ContratoID != "CT-001" {
			t.Errorf("ContratoID = %q", registro.ContratoID)
		}
		if registro.Produto != "FGTS" || registro.ProdutoOriginal != "FGTS" {
			t.Errorf("Produto = %q / ProdutoOriginal = %q", registro.Produto, registro.ProdutoOriginal)
		}
		if registro.Status != "Pago" {
			t.Errorf("Status = %q", registro.Status)
		}
		if registro.Promotora != "Yuppie" {
			t.Errorf("Promotora = %q, esperava Yuppie", registro.Promotora)
		}
	})

	t.Run("Valores monetários", func(t *testing.T) {
		if registro.ValorLiquido != 1234.56 {
			t.Errorf("ValorLiquido = %v", registro.ValorLiquido)
		}
		if registro.Comissao != 650.5 {
			t.Errorf("Comissao = %v, a coluna percentual não pode ser lida como valor", registro.Comissao)
		}
		if registro.ComissaoPercentual == nil || *registro.ComissaoPercentual != 0.12 {
			t.Errorf("ComissaoPercentual = %v, esperava 0.12", registro.ComissaoPercentual)
		}
	})

	t.Run("Datas", func(t *testing.T) {
		if registro.DataReferencia != "2024-03-05T00:00:00Z" {
			t.Errorf("DataReferencia = %q", registro.DataReferencia)
		}
		if registro.DataPagamento != registro.DataReferencia {
			t.Errorf("DataPagamento = %q, esperava igual à referência", registro.DataPagamento)
		}
	})

	t.Run("Resumo", func(t *testing.T) {
		resumo := resultado.Resumo
		if resumo.TotalRegistros != 1 {
			t.Errorf("TotalRegistros = %d", resumo.TotalRegistros)
		}
		if resumo.VolumeTotal != 1234.56 {
			t.Errorf("VolumeTotal = %v", resumo.VolumeTotal)
		}
		if resumo.ComissaoTotal != 650.5 {
			t.Errorf("ComissaoTotal = %v", resumo.ComissaoTotal)
		}
		if resumo.Promotora != "Yuppie" {
			t.Errorf("Promotora = %q", resumo.Promotora)
		}
		if len(resumo.Produtos) != 1 || resumo.Produtos[0].Produto != "FGTS" || resumo.Produtos[0].Volume != 1234.56 {
			t.Errorf("Produtos = %v", resumo.Produtos)
		}
		if len(resumo.ColunasReconhecidas) != linha.Len() {
			t.Errorf("ColunasReconhecidas = %v", resumo.ColunasReconhecidas)
		}
	})
}

func TestImportarRegistrosLoteVazio(t *testing.T) {
	svc := NewService(mapping.DefaultConfig())

	_, err := svc.ImportarRegistros(nil, Options{})
	if err == nil {
		t.Fatal("lote vazio deveria falhar")
	}
	if !strings.Contains(err.Error(), "nenhum dado encontrado") {
		t.Errorf("mensagem inesperada: %v", err)
	}
}

func TestImportarRegistrosFallbacks(t *testing.T) {
	svc := NewService(mapping.DefaultConfig())

	t.Run("Líquido ausente cai no bruto", func(t *testing.T) {
		linha := linhaDe(
			celulaTeste{"Cliente", domain.Texto("Ana")},
			celulaTeste{"Valor Bruto", domain.Texto("2.000,00")},
		)
		resultado, err := svc.ImportarRegistros([]*domain.RawRow{linha}, Options{})
		if err != nil {
			t.Fatalf("erro inesperado: %v", err)
		}
		registro := resultado.Registros[0]
		if registro.ValorLiquido != 2000 {
			t.Errorf("ValorLiquido = %v, esperava o bruto", registro.ValorLiquido)
		}
		if registro.ValorBruto != 2000 {
			t.Errorf("ValorBruto = %v", registro.ValorBruto)
		}
		if resultado.Resumo.VolumeTotal != 2000 {
			t.Errorf("VolumeTotal = %v", resultado.Resumo.VolumeTotal)
		}
	})

	t.Run("Contrato cai na ADE", func(t *testing.T) {
		linha := linhaDe(
			celulaTeste{"Cliente", domain.Texto("Bruno")},
			celulaTeste{"ADE", domain.Texto("ADE-77")},
		)
		resultado, err := svc.ImportarRegistros([]*domain.RawRow{linha}, Options{})
		if err != nil {
			t.Fatalf("erro inesperado: %v", err)
		}
		if got := resultado.Registros[0].ContratoID; got != "ADE-77" {
			t.Errorf("ContratoID = %q, esperava ADE-77", got)
		}
	})

	t.Run("Promotora sai do arquivo quando não há coluna nem hint", func(t *testing.T) {
		linha := linhaDe(celulaTeste{"Cliente", domain.Texto("Carla")})
		resultado, err := svc.ImportarRegistros([]*domain.RawRow{linha}, Options{
			Filename: "producao-workbank-abril.xlsx",
		})
		if err != nil {
			t.Fatalf("erro inesperado: %v", err)
		}
		if resultado.Resumo.Promotora != "WorkBank" {
			t.Errorf("Promotora do resumo = %q, esperava WorkBank", resultado.Resumo.Promotora)
		}
	})

	t.Run("Sem nenhum indício a promotora é Desconhecida", func(t *testing.T) {
		linha := linhaDe(celulaTeste{"Cliente", domain.Texto("Davi")})
		resultado, err := svc.ImportarRegistros([]*domain.RawRow{linha}, Options{Filename: "planilha.xlsx"})
		if err != nil {
			t.Fatalf("erro inesperado: %v", err)
		}
		if resultado.Resumo.Promotora != "Desconhecida" {
			t.Errorf("Promotora = %q", resultado.Resumo.Promotora)
		}
	})
}

func TestPickValue(t *testing.T) {
	cfg := mapping.DefaultConfig()

	linha := linhaDe(
		celulaTeste{"Comissão (%)", domain.Texto("12")},
		celulaTeste{"Valor Comissão", domain.Texto("650,50")},
	)

	t.Run("requirePercent só aceita coluna percentual", func(t *testing.T) {
		v, ok := pickValue(linha, cfg.Aliases.Comissao, nil, pickOptions{requirePercent: true})
		if !ok || v.String() != "12" {
			t.Errorf("esperava a coluna percentual, obteve %v (ok=%v)", v, ok)
		}
	})

	t.Run("preferCurrency com excludePercent pula o percentual", func(t *testing.T) {
		v, ok := pickValue(linha, cfg.Aliases.Comissao, nil, pickOptions{preferCurrency: true, excludePercent: true})
		if !ok || v.String() != "650,50" {
			t.Errorf("esperava a coluna monetária, obteve %v (ok=%v)", v, ok)
		}
	})

	t.Run("Sem flags vence a primeira coluna da planilha", func(t *testing.T) {
		v, ok := pickValue(linha, cfg.Aliases.Comissao, nil, pickOptions{})
		if !ok || v.String() != "12" {
			t.Errorf("esperava a primeira coluna na ordem da planilha, obteve %v (ok=%v)", v, ok)
		}
	})

	t.Run("Células vazias são ignoradas", func(t *testing.T) {
		vazia := linhaDe(
			celulaTeste{"Comissão", domain.Vazio()},
			celulaTeste{"Valor Comissão", domain.Texto("10")},
		)
		v, ok := pickValue(vazia, cfg.Aliases.Comissao, nil, pickOptions{})
		if !ok || v.String() != "10" {
			t.Errorf("esperava pular a célula vazia, obteve %v (ok=%v)", v, ok)
		}
	})
}

func TestImportarPlanilhaCSV(t *testing.T) {
	svc := NewService(mapping.DefaultConfig())

	csv := "Nome do Cliente;CPF;Valor Líquido\nJoão;123.456.789-09;1.234,56\n"
	resultado, err := svc.ImportarPlanilha(strings.NewReader(csv), "relatorio.csv", Options{
		Filename: "relatorio.csv",
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if len(resultado.Registros) != 1 {
		t.Fatalf("esperava 1 registro, obteve %d", len(resultado.Registros))
	}

	registro := resultado.Registros[0]
	if registro.Cliente != "João" {
		t.Errorf("Cliente = %q", registro.Cliente)
	}
	if registro.Documento != "12345678909" {
		t.Errorf("Documento = %q", registro.Documento)
	}
	if registro.ValorLiquido != 1234.56 {
		t.Errorf("ValorLiquido = %v", registro.ValorLiquido)
	}
}

func TestImportarPlanilhaVazia(t *testing.T) {
	svc := NewService(mapping.DefaultConfig())

	_, err := svc.ImportarPlanilha(strings.NewReader("Cliente;CPF\n"), "vazia.csv", Options{})
	if err == nil {
		t.Fatal("planilha só com cabeçalho deveria falhar")
	}
}

func TestSugerirColunas(t *testing.T) {
	svc := NewService(mapping.DefaultConfig())

	sugestoes := svc.SugerirColunas([]string{"valr_liquido", "Cliente"})

	if _, ok := sugestoes["Cliente"]; ok {
		t.Error("coluna reconhecida não deveria receber sugestão")
	}
	if sugestoes["valr_liquido"] == "" {
		t.Error("esperava sugestão para o cabeçalho com erro de digitação")
	}
}
