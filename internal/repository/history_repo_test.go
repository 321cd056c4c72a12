package repository

import (
	"errors"
	"testing"
)

func relatorioTeste(filename, promotora string) RelatorioImportado {
	return RelatorioImportado{
		Filename:       filename,
		Promotora:      promotora,
		TotalRegistros: 3,
		VolumeBruto:    3000,
		VolumeTotal:    2800,
		ComissaoTotal:  280,
		Metadata: map[string]any{
			"colunasReconhecidas": []string{"cliente", "cpf"},
		},
	}
}

func TestListarHistorico(t *testing.T) {
	db := novoBanco(t)
	repo := NewHistoryRepo(db)

	if err := repo.RegistrarImportacao(relatorioTeste("a.xlsx", "Nexxo")); err != nil {
		t.Fatalf("erro ao registrar: %v", err)
	}
	if err := repo.RegistrarImportacao(relatorioTeste("b.xlsx", "Yuppie")); err != nil {
		t.Fatalf("erro ao registrar: %v", err)
	}

	historico, err := repo.ListarHistorico(FiltroHistorico{})
	if err != nil {
		t.Fatalf("erro ao listar: %v", err)
	}
	if historico.Total != 2 || len(historico.Itens) != 2 {
		t.Fatalf("Total = %d, itens = %d, esperava 2 e 2", historico.Total, len(historico.Itens))
	}

	item := historico.Itens[0]
	if item.TotalRegistros != 3 || item.VolumeTotal != 2800 || item.ComissaoTotal != 280 {
		t.Errorf("item = %+v", item)
	}
	if item.Metadata["colunasReconhecidas"] == nil {
		t.Error("metadata deveria preservar as colunas reconhecidas")
	}

	t.Run("Filtro por promotora", func(t *testing.T) {
		filtrado, err := repo.ListarHistorico(FiltroHistorico{Promotora: "Nexxo"})
		if err != nil {
			t.Fatal(err)
		}
		if filtrado.Total != 1 || len(filtrado.Itens) != 1 {
			t.Fatalf("esperava 1 item para a Nexxo, obteve %d", len(filtrado.Itens))
		}
		if filtrado.Itens[0].Filename != "a.xlsx" {
			t.Errorf("filename = %q", filtrado.Itens[0].Filename)
		}
	})

	t.Run("Limite é saturado em 200", func(t *testing.T) {
		if _, err := repo.ListarHistorico(FiltroHistorico{Limit: 9999}); err != nil {
			t.Errorf("limite alto não deveria falhar: %v", err)
		}
	})
}

func TestRemoverImportacao(t *testing.T) {
	db := novoBanco(t)
	repo := NewHistoryRepo(db)

	if err := repo.RegistrarImportacao(relatorioTeste("a.xlsx", "Nexxo")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		"INSERT INTO imported_records (fonte, arquivo, cliente_nome) VALUES ('nexxo', 'a.xlsx', 'Maria')",
	); err != nil {
		t.Fatal(err)
	}

	historico, err := repo.ListarHistorico(FiltroHistorico{})
	if err != nil {
		t.Fatal(err)
	}
	id := historico.Itens[0].ID

	detalhes, err := repo.RemoverImportacao(id)
	if err != nil {
		t.Fatalf("erro ao remover: %v", err)
	}
	if detalhes.Reports != 1 || detalhes.Records != 1 || detalhes.History != 1 {
		t.Errorf("detalhes = %+v, esperava cascata completa", detalhes)
	}

	var restantes int
	if err := db.QueryRow("SELECT COUNT(*) FROM imported_records").Scan(&restantes); err != nil {
		t.Fatal(err)
	}
	if restantes != 0 {
		t.Errorf("registros restantes = %d, esperava 0", restantes)
	}

	t.Run("Id inexistente", func(t *testing.T) {
		if _, err := repo.RemoverImportacao(9999); !errors.Is(err, ErrImportacaoNaoEncontrada) {
			t.Errorf("erro = %v, esperava ErrImportacaoNaoEncontrada", err)
		}
	})

	t.Run("Id inválido", func(t *testing.T) {
		if _, err := repo.RemoverImportacao(0); !errors.Is(err, ErrIdentificadorInvalido) {
			t.Errorf("erro = %v, esperava ErrIdentificadorInvalido", err)
		}
	})
}

func TestRemoverSelecionadas(t *testing.T) {
	db := novoBanco(t)
	repo := NewHistoryRepo(db)

	for _, nome := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		if err := repo.RegistrarImportacao(relatorioTeste(nome, "Nexxo")); err != nil {
			t.Fatal(err)
		}
	}

	historico, err := repo.ListarHistorico(FiltroHistorico{})
	if err != nil {
		t.Fatal(err)
	}
	ids := []int64{historico.Itens[0].ID, historico.Itens[1].ID, historico.Itens[0].ID, -4}

	removidos, err := repo.RemoverSelecionadas(ids)
	if err != nil {
		t.Fatalf("erro ao remover selecionadas: %v", err)
	}
	if len(removidos) != 2 {
		t.Errorf("removidos = %d, esperava 2 (duplicata e id inválido ignorados)", len(removidos))
	}

	restante, err := repo.ListarHistorico(FiltroHistorico{})
	if err != nil {
		t.Fatal(err)
	}
	if restante.Total != 1 {
		t.Errorf("restantes = %d, esperava 1", restante.Total)
	}

	t.Run("Sem ids válidos", func(t *testing.T) {
		if _, err := repo.RemoverSelecionadas([]int64{0, -1}); !errors.Is(err, ErrIdentificadorInvalido) {
			t.Errorf("erro = %v, esperava ErrIdentificadorInvalido", err)
		}
	})
}

func TestLimparImportacoes(t *testing.T) {
	db := novoBanco(t)
	repo := NewHistoryRepo(db)
	audit := NewAuditRepo(db)

	if err := repo.RegistrarImportacao(relatorioTeste("a.xlsx", "Nexxo")); err != nil {
		t.Fatal(err)
	}
	if err := audit.Registrar("importacao", "upload", "sucesso", "Importacao a.xlsx", nil); err != nil {
		t.Fatal(err)
	}
	// Log de outra integração não pode ser tocado pela limpeza.
	if err := audit.Registrar("crefaz", "sync", "sucesso", "ok", nil); err != nil {
		t.Fatal(err)
	}

	removidos, err := repo.LimparImportacoes()
	if err != nil {
		t.Fatalf("erro ao limpar: %v", err)
	}
	if removidos["imported_reports"] != 1 || removidos["import_history"] != 1 {
		t.Errorf("removidos = %v", removidos)
	}
	if removidos["integration_logs"] != 1 {
		t.Errorf("logs removidos = %d, esperava só os da importação", removidos["integration_logs"])
	}

	var outros int
	if err := db.QueryRow("SELECT COUNT(*) FROM integration_logs").Scan(&outros); err != nil {
		t.Fatal(err)
	}
	if outros != 1 {
		t.Errorf("logs restantes = %d, o log da crefaz deveria sobreviver", outros)
	}
}
