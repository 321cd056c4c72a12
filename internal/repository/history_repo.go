package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIdentificadorInvalido indica um id de importação não positivo.
	ErrIdentificadorInvalido = errors.New("identificador de importação inválido")
	// ErrImportacaoNaoEncontrada indica que nenhum relatório corresponde ao id.
	ErrImportacaoNaoEncontrada = errors.New("importação não encontrada")
)

// HistoryRepo administra o histórico de importações: relatórios, linhas de
// histórico e a remoção em cascata pelas duas tabelas via nome do arquivo.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// RelatorioImportado é o resumo gravado ao final de cada importação persistida.
type RelatorioImportado struct {
	Filename       string
	Promotora      string
	TotalRegistros int
	VolumeBruto    float64
	VolumeTotal    float64
	ComissaoTotal  float64
	Metadata       map[string]any
}

// RegistrarImportacao grava o relatório e a linha de histórico de um upload.
func (r *HistoryRepo) RegistrarImportacao(rel RelatorioImportado) error {
	metadata := "{}"
	if rel.Metadata != nil {
		b, err := json.Marshal(rel.Metadata)
		if err != nil {
			return fmt.Errorf("serializar metadata: %w", err)
		}
		metadata = string(b)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("iniciar transação: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO imported_reports
		(filename, promotora, total_registros, volume_total, comissao_total, metadata)
		VALUES (?,?,?,?,?,?)`,
		rel.Filename, nullIfEmpty(rel.Promotora), rel.TotalRegistros,
		rel.VolumeTotal, rel.ComissaoTotal, metadata,
	); err != nil {
		return fmt.Errorf("inserir relatório: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO import_history
		(arquivo, promotora, registros, volume_bruto, volume_liquido, comissao)
		VALUES (?,?,?,?,?,?)`,
		rel.Filename, nullIfEmpty(rel.Promotora), rel.TotalRegistros,
		rel.VolumeBruto, rel.VolumeTotal, rel.ComissaoTotal,
	); err != nil {
		return fmt.Errorf("inserir histórico: %w", err)
	}

	return tx.Commit()
}

// FiltroHistorico parametriza a listagem paginada do histórico.
type FiltroHistorico struct {
	Limit     int
	Offset    int
	Promotora string
}

// ItemHistorico é uma linha do histórico de importações.
type ItemHistorico struct {
	ID             int64          `json:"id"`
	Filename       string         `json:"filename"`
	Promotora      string         `json:"promotora"`
	TotalRegistros int            `json:"totalRegistros"`
	VolumeTotal    float64        `json:"volumeTotal"`
	ComissaoTotal  float64        `json:"comissaoTotal"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      string         `json:"createdAt"`
}

// HistoricoImportacoes é o resultado paginado da listagem.
type HistoricoImportacoes struct {
	Total int             `json:"total"`
	Itens []ItemHistorico `json:"itens"`
}

// ListarHistorico lista os relatórios importados, mais recentes primeiro.
// O limite é saturado em 200.
func (r *HistoryRepo) ListarHistorico(f FiltroHistorico) (*HistoricoImportacoes, error) {
	where := ""
	var args []any
	if p := strings.TrimSpace(f.Promotora); p != "" {
		where = " WHERE promotora = ?"
		args = append(args, p)
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM imported_reports"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("contar histórico: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT id, filename, COALESCE(promotora, ''), total_registros,
		        volume_total, comissao_total, COALESCE(metadata, '{}'), created_at
		 FROM imported_reports`+where+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listar histórico: %w", err)
	}
	defer rows.Close()

	resultado := &HistoricoImportacoes{Total: total, Itens: []ItemHistorico{}}
	for rows.Next() {
		var item ItemHistorico
		var metadata string
		if err := rows.Scan(
			&item.ID, &item.Filename, &item.Promotora, &item.TotalRegistros,
			&item.VolumeTotal, &item.ComissaoTotal, &metadata, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ler linha do histórico: %w", err)
		}
		item.VolumeTotal = round2(item.VolumeTotal)
		item.ComissaoTotal = round2(item.ComissaoTotal)
		if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
			item.Metadata = map[string]any{}
		}
		resultado.Itens = append(resultado.Itens, item)
	}
	return resultado, rows.Err()
}

// RemocaoImportacao detalha o efeito em cascata da remoção de um relatório.
type RemocaoImportacao struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Promotora string `json:"promotora"`
	Reports   int    `json:"reports"`
	Records   int    `json:"records"`
	History   int    `json:"history"`
}

// RemoverImportacao apaga um relatório e, pelo nome do arquivo, os registros
// e o histórico que ele originou.
func (r *HistoryRepo) RemoverImportacao(id int64) (*RemocaoImportacao, error) {
	if id <= 0 {
		return nil, ErrIdentificadorInvalido
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("iniciar transação: %w", err)
	}
	defer tx.Rollback()

	detalhes, err := removerImportacaoTx(tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return detalhes, nil
}

// RemoverSelecionadas apaga um conjunto de relatórios na mesma transação.
// Ids repetidos ou não positivos são ignorados.
func (r *HistoryRepo) RemoverSelecionadas(ids []int64) ([]RemocaoImportacao, error) {
	vistos := make(map[int64]struct{}, len(ids))
	var validos []int64
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := vistos[id]; ok {
			continue
		}
		vistos[id] = struct{}{}
		validos = append(validos, id)
	}
	if len(validos) == 0 {
		return nil, ErrIdentificadorInvalido
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("iniciar transação: %w", err)
	}
	defer tx.Rollback()

	var removidos []RemocaoImportacao
	for _, id := range validos {
		detalhes, err := removerImportacaoTx(tx, id)
		if err != nil {
			if errors.Is(err, ErrImportacaoNaoEncontrada) {
				continue
			}
			return nil, err
		}
		removidos = append(removidos, *detalhes)
	}
	if len(removidos) == 0 {
		return nil, ErrImportacaoNaoEncontrada
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return removidos, nil
}

func removerImportacaoTx(tx *sql.Tx, id int64) (*RemocaoImportacao, error) {
	detalhes := &RemocaoImportacao{ID: id}
	err := tx.QueryRow(
		"SELECT filename, COALESCE(promotora, '') FROM imported_reports WHERE id = ?", id,
	).Scan(&detalhes.Filename, &detalhes.Promotora)
	if err == sql.ErrNoRows {
		return nil, ErrImportacaoNaoEncontrada
	}
	if err != nil {
		return nil, fmt.Errorf("buscar relatório %d: %w", id, err)
	}

	res, err := tx.Exec("DELETE FROM imported_reports WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("remover relatório %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	detalhes.Reports = int(n)

	if detalhes.Filename != "" {
		res, err = tx.Exec("DELETE FROM imported_records WHERE arquivo = ?", detalhes.Filename)
		if err != nil {
			return nil, fmt.Errorf("remover registros de %s: %w", detalhes.Filename, err)
		}
		n, _ = res.RowsAffected()
		detalhes.Records = int(n)

		res, err = tx.Exec("DELETE FROM import_history WHERE arquivo = ?", detalhes.Filename)
		if err != nil {
			return nil, fmt.Errorf("remover histórico de %s: %w", detalhes.Filename, err)
		}
		n, _ = res.RowsAffected()
		detalhes.History = int(n)
	}

	return detalhes, nil
}

// LimparImportacoes apaga todo o histórico de importação, incluindo os logs
// de integração do módulo, e devolve a contagem removida por tabela.
func (r *HistoryRepo) LimparImportacoes() (map[string]int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("iniciar transação: %w", err)
	}
	defer tx.Rollback()

	removidos := map[string]int{}
	for _, table := range []string{"imported_records", "imported_reports", "import_history"} {
		var total int
		if err := tx.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&total); err != nil {
			return nil, fmt.Errorf("contar %s: %w", table, err)
		}
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return nil, fmt.Errorf("limpar %s: %w", table, err)
		}
		removidos[table] = total
	}

	var totalLogs int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM integration_logs WHERE integracao = 'importacao'",
	).Scan(&totalLogs); err != nil {
		return nil, fmt.Errorf("contar logs: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM integration_logs WHERE integracao = 'importacao'"); err != nil {
		return nil, fmt.Errorf("limpar logs: %w", err)
	}
	removidos["integration_logs"] = totalLogs

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return removidos, nil
}
