package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jdcredvip/crm-backend/internal/core/mapping"
	"github.com/jdcredvip/crm-backend/internal/core/ptbr"
	"github.com/jdcredvip/crm-backend/internal/domain"
)

// ImportRepo grava lotes normalizados nas tabelas de registros, clientes e
// contratos, mantendo os totais acumulados por cliente.
type ImportRepo struct {
	db  *sql.DB
	cfg mapping.Config
}

func NewImportRepo(db *sql.DB) *ImportRepo {
	return &ImportRepo{db: db, cfg: mapping.DefaultConfig()}
}

// ResumoPersistencia reporta o efeito de um lote persistido.
type ResumoPersistencia struct {
	Inseridos     int     `json:"inseridos"`
	VolumeBruto   float64 `json:"volumeBruto"`
	VolumeLiquido float64 `json:"volumeLiquido"`
	Comissao      float64 `json:"comissao"`
}

var (
	digitosRegex    = regexp.MustCompile(`\D+`)
	convenioAliases = mapping.NewAliasSet("convenio", "conv", "parcela_convenio")
)

func sanitizeDocumento(value string) string {
	return digitosRegex.ReplaceAllString(value, "")
}

func findRawValue(raw *domain.RawRow, aliases mapping.AliasSet) string {
	for _, c := range raw.Celulas() {
		if aliases.Has(ptbr.NormalizeKey(c.Chave)) {
			return strings.TrimSpace(c.Valor.String())
		}
	}
	return ""
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*100) / 100
}

type preparedRecord struct {
	fonte              string
	arquivo            string
	batchID            string
	promotora          string
	clienteNome        string
	documento          string
	produto            string
	convenio           string
	contrato           string
	contratoAde        string
	banco              string
	status             string
	ultimoContato      string
	proximoContato     string
	diasAteFollowup    *int
	dataOperacao       string
	dataPagamento      string
	volumeBruto        float64
	volumeLiquido      float64
	comissaoValor      float64
	comissaoPercentual *float64
	observacoes        string
	rawJSON            string
}

func (r *ImportRepo) prepare(fonte, arquivo, promotora, batchID string, registro domain.RegistroNormalizado) preparedRecord {
	raw := registro.Raw

	contrato := registro.ContratoID
	if contrato == "" {
		contrato = registro.Contrato
	}
	if contrato == "" {
		contrato = findRawValue(raw, r.cfg.Aliases.Contrato)
	}
	if contrato == "" {
		contrato = findRawValue(raw, r.cfg.Aliases.ContratoAde)
	}

	contratoAde := registro.ContratoAde
	if contratoAde == "" {
		contratoAde = findRawValue(raw, r.cfg.Aliases.ContratoAde)
	}

	volumeBruto := round2(registro.ValorBruto)
	volumeLiquido := round2(registro.ValorLiquido)
	if volumeLiquido == 0 {
		volumeLiquido = volumeBruto
	}

	var comissaoPercentual *float64
	if registro.ComissaoPercentual != nil && !math.IsNaN(*registro.ComissaoPercentual) {
		p := math.Round(*registro.ComissaoPercentual*1e6) / 1e6
		comissaoPercentual = &p
	}

	registroPromotora := registro.Promotora
	if registroPromotora == "" {
		registroPromotora = promotora
	}

	clienteNome := registro.Cliente
	if clienteNome == "" {
		clienteNome = "Cliente sem nome"
	}

	dataOperacao := registro.DataReferencia
	dataPagamento := registro.DataPagamento
	if dataPagamento == "" {
		dataPagamento = dataOperacao
	}

	rawJSON := ""
	if raw != nil {
		if b, err := json.Marshal(raw); err == nil {
			rawJSON = string(b)
		}
	}

	return preparedRecord{
		fonte:              fonte,
		arquivo:            arquivo,
		batchID:            batchID,
		promotora:          registroPromotora,
		clienteNome:        clienteNome,
		documento:          sanitizeDocumento(registro.Documento),
		produto:            registro.Produto,
		convenio:           findRawValue(raw, convenioAliases),
		contrato:           strings.TrimSpace(contrato),
		contratoAde:        strings.TrimSpace(contratoAde),
		banco:              registro.Banco,
		status:             registro.Status,
		ultimoContato:      registro.UltimoContato,
		proximoContato:     registro.ProximoContato,
		diasAteFollowup:    registro.DiasAteFollowup,
		dataOperacao:       dataOperacao,
		dataPagamento:      dataPagamento,
		volumeBruto:        volumeBruto,
		volumeLiquido:      volumeLiquido,
		comissaoValor:      round2(registro.Comissao),
		comissaoPercentual: comissaoPercentual,
		observacoes:        registro.Observacoes,
		rawJSON:            rawJSON,
	}
}

// PersistirLoteNormalizado grava todos os registros do lote e atualiza os
// agregados de clientes e contratos na mesma transação. Lote vazio é um
// no-op com totais zerados.
func (r *ImportRepo) PersistirLoteNormalizado(fonte, arquivo, promotora, batchID string, registros []domain.RegistroNormalizado) (*ResumoPersistencia, error) {
	resumo := &ResumoPersistencia{}
	if len(registros) == 0 {
		return resumo, nil
	}

	sanitizedFonte := strings.ToLower(strings.TrimSpace(fonte))
	if sanitizedFonte == "" {
		sanitizedFonte = strings.ToLower(strings.TrimSpace(promotora))
	}
	if sanitizedFonte == "" {
		sanitizedFonte = "desconhecida"
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("iniciar transação: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO imported_records
		(fonte, origem, arquivo, source_file, import_batch_id, promotora,
		 cliente_nome, documento, produto, convenio, contrato, contrato_ade,
		 banco, status, status_comercial, ultimo_contato, proximo_contato,
		 dias_ate_followup, data_operacao, data_pagamento, volume_bruto,
		 volume_liquido, comissao_valor, comissao_percentual,
		 observacoes_estrategicas, raw)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("preparar insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for i := range registros {
		row := r.prepare(sanitizedFonte, arquivo, promotora, batchID, registros[i])

		var diasFollowup any
		if row.diasAteFollowup != nil {
			diasFollowup = *row.diasAteFollowup
		}
		var comissaoPercentual any
		if row.comissaoPercentual != nil {
			comissaoPercentual = *row.comissaoPercentual
		}

		if _, err := stmt.Exec(
			row.fonte, row.fonte, nullIfEmpty(row.arquivo), nullIfEmpty(row.arquivo),
			nullIfEmpty(row.batchID), nullIfEmpty(row.promotora),
			row.clienteNome, nullIfEmpty(row.documento), nullIfEmpty(row.produto),
			nullIfEmpty(row.convenio), nullIfEmpty(row.contrato), nullIfEmpty(row.contratoAde),
			nullIfEmpty(row.banco), nullIfEmpty(row.status), nullIfEmpty(row.status),
			nullIfEmpty(row.ultimoContato), nullIfEmpty(row.proximoContato),
			diasFollowup, nullIfEmpty(row.dataOperacao), nullIfEmpty(row.dataPagamento),
			row.volumeBruto, row.volumeLiquido, row.comissaoValor, comissaoPercentual,
			nullIfEmpty(row.observacoes), nullIfEmpty(row.rawJSON),
		); err != nil {
			return nil, fmt.Errorf("inserir registro %d: %w", i, err)
		}

		resumo.Inseridos++
		resumo.VolumeBruto += row.volumeBruto
		resumo.VolumeLiquido += row.volumeLiquido
		resumo.Comissao += row.comissaoValor

		clienteID, err := getOrCreateCliente(tx, row.clienteNome, row.documento, row.fonte, now)
		if err != nil {
			return nil, fmt.Errorf("cliente do registro %d: %w", i, err)
		}

		if err := touchClienteResumo(tx, clienteID, row.volumeLiquido, row.volumeBruto, row.comissaoValor, now); err != nil {
			return nil, fmt.Errorf("atualizar resumo do cliente %d: %w", clienteID, err)
		}

		if err := upsertContrato(tx, clienteID, row, now); err != nil {
			return nil, fmt.Errorf("contrato do registro %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	resumo.VolumeBruto = round2(resumo.VolumeBruto)
	resumo.VolumeLiquido = round2(resumo.VolumeLiquido)
	resumo.Comissao = round2(resumo.Comissao)
	return resumo, nil
}

func getOrCreateCliente(tx *sql.Tx, nome, documento, origem, now string) (int64, error) {
	if documento != "" {
		var id int64
		err := tx.QueryRow("SELECT id FROM clientes WHERE documento = ?", documento).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
	}

	if origem == "" {
		origem = "importacao"
	}
	res, err := tx.Exec(
		`INSERT INTO clientes (nome, documento, origem, created_at, ultima_atualizacao)
		 VALUES (?,?,?,?,?)`,
		nome, nullIfEmpty(documento), origem, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func touchClienteResumo(tx *sql.Tx, clienteID int64, volumeLiquido, volumeBruto, comissao float64, now string) error {
	_, err := tx.Exec(
		`UPDATE clientes SET
			volume_liquido_total = COALESCE(volume_liquido_total, 0) + ?,
			volume_bruto_total = COALESCE(volume_bruto_total, 0) + ?,
			comissao_total = COALESCE(comissao_total, 0) + ?,
			total_contratos = COALESCE(total_contratos, 0) + 1,
			ultima_atualizacao = ?
		 WHERE id = ?`,
		volumeLiquido, volumeBruto, comissao, now, clienteID,
	)
	return err
}

func upsertContrato(tx *sql.Tx, clienteID int64, row preparedRecord, now string) error {
	if row.contrato == "" {
		return nil
	}

	_, err := tx.Exec(
		`INSERT INTO contratos
		(cliente_id, produto, promotora, banco, contrato, status,
		 volume_bruto, volume_liquido, comissao_valor, data_operacao,
		 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(contrato) DO UPDATE SET
			cliente_id = excluded.cliente_id,
			produto = excluded.produto,
			promotora = excluded.promotora,
			banco = excluded.banco,
			status = excluded.status,
			volume_bruto = excluded.volume_bruto,
			volume_liquido = excluded.volume_liquido,
			comissao_valor = excluded.comissao_valor,
			data_operacao = excluded.data_operacao,
			updated_at = excluded.updated_at`,
		clienteID, nullIfEmpty(row.produto), nullIfEmpty(row.promotora),
		nullIfEmpty(row.banco), row.contrato, nullIfEmpty(row.status),
		row.volumeBruto, row.volumeLiquido, row.comissaoValor,
		nullIfEmpty(row.dataOperacao), now, now,
	)
	return err
}
