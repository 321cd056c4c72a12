package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB abre (ou cria) o banco SQLite no caminho informado e garante o
// schema. Use ":memory:" para um banco em memória.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("abrir banco: %w", err)
	}

	// WAL melhora a leitura concorrente dos dashboards.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ativar wal: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ativar foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("criar tabelas: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS imported_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fonte TEXT NOT NULL,
			origem TEXT,
			arquivo TEXT,
			source_file TEXT,
			import_batch_id TEXT,
			promotora TEXT,
			cliente_nome TEXT NOT NULL,
			documento TEXT,
			produto TEXT,
			convenio TEXT,
			contrato TEXT,
			contrato_ade TEXT,
			banco TEXT,
			status TEXT,
			status_comercial TEXT,
			ultimo_contato TEXT,
			proximo_contato TEXT,
			dias_ate_followup INTEGER,
			data_operacao TEXT,
			data_pagamento TEXT,
			volume_bruto REAL NOT NULL DEFAULT 0,
			volume_liquido REAL NOT NULL DEFAULT 0,
			comissao_valor REAL NOT NULL DEFAULT 0,
			comissao_percentual REAL,
			observacoes_estrategicas TEXT,
			raw TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_imported_records_arquivo ON imported_records(arquivo)`,
		`CREATE INDEX IF NOT EXISTS idx_imported_records_promotora ON imported_records(promotora)`,
		`CREATE INDEX IF NOT EXISTS idx_imported_records_batch ON imported_records(import_batch_id)`,

		`CREATE TABLE IF NOT EXISTS imported_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			promotora TEXT,
			total_registros INTEGER NOT NULL DEFAULT 0,
			volume_total REAL NOT NULL DEFAULT 0,
			comissao_total REAL NOT NULL DEFAULT 0,
			metadata TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_imported_reports_promotora ON imported_reports(promotora)`,

		`CREATE TABLE IF NOT EXISTS import_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			arquivo TEXT NOT NULL,
			promotora TEXT,
			registros INTEGER NOT NULL DEFAULT 0,
			volume_bruto REAL NOT NULL DEFAULT 0,
			volume_liquido REAL NOT NULL DEFAULT 0,
			comissao REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_history_arquivo ON import_history(arquivo)`,

		`CREATE TABLE IF NOT EXISTS clientes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nome TEXT NOT NULL,
			documento TEXT,
			origem TEXT,
			volume_liquido_total REAL NOT NULL DEFAULT 0,
			volume_bruto_total REAL NOT NULL DEFAULT 0,
			comissao_total REAL NOT NULL DEFAULT 0,
			total_contratos INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			ultima_atualizacao TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clientes_documento ON clientes(documento)`,

		`CREATE TABLE IF NOT EXISTS contratos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cliente_id INTEGER,
			produto TEXT,
			promotora TEXT,
			banco TEXT,
			contrato TEXT NOT NULL UNIQUE,
			status TEXT,
			volume_bruto REAL NOT NULL DEFAULT 0,
			volume_liquido REAL NOT NULL DEFAULT 0,
			comissao_valor REAL NOT NULL DEFAULT 0,
			data_operacao TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (cliente_id) REFERENCES clientes(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contratos_cliente ON contratos(cliente_id)`,

		`CREATE TABLE IF NOT EXISTS integration_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			integracao TEXT NOT NULL,
			acao TEXT NOT NULL,
			status TEXT NOT NULL,
			mensagem TEXT,
			detalhes TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_integration_logs_integracao ON integration_logs(integracao)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
