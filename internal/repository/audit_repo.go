package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// AuditRepo grava a trilha de auditoria das integrações. Falhas de auditoria
// nunca devem abortar a operação principal; cabe ao chamador apenas logá-las.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Registrar insere uma entrada de log de integração. O campo detalhes é
// serializado como JSON.
func (r *AuditRepo) Registrar(integracao, acao, status, mensagem string, detalhes any) error {
	detalhesJSON := "{}"
	if detalhes != nil {
		b, err := json.Marshal(detalhes)
		if err != nil {
			return fmt.Errorf("serializar detalhes: %w", err)
		}
		detalhesJSON = string(b)
	}

	_, err := r.db.Exec(
		`INSERT INTO integration_logs (integracao, acao, status, mensagem, detalhes)
		 VALUES (?,?,?,?,?)`,
		integracao, acao, status, nullIfEmpty(mensagem), detalhesJSON,
	)
	if err != nil {
		return fmt.Errorf("inserir log de integração: %w", err)
	}
	return nil
}
