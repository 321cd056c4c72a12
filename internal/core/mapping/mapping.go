// internal/core/mapping/mapping.go
package mapping

import (
	"github.com/jdcredvip/crm-backend/internal/core/ptbr"
)

// AliasSet guarda as variantes normalizadas de cabeçalho que denotam um
// mesmo campo semântico. A pertinência é testada sempre sobre a forma
// produzida por ptbr.NormalizeKey.
type AliasSet map[string]struct{}

// NewAliasSet normaliza cada variante e monta o conjunto.
func NewAliasSet(items ...string) AliasSet {
	set := make(AliasSet, len(items))
	for _, item := range items {
		set[ptbr.NormalizeKey(item)] = struct{}{}
	}
	return set
}

// Has testa a pertinência de uma chave já normalizada.
func (s AliasSet) Has(normalizedKey string) bool {
	if s == nil {
		return false
	}
	_, ok := s[normalizedKey]
	return ok
}

// ColumnAliases agrupa os alias sets padrão de cada campo canônico.
type ColumnAliases struct {
	Cliente        AliasSet
	Documento      AliasSet
	Contrato       AliasSet
	ContratoAde    AliasSet
	Produto        AliasSet
	Promotora      AliasSet
	Banco          AliasSet
	Status         AliasSet
	ValorLiquido   AliasSet
	ValorBruto     AliasSet
	Comissao       AliasSet
	DataReferencia AliasSet
}

// PromotoraOverride substitui alias sets padrão para uma promotora cujo
// layout foge do comum. Campos nil caem no padrão.
type PromotoraOverride struct {
	Nome    string
	Aliases AliasSet

	ClienteAlias      AliasSet
	DocumentoAlias    AliasSet
	ContratoAlias     AliasSet
	ContratoAdeAlias  AliasSet
	ProdutoAlias      AliasSet
	PromotoraAlias    AliasSet
	BancoAlias        AliasSet
	StatusAlias       AliasSet
	ValorLiquidoAlias AliasSet
	ValorBrutoAlias   AliasSet
	ComissaoAlias     AliasSet
	DataAlias         AliasSet
}

// Config é a configuração imutável do resolvedor de colunas, montada na
// inicialização do processo e injetável em testes.
type Config struct {
	Aliases   ColumnAliases
	Overrides []PromotoraOverride
}

// DefaultConfig devolve a tabela de aliases conhecida dos relatórios das
// promotoras parceiras.
func DefaultConfig() Config {
	return Config{
		Aliases: ColumnAliases{
			Cliente: NewAliasSet(
				"cliente",
				"nome",
				"nomecliente",
				"nome_cliente",
				"nome do cliente",
				"seller",
				"beneficiario",
			),
			Documento: NewAliasSet(
				"cpf",
				"cnpj",
				"documento",
				"cpf_cliente",
				"cpfcliente",
				"cliente_cpf",
				"documento_cliente",
			),
			Contrato: NewAliasSet("contrato", "contrato_id", "idcontrato", "numero_contrato", "contratoid"),
			ContratoAde: NewAliasSet(
				"contrato_ade",
				"contrato ade",
				"numero_ade",
				"ade",
				"auto",
				"numero",
			),
			Produto: NewAliasSet(
				"produto",
				"produto_financeiro",
				"modalidade",
				"produto credito",
				"linha",
				"produto_nome",
			),
			Promotora: NewAliasSet("promotora", "promoter", "parceiro", "origem", "empresa", "canal", "parceria"),
			Banco:     NewAliasSet("banco", "instituicao", "instituicao_financeira", "banco_destino", "financeira"),
			Status:    NewAliasSet("status", "situacao", "etapa", "fase", "statuscontrato"),
			ValorLiquido: NewAliasSet(
				"valor_liquido",
				"valorliquido",
				"valor liquido",
				"vl_liquido",
				"valor creditado",
				"valorcliente",
				"valor_cliente",
				"valor_pagamento",
				"valorcontrato",
			),
			ValorBruto: NewAliasSet(
				"valor_bruto",
				"valorbruto",
				"valor bruto",
				"vl_bruto",
				"valor total",
				"valor_total",
				"valor liberado",
			),
			Comissao: NewAliasSet(
				"comissao",
				"valorcomissao",
				"valor_comissao",
				"comissao_total",
				"vl_comissao",
				"percentual_comissao",
				"taxa_comissao",
				"comissao_liquida",
			),
			DataReferencia: NewAliasSet(
				"data",
				"data_contratacao",
				"data pagamento",
				"data_pagamento",
				"datareferencia",
				"data_da_operacao",
				"dt_ref",
				"dtpagamento",
			),
		},
		Overrides: []PromotoraOverride{
			{
				Nome:         "Nexxo",
				Aliases:      NewAliasSet("nexxo", "nx", "nxx"),
				ProdutoAlias: NewAliasSet("produto", "produto_nexxo", "modalidade"),
				StatusAlias:  NewAliasSet("status", "status_nexxo", "statusatual"),
			},
			{
				Nome:         "WorkBank",
				Aliases:      NewAliasSet("workbank", "work bank", "work-bank", "wb"),
				ProdutoAlias: NewAliasSet("produto", "linha", "produto_work"),
				StatusAlias:  NewAliasSet("status", "situacao", "fase_workbank"),
			},
			{
				Nome:         "Yuppie",
				Aliases:      NewAliasSet("yuppie"),
				ProdutoAlias: NewAliasSet("produto", "linha"),
				StatusAlias:  NewAliasSet("status", "etapa", "andamento"),
			},
		},
	}
}

// Promotoras lista os nomes canônicos configurados.
func (c Config) Promotoras() []string {
	nomes := make([]string, 0, len(c.Overrides))
	for _, o := range c.Overrides {
		nomes = append(nomes, o.Nome)
	}
	return nomes
}

// MatchPromotoraAlias compara a forma normalizada de um valor com os aliases
// exatos de cada promotora e devolve o nome canônico, ou "" quando não há
// correspondência.
func (c Config) MatchPromotoraAlias(value string) string {
	key := ptbr.NormalizeKey(value)
	if key == "" {
		return ""
	}
	for _, override := range c.Overrides {
		if override.Aliases.Has(key) {
			return override.Nome
		}
	}
	return ""
}

// OverridesPara devolve o override da promotora indicada, ou nil.
func (c Config) OverridesPara(promotoraNome string) *PromotoraOverride {
	normalized := ptbr.NormalizeKey(promotoraNome)
	for i := range c.Overrides {
		if ptbr.NormalizeKey(c.Overrides[i].Nome) == normalized {
			return &c.Overrides[i]
		}
	}
	return nil
}

// AllAliases devolve o corpus completo de variantes normalizadas, usado para
// sugerir colunas próximas quando um cabeçalho não é reconhecido.
func (c Config) AllAliases() []string {
	sets := []AliasSet{
		c.Aliases.Cliente,
		c.Aliases.Documento,
		c.Aliases.Contrato,
		c.Aliases.ContratoAde,
		c.Aliases.Produto,
		c.Aliases.Promotora,
		c.Aliases.Banco,
		c.Aliases.Status,
		c.Aliases.ValorLiquido,
		c.Aliases.ValorBruto,
		c.Aliases.Comissao,
		c.Aliases.DataReferencia,
	}
	seen := make(map[string]bool)
	var all []string
	for _, set := range sets {
		for alias := range set {
			if !seen[alias] {
				seen[alias] = true
				all = append(all, alias)
			}
		}
	}
	return all
}

// Reconhece informa se algum alias set padrão cobre o cabeçalho dado.
func (c Config) Reconhece(header string) bool {
	key := ptbr.NormalizeKey(header)
	sets := []AliasSet{
		c.Aliases.Cliente,
		c.Aliases.Documento,
		c.Aliases.Contrato,
		c.Aliases.ContratoAde,
		c.Aliases.Produto,
		c.Aliases.Promotora,
		c.Aliases.Banco,
		c.Aliases.Status,
		c.Aliases.ValorLiquido,
		c.Aliases.ValorBruto,
		c.Aliases.Comissao,
		c.Aliases.DataReferencia,
	}
	for _, set := range sets {
		if set.Has(key) {
			return true
		}
	}
	return false
}
