// internal/domain/models.go
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ValorKind identifica o tipo de um valor bruto vindo da planilha.
type ValorKind int

const (
	ValorVazio ValorKind = iota
	ValorTexto
	ValorNumero
	ValorData
)

// Valor é a célula bruta de um relatório: texto, número, data ou vazio.
// As planilhas das promotoras não têm schema fixo, então todo valor chega
// por aqui antes de qualquer parsing.
type Valor struct {
	Kind   ValorKind
	Texto  string
	Numero float64
	Data   time.Time
}

func Vazio() Valor                { return Valor{Kind: ValorVazio} }
func Texto(s string) Valor        { return Valor{Kind: ValorTexto, Texto: s} }
func Numero(n float64) Valor      { return Valor{Kind: ValorNumero, Numero: n} }
func DataValor(t time.Time) Valor { return Valor{Kind: ValorData, Data: t} }

// IsVazio informa se a célula deve ser tratada como ausente.
func (v Valor) IsVazio() bool {
	return v.Kind == ValorVazio || (v.Kind == ValorTexto && v.Texto == "")
}

// String devolve a forma textual do valor, sem formatação de locale.
func (v Valor) String() string {
	switch v.Kind {
	case ValorTexto:
		return v.Texto
	case ValorNumero:
		return formatFloat(v.Numero)
	case ValorData:
		return v.Data.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

// Celula é um par cabeçalho/valor na ordem em que aparece na planilha.
type Celula struct {
	Chave string
	Valor Valor
}

// RawRow é uma linha bruta do relatório. A ordem de inserção das colunas é
// preservada: quando duas colunas respondem pelo mesmo campo semântico, a
// primeira na ordem da planilha vence (ambiguidade herdada do formato das
// promotoras, não uma regra de prioridade).
type RawRow struct {
	celulas []Celula
	indice  map[string]int
}

// NewRawRow cria uma linha vazia.
func NewRawRow() *RawRow {
	return &RawRow{indice: make(map[string]int)}
}

// Set grava o valor de uma coluna, mantendo a posição original quando a
// coluna já existe.
func (r *RawRow) Set(chave string, valor Valor) {
	if r.indice == nil {
		r.indice = make(map[string]int)
	}
	if i, ok := r.indice[chave]; ok {
		r.celulas[i].Valor = valor
		return
	}
	r.indice[chave] = len(r.celulas)
	r.celulas = append(r.celulas, Celula{Chave: chave, Valor: valor})
}

// Get devolve o valor de uma coluna pelo nome exato do cabeçalho.
func (r *RawRow) Get(chave string) (Valor, bool) {
	if r == nil || r.indice == nil {
		return Valor{}, false
	}
	i, ok := r.indice[chave]
	if !ok {
		return Valor{}, false
	}
	return r.celulas[i].Valor, true
}

// Celulas devolve as células na ordem da planilha.
func (r *RawRow) Celulas() []Celula {
	if r == nil {
		return nil
	}
	return r.celulas
}

// Len devolve a quantidade de colunas da linha.
func (r *RawRow) Len() int {
	if r == nil {
		return 0
	}
	return len(r.celulas)
}

// MarshalJSON serializa a linha como objeto JSON preservando a ordem das
// colunas, para auditoria do campo raw.
func (r *RawRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Celulas() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Chave)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var v []byte
		switch c.Valor.Kind {
		case ValorVazio:
			v = []byte("null")
		case ValorNumero:
			v, err = json.Marshal(c.Valor.Numero)
		case ValorData:
			v, err = json.Marshal(c.Valor.Data.UTC().Format(time.RFC3339))
		default:
			v, err = json.Marshal(c.Valor.Texto)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reconstrói a linha a partir de um objeto JSON, preservando a
// ordem das chaves do documento. Valores null viram células vazias; números
// e strings mantêm o tipo.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("raw deve ser um objeto JSON")
	}

	r.celulas = nil
	r.indice = make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		switch v := valTok.(type) {
		case nil:
			r.Set(key, Vazio())
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return err
			}
			r.Set(key, Numero(f))
		case string:
			r.Set(key, Texto(v))
		case bool:
			if v {
				r.Set(key, Texto("true"))
			} else {
				r.Set(key, Texto("false"))
			}
		default:
			return fmt.Errorf("valor não suportado na coluna %q", key)
		}
	}

	// consome o '}' final
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// RegistroNormalizado é o registro canônico produzido a partir de uma RawRow.
// Campos textuais vazios significam ausentes. O produto original reportado
// pela promotora fica em ProdutoOriginal; Produto pode ser sobrescrito pela
// reclassificação comercial.
type RegistroNormalizado struct {
	Cliente         string `json:"cliente,omitempty"`
	Documento       string `json:"documento,omitempty"`
	ContratoID      string `json:"contratoId,omitempty"`
	Contrato        string `json:"contrato,omitempty"`
	ContratoAde     string `json:"contratoAde,omitempty"`
	Produto         string `json:"produto,omitempty"`
	ProdutoOriginal string `json:"produtoOriginal,omitempty"`
	Banco           string `json:"banco,omitempty"`
	Status          string `json:"status,omitempty"`
	Promotora       string `json:"promotora,omitempty"`

	ValorLiquido       float64  `json:"valorLiquido"`
	ValorBruto         float64  `json:"valorBruto"`
	Comissao           float64  `json:"comissao"`
	ComissaoPercentual *float64 `json:"comissaoPercentual,omitempty"`

	DataReferencia string `json:"dataReferencia,omitempty"`
	DataPagamento  string `json:"dataPagamento,omitempty"`

	Raw *RawRow `json:"raw,omitempty"`

	// Campos preenchidos pelas regras comerciais.
	ProdutoClassificado string `json:"produtoClassificado,omitempty"`
	UpsellSugerido      string `json:"upsellSugerido,omitempty"`
	UltimoContato       string `json:"ultimoContato,omitempty"`
	ProximoContato      string `json:"proximoContato,omitempty"`
	DiasAteFollowup     *int   `json:"diasAteFollowup,omitempty"`
	StatusFollowup      string `json:"statusFollowup,omitempty"`
	ContratoAutoGerado  bool   `json:"contratoAutoGerado,omitempty"`
	Observacoes         string `json:"observacoes,omitempty"`
}

// ProdutoVolume é o volume agregado de um produto dentro de um lote.
type ProdutoVolume struct {
	Produto string  `json:"produto"`
	Volume  float64 `json:"volume"`
}

/// Resumo agrega um lote de registros normalizados: totais, quebras por
// produto e status, colunas reconhecidas e a promotora resolvida.
type Resumo struct {
	TotalRegistros      int             `json:"totalRegistros"`
	VolumeBruto         float64         `json:"volumeBruto"`
	VolumeTotal         float64         `json:"volumeTotal"`
	ComissaoTotal       float64         `json:"comissaoTotal"`
	ColunasReconhecidas []string        `json:"colunasReconhecidas"`
	Produtos            []ProdutoVolume `json:"produtos"`
	Status              []string        `json:"status"`
	Promotora           string          `json:"promotora"`
}

// ResultadoImportacao é a saída do pipeline de importação.
type ResultadoImportacao struct {
	Registros []RegistroNormalizado `json:"registros"`
	Resumo    Resumo                `json:"resumo"`
}

// BusinessParams sobrepõe a tabela padrão de parâmetros comerciais
// (dias de follow-up, limites e percentuais de comissão) por chave.
type BusinessParams map[string]float64
