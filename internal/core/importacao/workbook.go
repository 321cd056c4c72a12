// internal/core/importacao/workbook.go
package importacao

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jdcredvip/crm-backend/internal/domain"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ImportarPlanilha decodifica a primeira aba de um arquivo .xlsx, .xls ou
// .csv em linhas brutas e entrega ao pipeline de normalização.
func (svc *service) ImportarPlanilha(file io.Reader, filename string, opts Options) (*domain.ResultadoImportacao, error) {
	if opts.Filename == "" {
		opts.Filename = filename
	}

	grid, err := lerGrade(file, filename)
	if err != nil {
		return nil, err
	}

	rows := gradeParaRawRows(grid)
	if len(rows) == 0 {
		return nil, fmt.Errorf("nenhum dado encontrado no relatório")
	}

	return svc.ImportarRegistros(rows, opts)
}

func lerGrade(file io.Reader, filename string) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".xlsx":
		return lerXLSX(file)
	case ".xls":
		return lerXLS(file)
	case ".csv":
		return lerCSV(file)
	default:
		return nil, fmt.Errorf("formato de arquivo de relatório não suportado: %s", ext)
	}
}

func lerXLSX(file io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir planilha xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("arquivo sem planilhas válidas")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("erro ao ler planilha: %w", err)
	}
	return rows, nil
}

func lerXLS(file io.Reader) ([][]string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		// Alguns parceiros exportam xlsx com extensão .xls.
		if _, errX := excelize.OpenReader(bytes.NewReader(data)); errX == nil {
			return lerXLSX(bytes.NewReader(data))
		}
		return nil, fmt.Errorf("erro ao abrir planilha xls: %w", err)
	}

	sheets := workbook.GetSheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("arquivo sem planilhas válidas")
	}

	var grid [][]string
	for _, row := range sheets[0].GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func lerCSV(file io.Reader) ([][]string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	// Relatórios antigos chegam em ISO-8859-1.
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
		if err == nil {
			data = decoded
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectarSeparador(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("erro ao ler csv: %w", err)
	}
	return records, nil
}

func detectarSeparador(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// gradeParaRawRows monta as linhas brutas: a primeira linha não vazia vira
// cabeçalho e cada linha seguinte vira uma RawRow com todas as colunas do
// cabeçalho, vazias inclusive, para o resumo enxergar o layout completo.
func gradeParaRawRows(grid [][]string) []*domain.RawRow {
	headerIdx := -1
	for i, row := range grid {
		if !linhaVazia(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	header := grid[headerIdx]
	var rows []*domain.RawRow
	for _, line := range grid[headerIdx+1:] {
		if linhaVazia(line) {
			continue
		}
		row := domain.NewRawRow()
		for col, nome := range header {
			nome = strings.TrimSpace(nome)
			if nome == "" {
				continue
			}
			if col < len(line) && strings.TrimSpace(line[col]) != "" {
				row.Set(nome, domain.Texto(line[col]))
			} else {
				row.Set(nome, domain.Vazio())
			}
		}
		if row.Len() > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func linhaVazia(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
