// Package ingest parses uploaded tabular files into raw header->value
// rows for normalization.
package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/festal-inc/haishin/internal/domain"
)

// targetSheets are the worksheet names checked for contact data, in
// preference order. Falls back to the workbook's first sheet.
var targetSheets = []string{"宛先リスト", "contacts", "データ", "data"}

// ParseFile parses an uploaded file into raw rows, selecting the parser
// by file extension. Supported: .csv, .xlsx, .xls.
func ParseFile(filename string, data []byte) ([]domain.Row, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv":
		return parseCSV(data)
	case ".xlsx", ".xls":
		return parseExcel(data)
	default:
		return nil, domain.Errorf(domain.EINVALID, "ingest.parse",
			"サポートされていないファイル形式です（CSV、Excel のみ対応）")
	}
}

// parseCSV reads a header row followed by data rows. Empty lines are
// skipped; short rows leave trailing columns missing (null).
func parseCSV(data []byte) ([]domain.Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domain.Invalid("ingest.csv", "ファイルにデータが含まれていません")
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, "ingest.csv", "ファイルの解析に失敗しました")
	}

	var rows []domain.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.WrapError(err, domain.EINVALID, "ingest.csv", "ファイルの解析に失敗しました")
		}
		if isEmptyRecord(record) {
			continue
		}

		row := make(domain.Row, 0, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(record) {
				row = append(row, domain.Cell{Header: col, Value: domain.StringValue(record[i])})
			} else {
				row = append(row, domain.Cell{Header: col, Value: domain.NullValue()})
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// parseExcel reads the preferred worksheet of an Excel workbook. Cell
// values arrive from excelize as formatted strings.
func parseExcel(data []byte) ([]domain.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, "ingest.excel", "ファイルの解析に失敗しました")
	}
	defer f.Close()

	sheet := pickSheet(f.GetSheetList())
	if sheet == "" {
		return nil, domain.Invalid("ingest.excel", "ファイルにデータが含まれていません")
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, "ingest.excel", "ファイルの解析に失敗しました")
	}
	if len(records) == 0 {
		return nil, domain.Invalid("ingest.excel", "ファイルにデータが含まれていません")
	}

	header := records[0]
	var rows []domain.Row
	for _, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}

		row := make(domain.Row, 0, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(record) && record[i] != "" {
				row = append(row, domain.Cell{Header: col, Value: domain.StringValue(record[i])})
			} else {
				row = append(row, domain.Cell{Header: col, Value: domain.NullValue()})
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// pickSheet returns the first preferred sheet present, else the first
// sheet, else "".
func pickSheet(sheets []string) string {
	for _, target := range targetSheets {
		for _, s := range sheets {
			if s == target {
				return s
			}
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
