package ingest_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/festal-inc/haishin/internal/domain"
	"github.com/festal-inc/haishin/internal/ingest"
)

func TestParseFile_CSV(t *testing.T) {
	data := []byte("email,氏名,会社\n" +
		"tanaka@example.co.jp,田中太郎,株式会社A\n" +
		"\n" +
		"sato@example.co.jp,佐藤花子\n")

	rows, err := ingest.ParseFile("contacts.csv", data)
	require.NoError(t, err)
	require.Len(t, rows, 2, "empty lines are skipped")

	assert.Equal(t, domain.StringValue("tanaka@example.co.jp"), rows[0].Get("email"))
	assert.Equal(t, domain.StringValue("田中太郎"), rows[0].Get("氏名"))
	assert.Equal(t, domain.StringValue("株式会社A"), rows[0].Get("会社"))

	// Short record: missing trailing column becomes null.
	assert.Equal(t, domain.NullValue(), rows[1].Get("会社"))
}

func TestParseFile_CSVKeepsColumnOrder(t *testing.T) {
	data := []byte("mail,email,name\n" +
		"first-column@example.com,second-column@example.com,X\n")

	rows, err := ingest.ParseFile("contacts.csv", data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 3)

	// Duplicate-field resolution depends on source column order, so the
	// parser must hand rows over in exactly that order.
	assert.Equal(t, "mail", rows[0][0].Header)
	assert.Equal(t, "email", rows[0][1].Header)
	assert.Equal(t, "name", rows[0][2].Header)
}

func TestParseFile_CSVHeaderOnly(t *testing.T) {
	rows, err := ingest.ParseFile("contacts.csv", []byte("email,name\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseFile_CSVEmpty(t *testing.T) {
	_, err := ingest.ParseFile("contacts.csv", nil)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	_, err := ingest.ParseFile("contacts.pdf", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func buildWorkbook(t *testing.T, sheet string, records [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}
	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &record))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseFile_Excel(t *testing.T) {
	data := buildWorkbook(t, "宛先リスト", [][]string{
		{"メールアドレス", "氏名", "役職"},
		{"tanaka@example.co.jp", "田中太郎", "部長"},
		{"sato@example.co.jp", "佐藤花子", ""},
	})

	rows, err := ingest.ParseFile("list.xlsx", data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.StringValue("tanaka@example.co.jp"), rows[0].Get("メールアドレス"))
	assert.Equal(t, domain.StringValue("部長"), rows[0].Get("役職"))
	assert.Equal(t, domain.NullValue(), rows[1].Get("役職"), "empty cell becomes null")
}

func TestParseFile_ExcelFallsBackToFirstSheet(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]string{
		{"email", "name"},
		{"a@example.com", "A"},
	})

	rows, err := ingest.ParseFile("list.xlsx", data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.StringValue("a@example.com"), rows[0].Get("email"))
}

func TestParseFile_ExcelGarbage(t *testing.T) {
	_, err := ingest.ParseFile("list.xlsx", []byte("not a zip archive"))
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
