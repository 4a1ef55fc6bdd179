package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected rune
	}{
		{"semicolon", "nome;idade\nAna;30", ';'},
		{"comma", "nome,idade\nAna,30", ','},
		{"tab", "nome\tidade\nAna\t30", '\t'},
		{"pipe", "nome|idade\nAna|30", '|'},
		{"semicolon beats decimal comma", "municipio;valor\nRecife;1,5\nOlinda;2,75", ';'},
		{"semicolon wins tie", "a;b,c\n1;2,3", ';'},
		{"inconsistent falls back to most frequent", "a,b,c;d\n1\n2\n3", ','},
		{"no delimiter", "apenas uma coluna\nvalor", ','},
		{"empty", "", ','},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, detectDelimiter(tc.text))
		})
	}
}

func TestParseCSV_TrimsAndTolerates(t *testing.T) {
	text := "nome ; idade ; cidade\n" +
		" Ana ; 30 ; Recife \n" +
		"\n" +
		"Bia;25\n" +
		"Caio;40;Olinda;extra\n" +
		";;\n"

	rows, skipped := parseCSV(text)
	assert.Zero(t, skipped)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{{"nome", "Ana"}, {"idade", "30"}, {"cidade", "Recife"}}, rows[0])
	assert.Equal(t, Row{{"nome", "Bia"}, {"idade", "25"}, {"cidade", ""}}, rows[1])
	assert.Equal(t, Row{{"nome", "Caio"}, {"idade", "40"}, {"cidade", "Olinda"}}, rows[2])
}

func TestParseCSV_QuoteIrregularities(t *testing.T) {
	text := "nome;obs\nAna;ele disse \"oi\nBia;\"entre; aspas\"\n"

	rows, _ := parseCSV(text)
	require.Len(t, rows, 2)

	v, _ := rows[0].Get("obs")
	assert.Equal(t, "ele disse \"oi", v)
	v, _ = rows[1].Get("obs")
	assert.Equal(t, "entre; aspas", v)
}

func TestParseCSV_UnterminatedQuoteSkipsRow(t *testing.T) {
	var b strings.Builder
	b.WriteString("nome;idade\n\"Ana;30\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "P%d;%d\n", i, i)
	}

	rows, skipped := parseCSV(b.String())
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 10)
	assert.Equal(t, Row{{"nome", "P0"}, {"idade", "0"}}, rows[0])
	assert.Equal(t, Row{{"nome", "P9"}, {"idade", "9"}}, rows[9])
}

func TestParseCSV_SeveralUnterminatedQuotes(t *testing.T) {
	text := "nome;idade\nA;1\n\"B;2\nC;3\n\"D;4\nE;5\n"

	rows, skipped := parseCSV(text)
	assert.Equal(t, 2, skipped)
	require.Len(t, rows, 3)

	var names []string
	for _, row := range rows {
		v, _ := row.Get("nome")
		names = append(names, v)
	}
	assert.Equal(t, []string{"A", "C", "E"}, names)
}

func TestParseCSV_QuotedMultilineField(t *testing.T) {
	text := "nome;obs\nAna;\"linha 1\nlinha 2\"\nBia;ok\n"

	rows, skipped := parseCSV(text)
	assert.Zero(t, skipped)
	require.Len(t, rows, 2)

	v, _ := rows[0].Get("obs")
	assert.Equal(t, "linha 1\nlinha 2", v)
	v, _ = rows[1].Get("nome")
	assert.Equal(t, "Bia", v)
}

func TestParseCSV_Latin1(t *testing.T) {
	data := []byte("nome;cidade\nJos\xe9;S\xe3o Paulo\n")

	rows, _ := parseCSV(decodeText(data))
	require.Len(t, rows, 1)
	assert.Equal(t, Row{{"nome", "José"}, {"cidade", "São Paulo"}}, rows[0])
}

func TestParseCSV_HeaderNormalisation(t *testing.T) {
	rows, _ := parseCSV("\ufeffid,,id\n1,2,3\n")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "column_2", "id_2"}, rows[0].Keys())
}

func TestParseCSV_Empty(t *testing.T) {
	rows, skipped := parseCSV("")
	assert.Empty(t, rows)
	assert.Zero(t, skipped)

	rows, _ = parseCSV("apenas;cabecalho\n")
	assert.Empty(t, rows)
}
