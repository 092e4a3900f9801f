package export

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/model"
)

func goldRows() []model.EnrichedTitle {
	return []model.EnrichedTitle{
		{
			Type: "movie", ID: 238, Title: "El padrino", Overview: "Don Vito <Corleone>",
			ReleaseDate: "14/03/1972", Genre: "Drama, Crimen", TMDBRating: 8.7, TMDBCount: 21000,
			IMDBRating: decimal.RequireFromString("9.2"), IMDBCount: 2000000, IsPopular: true,
			WatchProviders: "SkyShowtime",
		},
		{
			Type: "show", ID: 1396, Title: "Breaking Bad", ReleaseDate: "20/01/2008", Genre: "Drama",
			TMDBRating: 8.9, TMDBCount: 9000, IMDBRating: decimal.RequireFromString("9.5"), IMDBCount: 2100,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, " XLSX ": FormatXLSX, "json": FormatJSONL, "jsonl": FormatJSONL} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("parquet")
	assert.Error(t, err)
}

func TestWrite_AllFormats(t *testing.T) {
	l := dataset.Layout{Dir: t.TempDir()}
	paths, err := Write(l, goldRows())
	require.NoError(t, err)
	assert.Equal(t, []string{l.Gold("csv"), l.Gold("jsonl"), l.Gold("xlsx")}, paths)

	csvRows, err := dataset.ReadTable[model.EnrichedTitle](l.Gold("csv"))
	require.NoError(t, err)
	require.Len(t, csvRows, 2)
	assert.Equal(t, "El padrino", csvRows[0].Title)
	assert.True(t, csvRows[0].IsPopular)

	raw, err := os.ReadFile(l.Gold("csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "type;id;title;"), "gold csv has no index column")
}

func TestWriteJSONL(t *testing.T) {
	l := dataset.Layout{Dir: t.TempDir()}
	_, err := Write(l, goldRows(), FormatJSONL)
	require.NoError(t, err)

	f, err := os.Open(l.Gold("jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "Don Vito <Corleone>", lines[0]["overview"])
	assert.Equal(t, "9.2", lines[0]["imdb_rating"])
	assert.Equal(t, float64(1396), lines[1]["id"])
	assert.Equal(t, false, lines[1]["is_popular"])
}

func TestWriteXLSX(t *testing.T) {
	l := dataset.Layout{Dir: t.TempDir()}
	_, err := Write(l, goldRows(), FormatXLSX)
	require.NoError(t, err)

	f, err := xlsx.OpenFile(l.Gold("xlsx"))
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "type", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "watch_providers", sheet.Rows[0].Cells[11].String())
	assert.Equal(t, "El padrino", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "Breaking Bad", sheet.Rows[2].Cells[2].String())
	n, err := sheet.Rows[1].Cells[1].Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(238), n)
}

func TestFiles_MissingEnriched(t *testing.T) {
	_, err := Files(dataset.Layout{Dir: t.TempDir()}, FormatCSV)
	assert.Error(t, err)
}
