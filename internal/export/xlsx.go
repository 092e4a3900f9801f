package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/catalog-etl/internal/model"
)

// SheetName is the name of the single sheet of the xlsx output.
const SheetName = "movies_and_shows"

var xlsxHeader = []string{
	"type", "id", "title", "overview", "release_date", "genre",
	"tmdb_rating", "tmdb_count", "imdb_rating", "imdb_count",
	"is_popular", "watch_providers",
}

// WriteXLSX writes rows to a workbook with a header row and typed cells.
func WriteXLSX(w io.Writer, rows []model.EnrichedTitle) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}
	for _, t := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(t.Type)
		row.AddCell().SetInt64(t.ID)
		row.AddCell().SetString(t.Title)
		row.AddCell().SetString(t.Overview)
		row.AddCell().SetString(t.ReleaseDate)
		row.AddCell().SetString(t.Genre)
		row.AddCell().SetFloat(t.TMDBRating)
		row.AddCell().SetInt64(t.TMDBCount)
		row.AddCell().SetFloat(t.IMDBRating.InexactFloat64())
		row.AddCell().SetInt64(t.IMDBCount)
		row.AddCell().SetBool(t.IsPopular)
		row.AddCell().SetString(t.WatchProviders)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}
