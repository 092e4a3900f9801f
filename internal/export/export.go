// Package export publishes the enriched dataset to the gold layer.
package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/dataset"
	"github.com/sells-group/catalog-etl/internal/model"
)

// Format is a gold output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
	FormatXLSX  Format = "xlsx"
)

// AllFormats lists the supported formats.
var AllFormats = []Format{FormatCSV, FormatJSONL, FormatXLSX}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatJSONL, FormatXLSX:
		return f, nil
	case "json":
		return FormatJSONL, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// Write writes rows to the gold layer in every requested format and returns
// the written paths.
func Write(l dataset.Layout, rows []model.EnrichedTitle, formats ...Format) ([]string, error) {
	if len(formats) == 0 {
		formats = AllFormats
	}
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := l.Gold(string(f))
		var err error
		switch f {
		case FormatCSV:
			err = dataset.WriteTable(path, rows)
		case FormatJSONL:
			err = dataset.WriteFile(path, func(w io.Writer) error { return WriteJSONL(w, rows) })
		case FormatXLSX:
			err = dataset.WriteFile(path, func(w io.Writer) error { return WriteXLSX(w, rows) })
		default:
			err = eris.Errorf("export: unknown format %q", f)
		}
		if err != nil {
			return paths, eris.Wrapf(err, "export: write %s", f)
		}
		zap.L().Info("export: written", zap.String("format", string(f)), zap.String("path", path), zap.Int("rows", len(rows)))
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(w io.Writer, rows []model.EnrichedTitle) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "export: encode row %d", i+1)
		}
	}
	return nil
}

// Files reads the enriched dataset and writes it in every requested format.
func Files(l dataset.Layout, formats ...Format) ([]string, error) {
	rows, err := dataset.ReadTable[model.EnrichedTitle](l.Enriched())
	if err != nil {
		return nil, eris.Wrap(err, "export: load enriched dataset")
	}
	return Write(l, rows, formats...)
}
