// Package dataset reads and writes the pipeline's CSV tables and knows where
// each layer (bronze, silver, gold) lives on disk.
package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Separator is the column separator of every table.
const Separator = ';'

// DecodeTable decodes a ;-separated table with a header row into rows of T.
// Columns without a matching field are ignored. An empty input yields no rows.
func DecodeTable[T any](r io.Reader) ([]T, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}

	var rows []T
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode row %d", len(rows)+1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EncodeTable writes rows as a ;-separated table with a header row. The
// header is written even when rows is empty.
func EncodeTable[T any](w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator

	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrap(err, "dataset: encode header")
		}
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "dataset: encode row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush")
}

// ReadTable reads the table at path.
func ReadTable[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := DecodeTable[T](f)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", filepath.Base(path))
	}
	return rows, nil
}

// WriteTable writes rows to path, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func WriteTable[T any](path string, rows []T) error {
	return WriteFile(path, func(w io.Writer) error {
		return EncodeTable(w, rows)
	})
}

// WriteFile creates path through a temporary file in the same directory,
// calling write to fill it.
func WriteFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "dataset: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "dataset: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "dataset: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "dataset: rename into %s", path)
	}
	return nil
}
