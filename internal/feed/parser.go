// Package feed reads the event feed: a CSV export with one login,
// password or role event per line.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// Header columns of the event feed.
const (
	ColumnEmail       = "User Email"
	ColumnTimestamp   = "Timestamp"
	ColumnDescription = "Event Description"
)

// Parse turns CSV text with a header row into rows, in file order.
// Values are returned untrimmed and unvalidated; rows with missing cells
// keep "" for them. Broken CSV structure, or a header without the three
// feed columns, fails the whole parse with a parse_failure.
func Parse(csvText string) ([]models.RawEventRow, error) {
	return ParseReader(strings.NewReader(csvText))
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) ([]models.RawEventRow, error) {
	const op = "feed.Parse"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []models.RawEventRow{}, nil
	}
	if err != nil {
		return nil, apperr.ParseFailure(op, err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, apperr.ParseFailure(op, err)
	}

	rows := []models.RawEventRow{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.ParseFailure(op, err)
		}
		rows = append(rows, models.RawEventRow{
			Email:       cell(rec, idx[ColumnEmail]),
			Timestamp:   cell(rec, idx[ColumnTimestamp]),
			Description: cell(rec, idx[ColumnDescription]),
		})
	}
	return rows, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range []string{ColumnEmail, ColumnTimestamp, ColumnDescription} {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header missing columns %q", missing)
	}
	return idx, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
