package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

// readRows loads every record of a CSV file, optionally dropping a header.
func readRows(path string, header bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrEmptyInput, apperrors.ExitInputNotFound, "input file %s not found", path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return parseRows(f, path, header)
}

func parseRows(r io.Reader, name string, header bool) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitInvalidInput, "parsing %s: %v", name, err)
	}
	if header && len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

// column extracts one field from every row.
func column(rows [][]string, idx int, name string) ([]string, error) {
	out := make([]string, len(rows))
	for i, row := range rows {
		if idx < 0 || idx >= len(row) {
			return nil, apperrors.Invalid("%s row %d has no column %d", name, i+1, idx)
		}
		out[i] = row[idx]
	}
	return out, nil
}

func floatMatrix(rows [][]string, name string) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		vec := make([]float64, len(row))
		for k, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, apperrors.Invalid("%s row %d column %d: %q is not a number", name, i+1, k, cell)
			}
			vec[k] = v
		}
		out[i] = vec
	}
	return out, nil
}

func intMatrix(rows [][]string, name string) ([][]int, error) {
	out := make([][]int, len(rows))
	for i, row := range rows {
		vec := make([]int, len(row))
		for k, cell := range row {
			v, err := strconv.Atoi(strings.TrimSpace(cell))
			if err != nil {
				return nil, apperrors.Invalid("%s row %d column %d: %q is not an integer", name, i+1, k, cell)
			}
			vec[k] = v
		}
		out[i] = vec
	}
	return out, nil
}

func floatColumn(rows [][]string, name string) ([]float64, error) {
	cells, err := column(rows, 0, name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, apperrors.Invalid("%s row %d: %q is not a number", name, i+1, cell)
		}
		out[i] = v
	}
	return out, nil
}
