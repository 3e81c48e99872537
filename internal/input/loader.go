// Package input reads the product sheet (.xlsx or .csv) into InputRecords.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalogprj/internal/model"
)

// ErrMissingColumn is returned when the sheet lacks the sku or url column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"sku", "url"}

// Load reads every record from path, in sheet order. The format is chosen
// by extension: .xlsx/.xlsm through excelize, anything else as CSV.
func Load(path string) ([]model.InputRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]model.InputRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrMissingColumn)
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup && h != "" {
			index[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []model.InputRecord
	for _, row := range rows[1:] {
		rec := model.InputRecord{
			SKU:            cell(row, "sku"),
			EAN:            cell(row, "ean"),
			ShippingWeight: cell(row, "shipping_weight"),
			Color:          cell(row, "color"),
			ProductType:    cell(row, "product_type"),
			URL:            cell(row, "url"),
			MM43:           cell(row, "mm43"),
			Category:       cell(row, "category"),
		}
		if rec == (model.InputRecord{}) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
