// Package evaldata loads labelled evaluation queries from CSV or XLSX files.
//
// Both formats carry a header row with a query column and a URL column. A URL
// cell may hold several URLs separated by "|", and the same query may repeat
// across rows; rows are grouped by query in first-seen order.
package evaldata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const urlSeparator = "|"

var (
	queryColumns = []string{"query", "queries"}
	urlColumns   = []string{"relevant_urls", "assessment_url", "assessment_urls", "url", "urls"}
)

// Load picks the reader by file extension.
func Load(path string) ([]domain.EvalCase, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open eval csv: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, "")
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "load eval data", fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
}

func ReadCSV(r io.Reader) ([]domain.EvalCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read eval csv: %w", err)
	}
	return fromRows(rows)
}

// LoadXLSX reads the named sheet, or the first sheet when sheet is empty.
func LoadXLSX(path, sheet string) ([]domain.EvalCase, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open eval workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load eval workbook", errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]domain.EvalCase, error) {
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse eval data", errors.New("no header row"))
	}
	queryCol, urlCol, err := headerColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var cases []domain.EvalCase
	index := map[string]int{}
	for _, row := range rows[1:] {
		query := strings.TrimSpace(cell(row, queryCol))
		if query == "" {
			continue
		}
		pos, ok := index[query]
		if !ok {
			pos = len(cases)
			index[query] = pos
			cases = append(cases, domain.EvalCase{Query: query})
		}
		for _, u := range strings.Split(cell(row, urlCol), urlSeparator) {
			if u = strings.TrimSpace(u); u != "" {
				cases[pos].RelevantURLs = append(cases[pos].RelevantURLs, u)
			}
		}
	}
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse eval data", errors.New("no labelled queries"))
	}
	return cases, nil
}

func headerColumns(header []string) (int, int, error) {
	queryCol, urlCol := -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if queryCol < 0 && contains(queryColumns, name) {
			queryCol = i
		}
		if urlCol < 0 && contains(urlColumns, name) {
			urlCol = i
		}
	}
	if queryCol < 0 || urlCol < 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "parse eval data",
			fmt.Errorf("header %v needs a query column and a url column", header))
	}
	return queryCol, urlCol, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
