package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/document"
)

const utf8BOM = "\ufeff"

// ReadCSV parses a CSV file with a header row into one Raw item per non-blank row.
// A missing file wraps domain.ErrNotFound.
func ReadCSV(path string) ([]Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("csv file %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	items, err := ParseCSV(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", path, err)
	}
	return items, nil
}

// ParseCSV reads CSV rows from r. name is the file name used in item locators.
func ParseCSV(r io.Reader, name string) ([]Raw, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var items []Raw
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}

		cols := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" || i >= len(record) {
				continue
			}
			cols[h] = record[i]
		}
		items = append(items, Raw{
			Kind:    document.KindCSVRow,
			Source:  fmt.Sprintf("%s:%d", name, line),
			Payload: &Row{File: name, Line: line, Columns: cols},
		})
	}
	return items, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
