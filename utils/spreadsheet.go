package utils

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRow is one spreadsheet row before any mapping is applied.
// Exactly one of Cells/Keyed is set: CSV and XLSX sources yield ordered
// cell lists, JSON roster exports yield string-keyed mappings.
// KeyOrder preserves the source document's key order, which Go maps drop.
type RawRow struct {
	Cells    []any
	Keyed    map[string]any
	KeyOrder []string
}

func (r RawRow) IsKeyed() bool {
	return r.Keyed != nil
}

var ErrorUnreadableFile = errors.New("Failed to read the uploaded file. Please ensure it is a valid CSV or XLSX.")

// ReadSpreadsheet parses the uploaded bytes into raw rows.
// The file type is picked from the original filename's extension.
func ReadSpreadsheet(filename string, data []byte) ([]RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return readCSVRows(data)
	case ".xlsx":
		return readXLSXRows(data)
	case ".json":
		return readJSONRows(data)
	default:
		return nil, ErrorUnreadableFile
	}
}

func readCSVRows(data []byte) ([]RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, ErrorUnreadableFile
	}

	rows := make([]RawRow, 0, len(records))
	for _, record := range records {
		cells := make([]any, len(record))
		for i, v := range record {
			cells[i] = v
		}
		rows = append(rows, RawRow{Cells: cells})
	}
	return rows, nil
}

func readXLSXRows(data []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrorUnreadableFile
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrorUnreadableFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ErrorUnreadableFile
	}

	rows := make([]RawRow, 0, len(records))
	for _, record := range records {
		cells := make([]any, len(record))
		for i, v := range record {
			cells[i] = v
		}
		rows = append(rows, RawRow{Cells: cells})
	}
	return rows, nil
}

// readJSONRows accepts an array of objects, e.g. [{"Full Name": "...", ...}].
// Numbers are decoded as json.Number so jersey values keep their digits.
func readJSONRows(data []byte) ([]RawRow, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var records []json.RawMessage
	if err := decoder.Decode(&records); err != nil {
		return nil, ErrorUnreadableFile
	}

	rows := make([]RawRow, 0, len(records))
	for _, record := range records {
		rowDecoder := json.NewDecoder(bytes.NewReader(record))
		rowDecoder.UseNumber()

		var keyed map[string]any
		if err := rowDecoder.Decode(&keyed); err != nil {
			return nil, ErrorUnreadableFile
		}

		order, err := objectKeyOrder(record)
		if err != nil {
			return nil, ErrorUnreadableFile
		}
		rows = append(rows, RawRow{Keyed: keyed, KeyOrder: order})
	}
	return rows, nil
}

// objectKeyOrder walks one JSON object's tokens to recover key order.
func objectKeyOrder(data []byte) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("not a JSON object")
	}

	var keys []string
	depth := 0
	expectKey := true
	for decoder.More() || depth > 0 {
		tok, err := decoder.Token()
		if err != nil {
			return keys, nil
		}
		switch v := tok.(type) {
		case json.Delim:
			if v == '{' || v == '[' {
				depth++
			} else {
				depth--
				if depth < 0 {
					return keys, nil
				}
			}
			expectKey = depth == 0
		case string:
			if depth == 0 && expectKey {
				keys = append(keys, v)
				expectKey = false
			} else if depth == 0 {
				expectKey = true
			}
		default:
			if depth == 0 {
				expectKey = true
			}
		}
	}
	return keys, nil
}
