package utils

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadSpreadsheetCSV(t *testing.T) {
	data := []byte("Full Name,Email,Jersey\nAlice,alice@example.com,10\nBob,bob@example.com\n")

	rows, err := ReadSpreadsheet("roster.csv", data)
	if err != nil {
		t.Fatalf("ReadSpreadsheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].IsKeyed() {
		t.Fatal("csv rows must be positional")
	}
	if got := rows[1].Cells[1]; got != "alice@example.com" {
		t.Errorf("cell = %v", got)
	}
	// Ragged rows are allowed.
	if len(rows[2].Cells) != 2 {
		t.Errorf("ragged row length = %d", len(rows[2].Cells))
	}
}

func TestReadSpreadsheetJSONKeyOrder(t *testing.T) {
	data := []byte(`[
		{"Full Name": "Alice", "Email": "alice@example.com", "Jersey": 10, "Stats": {"Goals": 3}},
		{"Full Name": "Bob", "Email": "bob@example.com"}
	]`)

	rows, err := ReadSpreadsheet("roster.json", data)
	if err != nil {
		t.Fatalf("ReadSpreadsheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].IsKeyed() {
		t.Fatal("json rows must be keyed")
	}

	want := []string{"Full Name", "Email", "Jersey", "Stats"}
	if len(rows[0].KeyOrder) != len(want) {
		t.Fatalf("key order = %v, want %v", rows[0].KeyOrder, want)
	}
	for i := range want {
		if rows[0].KeyOrder[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, rows[0].KeyOrder[i], want[i])
		}
	}

	// Numbers keep their digits.
	if num, ok := rows[0].Keyed["Jersey"].(interface{ String() string }); !ok || num.String() != "10" {
		t.Errorf("jersey = %#v", rows[0].Keyed["Jersey"])
	}
}

func TestReadSpreadsheetXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"Full Name", "Email"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]any{"Alice", "alice@example.com"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows, err := ReadSpreadsheet("roster.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("ReadSpreadsheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows[1].Cells[0]; got != "Alice" {
		t.Errorf("cell = %v", got)
	}
}

func TestReadSpreadsheetUnknownExtension(t *testing.T) {
	_, err := ReadSpreadsheet("roster.pdf", []byte("whatever"))
	if !errors.Is(err, ErrorUnreadableFile) {
		t.Fatalf("expected ErrorUnreadableFile, got %v", err)
	}
}

func TestReadSpreadsheetMalformedJSON(t *testing.T) {
	_, err := ReadSpreadsheet("roster.json", []byte(`{"not": "an array"}`))
	if !errors.Is(err, ErrorUnreadableFile) {
		t.Fatalf("expected ErrorUnreadableFile, got %v", err)
	}
}
