package models

import (
	"strings"
	"testing"

	"github.com/rosterpilot/roster_backend/utils"
)

func strPtr(s string) *string {
	return &s
}

func headerRows(header []any, data ...[]any) []utils.RawRow {
	rows := []utils.RawRow{{Cells: header}}
	for _, cells := range data {
		rows = append(rows, utils.RawRow{Cells: cells})
	}
	return rows
}

func TestNormalizeColumnIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Full Name", "full name"},
		{"  Email  ", "email"},
		{"\uFEFFJersey", "jersey"},
		{"Posi\ttion", "position"},
		{"NAME\x00", "name"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeColumnIdentifier(c.in); got != c.want {
			t.Errorf("NormalizeColumnIdentifier(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAvailableColumnNamesHeaderFile(t *testing.T) {
	rows := headerRows([]any{"\uFEFFFull Name", "Email", "", "Jersey #"})
	got := AvailableColumnNames(rows)
	want := []string{"Full Name", "Email", "Jersey #"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAvailableColumnNamesKeyedRows(t *testing.T) {
	rows := []utils.RawRow{
		{Keyed: map[string]any{"name": "A", "email": "a@x.com"}, KeyOrder: []string{"name", "email"}},
		{Keyed: map[string]any{"name": "B", "phone": "1"}, KeyOrder: []string{"name", "phone"}},
	}
	got := AvailableColumnNames(rows)
	// Only the first contributing row's keys are reported.
	want := []string{"name", "email"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAvailableColumnNamesEmpty(t *testing.T) {
	if got := AvailableColumnNames(nil); len(got) != 0 {
		t.Errorf("expected no columns, got %v", got)
	}
}

func TestBuildColumnSelectorsHeaderFile(t *testing.T) {
	rows := headerRows(
		[]any{"Full Name", "Email Address", "Jersey"},
		[]any{"Alice", "alice@example.com", "10"},
	)
	columnMap := map[string]any{
		"full_name": "full name",
		"email":     "Email Address",
		"jersey":    "JERSEY",
	}

	selectors, dataRows, err := BuildColumnSelectors(columnMap, rows)
	if err != nil {
		t.Fatalf("BuildColumnSelectors: %v", err)
	}
	if len(dataRows) != 1 {
		t.Fatalf("expected header row stripped, got %d data rows", len(dataRows))
	}
	if sel := selectors[FieldFullName]; sel.Type != "index" || sel.Index != 0 {
		t.Errorf("full_name selector = %+v", sel)
	}
	if sel := selectors[FieldEmail]; sel.Index != 1 {
		t.Errorf("email selector = %+v", sel)
	}
	if sel := selectors[FieldJersey]; sel.Index != 2 {
		t.Errorf("jersey selector = %+v", sel)
	}
	if _, ok := selectors[FieldPosition]; ok {
		t.Errorf("position should not be mapped")
	}
}

func TestBuildColumnSelectorsNumericIndex(t *testing.T) {
	rows := headerRows(
		[]any{"A", "B"},
		[]any{"Alice", "alice@example.com"},
	)
	columnMap := map[string]any{
		"full_name": 0,
		"email":     "1",
	}

	selectors, _, err := BuildColumnSelectors(columnMap, rows)
	if err != nil {
		t.Fatalf("BuildColumnSelectors: %v", err)
	}
	if sel := selectors[FieldFullName]; sel.Type != "index" || sel.Index != 0 {
		t.Errorf("full_name selector = %+v", sel)
	}
	if sel := selectors[FieldEmail]; sel.Type != "index" || sel.Index != 1 {
		t.Errorf("email selector = %+v", sel)
	}
}

func TestBuildColumnSelectorsUnknownColumn(t *testing.T) {
	rows := headerRows([]any{"Full Name", "Email"})
	columnMap := map[string]any{
		"full_name": "Full Name",
		"email":     "Mail",
	}

	_, _, err := BuildColumnSelectors(columnMap, rows)
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	messages := vErr.Errors["column_map.email"]
	if len(messages) != 1 {
		t.Fatalf("unexpected error bag: %v", vErr.Errors)
	}
	want := "Column 'Mail' was not found in the file header. Available columns: full name, email"
	if messages[0] != want {
		t.Errorf("message = %q, want %q", messages[0], want)
	}
}

func TestBuildColumnSelectorsRequiredFields(t *testing.T) {
	rows := headerRows([]any{"Full Name", "Email"})
	columnMap := map[string]any{
		"full_name": "Full Name",
	}

	_, _, err := BuildColumnSelectors(columnMap, rows)
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	messages := vErr.Errors["column_map.email"]
	if len(messages) != 1 || messages[0] != "This field is required." {
		t.Errorf("unexpected error bag: %v", vErr.Errors)
	}
}

func TestBuildColumnSelectorsNoRows(t *testing.T) {
	_, _, err := BuildColumnSelectors(map[string]any{"full_name": "Name", "email": "Email"}, nil)
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	messages := vErr.Errors["file"]
	if len(messages) != 1 || messages[0] != "Unable to read the header row from the upload." {
		t.Errorf("unexpected error bag: %v", vErr.Errors)
	}
}

func TestBuildColumnSelectorsKeyedRows(t *testing.T) {
	rows := []utils.RawRow{
		{Keyed: map[string]any{"Name": "Alice", "E-Mail": "alice@example.com"}, KeyOrder: []string{"Name", "E-Mail"}},
	}
	columnMap := map[string]any{
		"full_name": "name",
		"email":     "e-mail",
	}

	selectors, dataRows, err := BuildColumnSelectors(columnMap, rows)
	if err != nil {
		t.Fatalf("BuildColumnSelectors: %v", err)
	}
	if len(dataRows) != 1 {
		t.Fatalf("keyed rows must not be stripped, got %d rows", len(dataRows))
	}
	if sel := selectors[FieldFullName]; sel.Type != "key" || sel.Key != "Name" {
		t.Errorf("full_name selector = %+v", sel)
	}
	if sel := selectors[FieldEmail]; sel.Key != "E-Mail" {
		t.Errorf("email selector = %+v", sel)
	}
}

func TestExtractRowPayload(t *testing.T) {
	selectors := map[string]ColumnSelector{
		FieldFullName: {Type: "index", Index: 0},
		FieldEmail:    {Type: "index", Index: 1},
		FieldJersey:   {Type: "index", Index: 2},
		FieldPosition: {Type: "index", Index: 3},
	}

	payload := ExtractRowPayload(utils.RawRow{Cells: []any{" Alice ", "Alice@Example.COM", "", "Forward"}}, selectors)
	if payload == nil {
		t.Fatal("expected payload")
	}
	if got := utils.DereferencePtr(payload.FullName); got != "Alice" {
		t.Errorf("full name = %q", got)
	}
	if got := utils.DereferencePtr(payload.Email); got != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", got)
	}
	if payload.Jersey != nil {
		t.Errorf("blank jersey should be nil, got %q", *payload.Jersey)
	}
	if got := utils.DereferencePtr(payload.Position); got != "Forward" {
		t.Errorf("position = %q", got)
	}
}

func TestExtractRowPayloadBlankRow(t *testing.T) {
	selectors := map[string]ColumnSelector{
		FieldFullName: {Type: "index", Index: 0},
		FieldEmail:    {Type: "index", Index: 1},
	}
	if payload := ExtractRowPayload(utils.RawRow{Cells: []any{"", "  "}}, selectors); payload != nil {
		t.Errorf("blank row should yield nil, got %+v", payload)
	}
	// Short rows behave like blank cells.
	if payload := ExtractRowPayload(utils.RawRow{Cells: []any{}}, selectors); payload != nil {
		t.Errorf("empty row should yield nil, got %+v", payload)
	}
}

func TestValidateRowPayload(t *testing.T) {
	cases := []struct {
		name      string
		payload   RowPayload
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing name",
			payload:   RowPayload{Email: strPtr("a@x.com")},
			wantField: FieldFullName,
			wantMsg:   "Player name is required.",
		},
		{
			name:      "name too long",
			payload:   RowPayload{FullName: strPtr(strings.Repeat("x", 256)), Email: strPtr("a@x.com")},
			wantField: FieldFullName,
			wantMsg:   "Player name must be less than 255 characters.",
		},
		{
			name:      "missing email",
			payload:   RowPayload{FullName: strPtr("Alice")},
			wantField: FieldEmail,
			wantMsg:   "Email is required.",
		},
		{
			name:      "bad email",
			payload:   RowPayload{FullName: strPtr("Alice"), Email: strPtr("not-an-email")},
			wantField: FieldEmail,
			wantMsg:   "Email format is invalid.",
		},
		{
			name:      "bad jersey",
			payload:   RowPayload{FullName: strPtr("Alice"), Email: strPtr("a@x.com"), Jersey: strPtr("12a")},
			wantField: FieldJersey,
			wantMsg:   "Jersey must be numeric.",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			errors := ValidateRowPayload(&c.payload, NewSeenEmails())
			messages := errors[c.wantField]
			found := false
			for _, m := range messages {
				if m == c.wantMsg {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %q under %q, got %v", c.wantMsg, c.wantField, errors)
			}
		})
	}
}

func TestValidateRowPayloadNameAt255Runes(t *testing.T) {
	payload := RowPayload{FullName: strPtr(strings.Repeat("é", 255)), Email: strPtr("a@x.com")}
	if errors := ValidateRowPayload(&payload, NewSeenEmails()); len(errors) != 0 {
		t.Errorf("255-rune name should pass, got %v", errors)
	}
}

func TestValidateRowPayloadDuplicateEmail(t *testing.T) {
	seen := NewSeenEmails()

	first := RowPayload{FullName: strPtr("Alice"), Email: strPtr("a@x.com")}
	if errors := ValidateRowPayload(&first, seen); len(errors) != 0 {
		t.Fatalf("first row should pass, got %v", errors)
	}

	second := RowPayload{FullName: strPtr("Alice Again"), Email: strPtr("a@x.com")}
	errors := ValidateRowPayload(&second, seen)
	messages := errors[FieldEmail]
	if len(messages) != 1 || messages[0] != "Duplicate email found in upload." {
		t.Errorf("expected duplicate email error, got %v", errors)
	}
}

func TestValidateRowPayloadInvalidRowDoesNotClaimEmail(t *testing.T) {
	seen := NewSeenEmails()

	// Invalid row: email stays unclaimed.
	invalid := RowPayload{Email: strPtr("a@x.com")}
	if errors := ValidateRowPayload(&invalid, seen); len(errors) == 0 {
		t.Fatal("expected errors for missing name")
	}

	valid := RowPayload{FullName: strPtr("Alice"), Email: strPtr("a@x.com")}
	if errors := ValidateRowPayload(&valid, seen); len(errors) != 0 {
		t.Errorf("valid row after invalid one should pass, got %v", errors)
	}
}

func TestEscapeForCsv(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with,comma", `"with,comma"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{"", ""},
	}
	for _, c := range cases {
		if got := escapeForCsv(c.in); got != c.want {
			t.Errorf("escapeForCsv(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFlattenErrorBagOrder(t *testing.T) {
	bag := ErrorBag{
		FieldJersey:   {"Jersey must be numeric."},
		FieldFullName: {"Player name is required."},
		FieldEmail:    {"Email is required."},
	}
	got := flattenErrorBag(bag)
	want := []string{"Player name is required.", "Email is required.", "Jersey must be numeric."}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}
