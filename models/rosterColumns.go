package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rosterpilot/roster_backend/utils"
)

// ColumnSelector records how one mapped roster field is pulled out of a raw
// row: by position for header-based files, by key for key-based rows.
type ColumnSelector struct {
	Type       string `json:"type"` // "index" or "key"
	Index      int    `json:"index,omitempty"`
	Key        string `json:"key,omitempty"`
	Normalized string `json:"normalized,omitempty"`
}

const (
	selectorTypeIndex = "index"
	selectorTypeKey   = "key"
)

var jerseyPattern = regexp.MustCompile(`^\d{1,5}$`)

// NormalizeColumnIdentifier makes a column heading comparable across
// whitespace, case, BOM and control-character variations.
func NormalizeColumnIdentifier(value string) string {
	value = strings.TrimPrefix(value, "\uFEFF")
	var b strings.Builder
	for _, r := range value {
		if r <= 0x1F || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}

func stripBOMAndTrim(value string) string {
	for strings.HasPrefix(value, "\uFEFF") {
		value = strings.TrimPrefix(value, "\uFEFF")
	}
	return strings.TrimSpace(value)
}

// cellToHeading flattens one header cell to its display text. Nested
// collections are joined with single spaces.
func cellToHeading(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			parts = append(parts, strings.TrimSpace(cellToHeading(item)))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// AvailableColumnNames lists the distinct mappable column names found in the
// raw rows, preserving first-seen order.
func AvailableColumnNames(rows []utils.RawRow) []string {
	if len(rows) == 0 {
		return []string{}
	}

	if rows[0].IsKeyed() {
		columns := []string{}
		for _, row := range rows {
			for _, key := range row.KeyOrder {
				clean := stripBOMAndTrim(key)
				if clean == "" {
					continue
				}
				columns = append(columns, clean)
			}
			if len(columns) > 0 {
				break
			}
		}
		if len(columns) == 0 {
			return []string{}
		}
		return utils.UniqueSlice(columns)
	}

	header := rows[0].Cells
	columns := []string{}
	for _, cell := range header {
		heading := stripBOMAndTrim(cellToHeading(cell))
		if heading == "" {
			continue
		}
		columns = append(columns, heading)
	}
	return columns
}

// BuildColumnSelectors resolves the user's field-to-column mapping against
// the raw rows. It returns the selectors together with the data rows, with
// the header row already stripped off for header-based files.
func BuildColumnSelectors(columnMap map[string]any, rows []utils.RawRow) (map[string]ColumnSelector, []utils.RawRow, error) {

	if len(rows) > 0 && rows[0].IsKeyed() {
		lookup := map[string]string{}
		order := []string{}
		for _, row := range rows {
			for _, key := range row.KeyOrder {
				normalized := NormalizeColumnIdentifier(key)
				if normalized == "" {
					continue
				}
				if _, ok := lookup[normalized]; !ok {
					order = append(order, normalized)
				}
				lookup[normalized] = key
			}
			if len(lookup) > 0 {
				break
			}
		}

		selectors, err := buildSelectorsFromLookup(columnMap, order, func(normalized string) (ColumnSelector, bool) {
			key, ok := lookup[normalized]
			if !ok {
				return ColumnSelector{}, false
			}
			return ColumnSelector{Type: selectorTypeKey, Key: key, Normalized: normalized}, true
		})
		if err != nil {
			return nil, nil, err
		}
		return selectors, rows, nil
	}

	if len(rows) == 0 {
		return nil, nil, NewValidationError("file", "Unable to read the header row from the upload.")
	}

	header := rows[0].Cells
	dataRows := rows[1:]

	lookup := map[string]int{}
	order := []string{}
	for index, cell := range header {
		heading := cellToHeading(cell)
		normalized := NormalizeColumnIdentifier(heading)
		if normalized == "" {
			continue
		}
		if _, ok := lookup[normalized]; !ok {
			order = append(order, normalized)
		}
		lookup[normalized] = index
	}

	selectors, err := buildSelectorsFromLookup(columnMap, order, func(normalized string) (ColumnSelector, bool) {
		index, ok := lookup[normalized]
		if !ok {
			return ColumnSelector{}, false
		}
		return ColumnSelector{Type: selectorTypeIndex, Index: index, Normalized: normalized}, true
	})
	if err != nil {
		return nil, nil, err
	}
	return selectors, dataRows, nil
}

func buildSelectorsFromLookup(columnMap map[string]any, availableColumns []string, resolve func(string) (ColumnSelector, bool)) (map[string]ColumnSelector, error) {

	selectors := map[string]ColumnSelector{}

	for _, field := range []string{FieldFullName, FieldEmail, FieldJersey, FieldPosition} {
		column, ok := columnMap[field]
		if !ok || column == nil {
			continue
		}

		if index, isNumeric := numericIndex(column); isNumeric {
			selectors[field] = ColumnSelector{Type: selectorTypeIndex, Index: index}
			continue
		}

		raw := cellToHeading(column)
		if strings.TrimSpace(raw) == "" {
			continue
		}

		normalized := NormalizeColumnIdentifier(raw)
		selector, found := resolve(normalized)
		if !found {
			available := strings.Join(availableColumns, ", ")
			if available == "" {
				available = "none"
			}
			return nil, NewValidationError(
				"column_map."+field,
				fmt.Sprintf("Column '%s' was not found in the file header. Available columns: %s", raw, available),
			)
		}
		selectors[field] = selector
	}

	for _, required := range []string{FieldFullName, FieldEmail} {
		if _, ok := selectors[required]; !ok {
			return nil, NewValidationError("column_map."+required, "This field is required.")
		}
	}

	return selectors, nil
}

// numericIndex treats whole numbers (and digit strings) as direct
// positional column indexes.
func numericIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int(f), true
		}
		return 0, false
	default:
		if num, ok := value.(interface{ Int64() (int64, error) }); ok {
			if n, err := num.Int64(); err == nil {
				return int(n), true
			}
		}
		return 0, false
	}
}

// cellValue pulls the selector's cell out of one raw row.
func cellValue(row utils.RawRow, selector ColumnSelector) any {
	if selector.Type == selectorTypeIndex {
		if row.IsKeyed() {
			return nil
		}
		if selector.Index < 0 || selector.Index >= len(row.Cells) {
			return nil
		}
		return row.Cells[selector.Index]
	}

	target := selector.Normalized
	if target == "" {
		target = NormalizeColumnIdentifier(selector.Key)
	}
	for key, value := range row.Keyed {
		if NormalizeColumnIdentifier(key) == target {
			return value
		}
	}
	return nil
}

// cellString coerces a cell to a trimmed string, or nil when the cell is
// absent or non-textual.
func cellString(cell any) *string {
	switch v := cell.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(v)
		return &s
	case int:
		s := strconv.Itoa(v)
		return &s
	case int64:
		s := strconv.FormatInt(v, 10)
		return &s
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		if num, ok := cell.(fmt.Stringer); ok {
			s := strings.TrimSpace(num.String())
			return &s
		}
		return nil
	}
}

// ExtractRowPayload normalizes one raw row into the fixed roster field set.
// A nil result means the row is entirely blank and should be skipped.
func ExtractRowPayload(row utils.RawRow, selectors map[string]ColumnSelector) *RowPayload {

	fields := map[string]*string{}
	for field, selector := range selectors {
		value := cellString(cellValue(row, selector))

		if field == FieldJersey && value != nil && *value == "" {
			value = nil
		}
		fields[field] = value
	}

	payload := &RowPayload{
		FullName: fields[FieldFullName],
		Email:    fields[FieldEmail],
		Jersey:   fields[FieldJersey],
		Position: fields[FieldPosition],
	}

	if isBlankField(payload.FullName) && isBlankField(payload.Email) &&
		isBlankField(payload.Jersey) && isBlankField(payload.Position) {
		return nil
	}

	if payload.Email != nil && *payload.Email != "" {
		lowered := strings.ToLower(*payload.Email)
		payload.Email = &lowered
	}

	return payload
}

func isBlankField(value *string) bool {
	return value == nil || *value == ""
}

// SeenEmails tracks which emails have already claimed a valid row in the
// current dry run.
type SeenEmails map[string]bool

func NewSeenEmails() SeenEmails {
	return SeenEmails{}
}

// ValidateRowPayload applies the per-field rules and registers the row's
// email in seen when the row is fully valid.
func ValidateRowPayload(payload *RowPayload, seen SeenEmails) ErrorBag {

	errors := ErrorBag{}

	name := utils.DereferencePtr(payload.FullName)
	email := utils.DereferencePtr(payload.Email)

	if strings.TrimSpace(name) == "" {
		errors[FieldFullName] = append(errors[FieldFullName], "Player name is required.")
	} else if utf8.RuneCountInString(name) > 255 {
		errors[FieldFullName] = append(errors[FieldFullName], "Player name must be less than 255 characters.")
	}

	if strings.TrimSpace(email) == "" {
		errors[FieldEmail] = append(errors[FieldEmail], "Email is required.")
	} else if !utils.IsValidEmail(email) {
		errors[FieldEmail] = append(errors[FieldEmail], "Email format is invalid.")
	} else if seen[email] {
		errors[FieldEmail] = append(errors[FieldEmail], "Duplicate email found in upload.")
	}

	if payload.Jersey != nil && *payload.Jersey != "" {
		if !jerseyPattern.MatchString(*payload.Jersey) {
			errors[FieldJersey] = append(errors[FieldJersey], "Jersey must be numeric.")
		}
	}

	if len(errors) == 0 && email != "" {
		seen[email] = true
	}

	return errors
}
