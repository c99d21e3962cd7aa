package sheets

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidURL is returned for a sheet link without a /d/<id>/ segment.
var ErrInvalidURL = errors.New("invalid Google Sheet URL")

// SpreadsheetIDFromURL extracts the spreadsheet id from a sharing link such
// as https://docs.google.com/spreadsheets/d/<id>/edit#gid=0.
func SpreadsheetIDFromURL(link string) (string, error) {
	_, rest, ok := strings.Cut(link, "/d/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, link)
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	id, _, _ = strings.Cut(id, "#")
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, link)
	}
	return id, nil
}

// ColumnLetters converts a 0-based column index to A1 letters: 0 is A,
// 25 is Z, 26 is AA.
func ColumnLetters(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// CellRef returns the A1 reference of a data cell. Data row 0 is sheet
// row 2 because the header occupies row 1.
func CellRef(sheet string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), ColumnLetters(col), row+2)
}

// DefaultRange is the range read every cycle when none is configured: the
// whole tab up to column ZZ.
func DefaultRange(sheet string) string {
	return quoteSheet(sheet) + "!A:ZZ"
}

// quoteSheet wraps sheet names that A1 notation cannot take bare.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
