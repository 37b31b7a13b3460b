// Package transfer moves one Google Sheet or Google Doc between Drive and the
// local disk, picking the export or import MIME type from the document kind.
package transfer

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gdrive-transfer/errs"
)

// Kind is the type of Google Workspace document being transferred.
type Kind int

const (
	KindSheet Kind = iota
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindSheet:
		return "sheet"
	case KindDocument:
		return "document"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Direction says whether content leaves or enters Drive.
type Direction int

const (
	DirectionExport Direction = iota
	DirectionUpload
)

func (d Direction) String() string {
	switch d {
	case DirectionExport:
		return "export"
	case DirectionUpload:
		return "upload"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MimeTable maps a short format tag (csv, docx, ...) to its MIME type.
type MimeTable map[string]string

// Tags returns the table's format tags in sorted order.
func (t MimeTable) Tags() []string {
	return slices.Sorted(maps.Keys(t))
}

// Tables holds one MimeTable per kind.
type Tables struct {
	Sheet    MimeTable
	Document MimeTable
}

// DefaultTables lists the export formats Drive offers for Sheets and Docs.
// https://developers.google.com/drive/api/guides/ref-export-formats
func DefaultTables() Tables {
	return Tables{
		Sheet: MimeTable{
			"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"ods":  "application/x-vnd.oasis.opendocument.spreadsheet",
			"pdf":  "application/pdf",
			"html": "application/zip",
			"csv":  "text/csv",
			"tsv":  "text/tab-separated-values",
		},
		Document: MimeTable{
			"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"odt":  "application/vnd.oasis.opendocument.text",
			"rtf":  "application/rtf",
			"pdf":  "application/pdf",
			"txt":  "text/plain",
			"html": "application/zip",
			"epub": "application/epub+zip",
		},
	}
}

// For returns the table for kind.
func (t Tables) For(kind Kind) MimeTable {
	switch kind {
	case KindSheet:
		return t.Sheet
	case KindDocument:
		return t.Document
	default:
		return nil
	}
}

// Resolve returns the MIME type for format on kind. Tags are matched
// case-insensitively.
func (t Tables) Resolve(kind Kind, format string) (string, error) {
	mime, ok := t.For(kind)[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return "", &errs.UnsupportedFormatError{Kind: kind.String(), Format: format}
	}
	return mime, nil
}
