// Package export renders a page and its live subtree as a printable
// outline, delivered as PDF or Markdown.
package export

import (
	"errors"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
)

// Request contains parameters for an export operation.
type Request struct {
	OrganizationID string
	PageID         string
	Format         Format
}

// PageInfo is the slice of page state the exporter needs.
type PageInfo struct {
	ID        string
	ParentID  *string
	Position  int
	Title     string
	Icon      string
	UpdatedBy string
	UpdatedAt time.Time
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPageUnavailable indicates the page could not be loaded for export.
	ErrPageUnavailable = errors.New("export page unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not known.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)
