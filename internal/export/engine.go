package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/model"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for any format other than csv or xlsx
var ErrUnsupportedFormat = errors.New(`format must be either "csv" or "xlsx"`)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrUnsupportedFormat, s)
}

// Extension is the file extension for the format, without the dot
func (f Format) Extension() string { return string(f) }

// Exporter turns response records into CSV or XLSX files
type Exporter struct {
	catalog  *catalog.Catalog
	location *time.Location
}

// NewExporter creates an Exporter that names answer columns from cat and
// renders timestamps in loc
func NewExporter(cat *catalog.Catalog, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{catalog: cat, location: loc}
}

// Export renders records in the requested format. Records should already be
// ordered and carry their answers sorted by question id.
func (e *Exporter) Export(records []model.ResponseRecord, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return writeCSV(e.flatten(records)), nil
	case FormatXLSX:
		return writeXLSX(e.flatten(records))
	}
	return nil, fmt.Errorf("%w: got %q", ErrUnsupportedFormat, format)
}
