package export

import (
	"bytes"
	"strings"
)

// utf8BOM lets spreadsheet applications detect UTF-8 and show Thai text
const utf8BOM = "\ufeff"

// writeCSV renders the table as BOM-prefixed CSV with "\n" between lines
// and no trailing newline. An empty table produces no bytes.
func writeCSV(t table) []byte {
	if len(t.header) == 0 {
		return []byte{}
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	writeCSVLine(&buf, t.header)
	for _, row := range t.rows {
		buf.WriteByte('\n')
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellText(v)
		}
		writeCSVLine(&buf, cells)
	}
	return buf.Bytes()
}

func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(escapeCSV(f))
	}
}

// escapeCSV quotes fields holding a comma, quote, CR or LF and doubles
// embedded quotes
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
