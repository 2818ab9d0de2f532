package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilename(t *testing.T) {
	day := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		format Format
		count  int
		biz    string
		want   string
	}{
		{"single named", FormatCSV, 1, "Acme Co.", "response-Acme_Co_-2024-01-15.csv"},
		{"single named xlsx", FormatXLSX, 1, "Acme Co.", "response-Acme_Co_-2024-01-15.xlsx"},
		{"batch", FormatCSV, 5, "", "responses-5-2024-01-15.csv"},
		{"batch ignores name", FormatXLSX, 5, "Acme", "responses-5-2024-01-15.xlsx"},
		{"single unnamed", FormatCSV, 1, "", "responses-1-2024-01-15.csv"},
		{"thai name", FormatCSV, 1, "ร้านกาแฟ ดีจัง!", "response-ร้านกาแฟ_ดีจัง_-2024-01-15.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.format, tt.count, tt.biz, day))
		})
	}
}

func TestFilenameUsesUTCDate(t *testing.T) {
	// 2024-01-16 01:00 in Bangkok is still the 15th in UTC
	local := time.Date(2024, 1, 16, 1, 0, 0, 0, time.FixedZone("ICT", 7*60*60))
	assert.Equal(t, "responses-2-2024-01-15.csv", Filename(FormatCSV, 2, "", local))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a-b_c", SanitizeName("a-b_c"))
	assert.Equal(t, "a_b_c_", SanitizeName("a/b c."))
	assert.Equal(t, "Caf\u00e9_2", SanitizeName("Caf\u00e9 2"))
	assert.Equal(t, "", SanitizeName(""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", ContentType(FormatCSV))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ContentType(FormatXLSX))
	assert.Equal(t, "application/octet-stream", ContentType(Format("pdf")))
}
