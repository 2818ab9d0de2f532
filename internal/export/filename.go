package export

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ContentType is the MIME type served for an export format
func ContentType(f Format) string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// Filename names an export file. A single response with a business name is
// named after the business; anything else is named by count. The date is
// taken from now in UTC.
func Filename(f Format, count int, businessName string, now time.Time) string {
	date := now.UTC().Format("2006-01-02")
	if count == 1 && businessName != "" {
		return fmt.Sprintf("response-%s-%s.%s", SanitizeName(businessName), date, f.Extension())
	}
	return fmt.Sprintf("responses-%d-%s.%s", count, date, f.Extension())
}

// SanitizeName replaces every character that is not a letter, digit, Thai
// character, hyphen or underscore with an underscore
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == '_':
			return r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case unicode.Is(unicode.Thai, r):
			return r
		}
		return '_'
	}, name)
}
