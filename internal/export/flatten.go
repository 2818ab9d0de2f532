package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jjenkins/readiness/internal/model"
)

// Fixed leading columns of every export
const (
	ColumnResponseID   = "Response ID"
	ColumnBusinessName = "Business Name"
	ColumnEmail        = "Email"
	ColumnStatus       = "Status"
	ColumnProgress     = "Progress (%)"
	ColumnCreatedAt    = "Created At"
	ColumnUpdatedAt    = "Updated At"
)

var fixedColumns = []string{
	ColumnResponseID,
	ColumnBusinessName,
	ColumnEmail,
	ColumnStatus,
	ColumnProgress,
	ColumnCreatedAt,
	ColumnUpdatedAt,
}

// Status labels written to the Status column
const (
	StatusCompleteLabel   = "เสร็จสมบูรณ์"
	StatusIncompleteLabel = "ยังไม่เสร็จ"
)

// table is the flattened form shared by both writers. Cells are strings
// except progress, which stays an int so spreadsheets store it as a number.
type table struct {
	header []string
	rows   [][]any
}

func (e *Exporter) flatten(records []model.ResponseRecord) table {
	var t table
	if len(records) == 0 {
		return t
	}

	t.header = append(t.header, fixedColumns...)
	seen := make(map[string]bool, len(fixedColumns))
	for _, c := range fixedColumns {
		seen[c] = true
	}

	flat := make([]map[string]any, len(records))
	for i, rec := range records {
		row := map[string]any{
			ColumnResponseID:   rec.ID,
			ColumnBusinessName: rec.BusinessName.String,
			ColumnEmail:        rec.Email.String,
			ColumnStatus:       statusLabel(rec.Completed),
			ColumnProgress:     rec.Progress,
			ColumnCreatedAt:    FormatTimestamp(rec.CreatedAt, e.location),
			ColumnUpdatedAt:    FormatTimestamp(rec.UpdatedAt, e.location),
		}

		for _, a := range rec.Answers {
			name := e.columnName(a.QuestionID)
			row[name] = model.DisplayValue(a.Value)
			if !seen[name] {
				seen[name] = true
				t.header = append(t.header, name)
			}
		}
		flat[i] = row
	}

	t.rows = make([][]any, len(flat))
	for i, row := range flat {
		cells := make([]any, len(t.header))
		for j, name := range t.header {
			v, ok := row[name]
			if !ok {
				v = ""
			}
			cells[j] = v
		}
		t.rows[i] = cells
	}

	return t
}

func (e *Exporter) columnName(questionID int) string {
	if text := e.catalog.QuestionText(questionID); text != "" {
		return fmt.Sprintf("Q%d: %s", questionID, text)
	}
	return fmt.Sprintf("Q%d", questionID)
}

func statusLabel(completed bool) string {
	if completed {
		return StatusCompleteLabel
	}
	return StatusIncompleteLabel
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// FormatTimestamp renders t the way Thai spreadsheets show dates:
// day/month/Buddhist-era year followed by the time, e.g. 15/1/2567 16:30:00
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d/%d/%d %d:%02d:%02d",
		t.Day(), int(t.Month()), t.Year()+543, t.Hour(), t.Minute(), t.Second())
}

var thaiMonths = [...]string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

// FormatDisplayDate renders t with the Thai month name for the dashboard,
// e.g. 15 มกราคม 2567 16:30
func FormatDisplayDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d %s %d %02d:%02d",
		t.Day(), thaiMonths[t.Month()-1], t.Year()+543, t.Hour(), t.Minute())
}
