package templates

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/service"
)

// DashboardData is everything the response list page shows
type DashboardData struct {
	Page           *service.ResponsePage
	Params         service.ListParams
	Stats          *model.ResponseStats
	TotalQuestions int
	Location       *time.Location
}

// DetailData is everything the response detail page shows
type DetailData struct {
	Record         *model.ResponseRecord
	Sections       []service.SectionView
	TotalQuestions int
	Location       *time.Location
}

type selectOption struct {
	Value string
	Label string
}

var statusOptions = []selectOption{
	{model.StatusAll, "ทั้งหมด"},
	{model.StatusCompleted, "เสร็จสมบูรณ์"},
	{model.StatusIncomplete, "ยังไม่เสร็จ"},
}

var sortOptions = []selectOption{
	{"updated", "อัพเดทล่าสุด"},
	{"created", "วันที่สร้าง"},
	{"progress", "ความคืบหน้า"},
	{"name", "ชื่อบริษัท"},
}

var orderOptions = []selectOption{
	{"desc", "มากไปน้อย"},
	{"asc", "น้อยไปมาก"},
}

func businessName(r model.Response) string {
	if r.BusinessName.String == "" {
		return "ยังไม่ระบุชื่อบริษัท"
	}
	return r.BusinessName.String
}

// sortOrder is the order the select shows; anything but asc sorts descending
func sortOrder(p service.ListParams) string {
	if p.Order == "asc" {
		return "asc"
	}
	return "desc"
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v)
}

func detailURL(id string) templ.SafeURL {
	return templ.URL("/admin/" + url.PathEscape(id))
}

func exportURL(id, format string) templ.SafeURL {
	return templ.URL("/admin/" + url.PathEscape(id) + "/export?format=" + format)
}

// pageLink keeps the active filters when moving between pages
func pageLink(d DashboardData, page int) templ.SafeURL {
	q := url.Values{}
	for k, v := range map[string]string{
		"search": d.Params.Search,
		"status": d.Params.Status,
		"sort":   d.Params.SortBy,
		"order":  d.Params.Order,
		"page":   strconv.Itoa(page),
		"limit":  strconv.Itoa(d.Page.Limit),
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	return templ.URL("/admin?" + q.Encode())
}
