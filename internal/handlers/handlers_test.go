package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/readiness/internal/auth"
	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/export"
	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/service"
	"github.com/jjenkins/readiness/internal/store"
)

type testEnv struct {
	app    *fiber.App
	db     *sql.DB
	svc    *service.ResponseService
	auth   *auth.Authenticator
	cat    *catalog.Catalog
	cookie string
	logs   *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.NewDB(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = store.RunMigrations(db, "")
	require.NoError(t, err)

	cat, err := catalog.Default()
	require.NoError(t, err)

	svc := service.NewResponseService(store.NewResponseStore(db), cat, nil)
	a := auth.NewAuthenticator(auth.Options{
		Username: "admin",
		Password: "s3cret",
		Secret:   "test-secret",
		TTL:      time.Hour,
	})

	logs := &bytes.Buffer{}
	app := fiber.New()
	Register(app, Deps{
		Responses: svc,
		Exporter:  export.NewExporter(cat, time.UTC),
		Auth:      a,
		Location:  time.UTC,
		Logger:    slog.New(slog.NewJSONHandler(logs, nil)),
	})

	token, _, err := a.IssueToken("admin")
	require.NoError(t, err)

	return &testEnv{app: app, db: db, svc: svc, auth: a, cat: cat, cookie: token, logs: logs}
}

// do sends body as JSON; a string body is sent as a url-encoded form
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie string) *http.Response {
	t.Helper()

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
		contentType = fiber.MIMEApplicationForm
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
		contentType = fiber.MIMEApplicationJSON
	}

	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: cookie})
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (e *testEnv) seed(t *testing.T, token, name string, questionIDs ...int) string {
	t.Helper()
	ctx := context.Background()

	inputs := make([]service.AnswerInput, len(questionIDs))
	for i, id := range questionIDs {
		inputs[i] = service.AnswerInput{QuestionID: id, Value: model.TextValue(fmt.Sprintf("answer %d", id))}
	}
	res, err := e.svc.SaveSection(ctx, service.SaveSectionRequest{SessionToken: token, Answers: inputs})
	require.NoError(t, err)

	if name != "" {
		_, err = e.svc.SaveMetadata(ctx, service.MetadataRequest{
			SessionToken:   token,
			ResponseUpdate: model.ResponseUpdate{BusinessName: &name},
		})
		require.NoError(t, err)
	}
	return res.ResponseID
}

func TestQuestionnaire(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/api/questionnaire", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, float64(e.cat.TotalQuestions()), body["totalQuestions"])
	assert.Len(t, body["sections"], len(e.cat.Sections()))
}

func TestSaveAnswersAndResume(t *testing.T) {
	e := newTestEnv(t)
	// question 11 lives in section 2; the client's section id is corrected
	multi := 11

	resp := e.do(t, http.MethodPost, "/api/answers", map[string]any{
		"sessionToken": "tok-1",
		"sectionId":    1,
		"progress":     99,
		"answers": []map[string]any{
			{"questionId": 1, "sectionId": 1, "value": "Acme"},
			{"questionId": multi, "sectionId": 1, "value": []string{"a", "b"}},
		},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["responseId"])
	assert.Equal(t, float64(service.CalculateProgress(2, e.cat.TotalQuestions())), body["progress"])

	resp = e.do(t, http.MethodGet, "/api/responses?sessionToken=tok-1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec := decode(t, resp)
	assert.Equal(t, body["responseId"], rec["id"])
	assert.Equal(t, "tok-1", rec["sessionToken"])
	answers := rec["answers"].([]any)
	require.Len(t, answers, 2)

	first := answers[0].(map[string]any)
	assert.Equal(t, float64(1), first["questionId"])
	assert.Equal(t, "Acme", first["value"])

	second := answers[1].(map[string]any)
	assert.Equal(t, float64(2), second["sectionId"])
	assert.Equal(t, []any{"a", "b"}, second["value"])
}

func TestSaveAnswersValidation(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/answers", map[string]any{
		"answers": []map[string]any{{"questionId": 1, "value": "x"}},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "sessionToken is required", decode(t, resp)["error"])

	resp = e.do(t, http.MethodPost, "/api/answers", map[string]any{
		"sessionToken": "tok",
		"answers":      []map[string]any{{"questionId": 999, "value": "x"}},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unknown question 999", decode(t, resp)["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/answers", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	raw, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestResumeUnknownToken(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/api/responses?sessionToken=missing", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveMetadata(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/responses", map[string]any{
		"sessionToken": "tok",
		"email":        "not-an-email",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid email format", decode(t, resp)["error"])

	resp = e.do(t, http.MethodPost, "/api/responses", map[string]any{
		"sessionToken": "tok",
		"businessName": "Acme",
		"email":        "owner@example.com",
		"completed":    true,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Acme", body["businessName"])
	assert.Equal(t, "owner@example.com", body["email"])
	assert.Equal(t, true, body["completed"])
	assert.Equal(t, float64(0), body["progress"])
}

func TestAdminRoutesRequireSession(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/api/responses", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/responses/export", map[string]any{"ids": []string{"x"}, "format": "csv"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/admin", nil, "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, auth.LoginPath, resp.Header.Get(fiber.HeaderLocation))

	resp = e.do(t, http.MethodGet, "/admin/login", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"username": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, msgMissingCredentials, decode(t, resp)["error"])

	resp = e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"username": "admin", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgInvalidCredentials, decode(t, resp)["error"])

	resp = e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"username": "admin", "password": "s3cret"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msgLoginSuccess, decode(t, resp)["message"])

	var session string
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.CookieName {
			session = ck.Value
		}
	}
	require.NotEmpty(t, session)

	resp = e.do(t, http.MethodGet, "/api/auth/check", nil, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "admin", body["username"])

	resp = e.do(t, http.MethodGet, "/api/auth/check", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/auth/logout", nil, session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msgLogoutSuccess, decode(t, resp)["message"])
}

func TestLoginForm(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/admin/login", "username=admin&password=nope", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), msgInvalidCredentials)

	resp = e.do(t, http.MethodPost, "/admin/login", "username=admin&password=s3cret", "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get(fiber.HeaderLocation))

	resp = e.do(t, http.MethodGet, "/admin/login", nil, e.cookie)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestAdminResponseLifecycle(t *testing.T) {
	e := newTestEnv(t)
	id := e.seed(t, "tok-a", "Acme", 1, 2)
	e.seed(t, "tok-b", "Beta", 1)

	resp := e.do(t, http.MethodGet, "/api/responses?search=acm&limit=10", nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode(t, resp)
	assert.Equal(t, float64(1), list["total"])
	items := list["items"].([]any)
	require.Len(t, items, 1)
	row := items[0].(map[string]any)
	assert.Equal(t, id, row["id"])
	assert.Equal(t, float64(2), row["answerCount"])
	assert.NotContains(t, row, "sessionToken")

	resp = e.do(t, http.MethodGet, "/api/responses?status=bogus", nil, e.cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPatch, "/api/responses/"+id, map[string]any{
		"businessName": "Acme Renamed",
		"answers":      []map[string]any{{"questionId": 3, "value": "Retail"}},
	}, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode(t, resp)
	assert.Equal(t, "Acme Renamed", rec["businessName"])
	assert.Len(t, rec["answers"], 3)
	assert.Equal(t, float64(service.CalculateProgress(3, e.cat.TotalQuestions())), rec["progress"])

	resp = e.do(t, http.MethodPatch, "/api/responses/"+id, map[string]any{}, e.cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/responses/"+id+"/progress-override", map[string]any{"progress": 80}, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(80), decode(t, resp)["progress"])

	resp = e.do(t, http.MethodPost, "/api/responses/"+id+"/progress-override", map[string]any{"progress": 150}, e.cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/responses/"+id+"/progress-override", map[string]any{}, e.cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "progress is required", decode(t, resp)["error"])

	resp = e.do(t, http.MethodGet, "/api/responses/"+id, nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(80), decode(t, resp)["progress"])

	resp = e.do(t, http.MethodDelete, "/api/responses/"+id, nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["success"])

	resp = e.do(t, http.MethodGet, "/api/responses/"+id, nil, e.cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Response not found", decode(t, resp)["error"])

	resp = e.do(t, http.MethodDelete, "/api/responses/"+id, nil, e.cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportSingleResponse(t *testing.T) {
	e := newTestEnv(t)
	id := e.seed(t, "tok-a", "Acme Co", 1)

	resp := e.do(t, http.MethodPost, "/api/responses/export", map[string]any{
		"ids":    []string{id},
		"format": "csv",
	}, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	date := time.Now().UTC().Format("2006-01-02")
	assert.True(t, strings.HasPrefix(
		resp.Header.Get(fiber.HeaderContentDisposition),
		`attachment; filename="response-Acme_Co-`+date+`.csv"`,
	))

	body := readBody(t, resp)
	assert.True(t, strings.HasPrefix(body, "\ufeff"))
	assert.Contains(t, body, "Acme Co")
	assert.Equal(t, int64(len(body)), resp.ContentLength)
}

func TestExportFormPost(t *testing.T) {
	e := newTestEnv(t)
	a := e.seed(t, "tok-a", "Acme", 1)
	b := e.seed(t, "tok-b", "Beta", 2)

	resp := e.do(t, http.MethodPost, "/api/responses/export", "ids="+a+"&ids="+b+"&format=xlsx", e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, export.ContentType(export.FormatXLSX), resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `filename="responses-2-`)
	assert.NotEmpty(t, readBody(t, resp))
}

func TestExportValidation(t *testing.T) {
	e := newTestEnv(t)

	tooMany := make([]string, service.MaxExportBatch+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("id-%d", i)
	}

	tests := []struct {
		name   string
		body   map[string]any
		status int
		err    string
	}{
		{"no ids", map[string]any{"format": "csv"}, http.StatusBadRequest, "Response IDs are required"},
		{"bad format", map[string]any{"ids": []string{"x"}, "format": "pdf"}, http.StatusBadRequest, `Format must be either "csv" or "xlsx"`},
		{"too many", map[string]any{"ids": tooMany, "format": "csv"}, http.StatusBadRequest, "Cannot export more than 100 responses at once"},
		{"unknown ids", map[string]any{"ids": []string{"missing"}, "format": "xlsx"}, http.StatusNotFound, "No responses found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, "/api/responses/export", tt.body, e.cookie)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.err, decode(t, resp)["error"])
		})
	}
}

func TestDashboardPages(t *testing.T) {
	e := newTestEnv(t)
	id := e.seed(t, "tok-a", "Acme <Shop>", 1)

	resp := e.do(t, http.MethodGet, "/admin", nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, "<!doctype html>")
	assert.Contains(t, page, "Acme &lt;Shop&gt;")
	assert.NotContains(t, page, "Acme <Shop>")

	req := httptest.NewRequest(http.MethodGet, "/admin?search=zzz", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: e.cookie})
	partial, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer partial.Body.Close()
	require.Equal(t, http.StatusOK, partial.StatusCode)
	fragment := readBody(t, partial)
	assert.True(t, strings.HasPrefix(fragment, `<tbody id="responses-body">`))
	assert.Contains(t, fragment, "ไม่พบข้อมูล")

	resp = e.do(t, http.MethodGet, "/admin/"+id, nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := readBody(t, resp)
	assert.Contains(t, detail, "Acme &lt;Shop&gt;")
	assert.Contains(t, detail, "answer 1")
	assert.Contains(t, detail, "ยังไม่ได้ตอบคำถามในส่วนนี้")
	assert.Contains(t, detail, `hx-delete="/api/responses/`+id+`"`)
	assert.Contains(t, detail, `<progress class="w-full mt-1" value="`)
	assert.Contains(t, detail, `href="/admin/`+id+`/export?format=csv"`)

	resp = e.do(t, http.MethodGet, "/admin/missing", nil, e.cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/admin/"+id+"/export?format=csv", nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "response-Acme__Shop_-")
}

func TestDashboardPagination(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, "tok-a", "Alpha", 1)
	e.seed(t, "tok-b", "Beta", 1)

	resp := e.do(t, http.MethodGet, "/admin?limit=1&search=a", nil, e.cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, "ถัดไป")
	assert.Contains(t, page, "page=2")
	assert.Contains(t, page, "search=a")
	assert.Contains(t, page, `<input type="search" name="search" value="a"`)
	assert.NotContains(t, page, "ก่อนหน้า")
}

func TestDeleteFromDetailPageRedirects(t *testing.T) {
	e := newTestEnv(t)
	id := e.seed(t, "tok-a", "Acme", 1)

	req := httptest.NewRequest(http.MethodDelete, "/api/responses/"+id, nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: e.cookie})
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("HX-Redirect"))

	resp = e.do(t, http.MethodDelete, "/api/responses/"+id, nil, e.cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("HX-Redirect"))
}

func TestUnexpectedErrorsAreLogged(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.Close())

	resp := e.do(t, http.MethodGet, "/api/responses/some-id", nil, e.cookie)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to fetch response", decode(t, resp)["error"])

	var entry map[string]any
	require.NoError(t, json.Unmarshal(e.logs.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "Failed to fetch response", entry["msg"])
	assert.Equal(t, "/api/responses/some-id", entry["path"])
	assert.Contains(t, entry["error"], "database is closed")
}
