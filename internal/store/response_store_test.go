package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jjenkins/readiness/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ResponseStore, *sql.DB) {
	t.Helper()

	db, err := NewDB(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	applied, err := RunMigrations(db, "")
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	return NewResponseStore(db), db
}

func countProgress(answers []model.Answer) int {
	return len(answers) * 10
}

func answer(questionID, sectionID int, value string) model.Answer {
	return model.Answer{QuestionID: questionID, SectionID: sectionID, Value: value}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

var t0 = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

func TestRunMigrationsIsRepeatable(t *testing.T) {
	_, db := newTestStore(t)

	_, err := RunMigrations(db, "")
	assert.NoError(t, err)
}

func TestSaveSectionCreatesResponse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{
		answer(2, 1, "2565"),
		answer(1, 1, "Acme"),
	}, t0, countProgress)
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "token-1", r.SessionToken)
	assert.Equal(t, 20, r.Progress)
	assert.False(t, r.Completed)
	assert.True(t, r.CreatedAt.Equal(t0))
	assert.True(t, r.UpdatedAt.Equal(t0))

	answers, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, 1, answers[0].QuestionID)
	assert.Equal(t, "Acme", answers[0].Value)
	assert.Equal(t, 2, answers[1].QuestionID)
	assert.NotEmpty(t, answers[0].ID)
}

func TestSaveSectionRecomputesOverFullAnswerSet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "a")}, t0, countProgress)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(11, 2, "b"), answer(12, 2, "c")}, later, countProgress)
	require.NoError(t, err)

	assert.Equal(t, 30, r.Progress)
	assert.True(t, r.CreatedAt.Equal(t0))
	assert.True(t, r.UpdatedAt.Equal(later))
}

func TestUpsertIsIdempotent(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "same")}, t0, countProgress)
	require.NoError(t, err)
	first, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)

	_, err = s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "same")}, t0.Add(time.Minute), countProgress)
	require.NoError(t, err)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM answers WHERE response_id = $1`, r.ID).Scan(&rows))
	assert.Equal(t, 1, rows)

	second, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "same", second[0].Value)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestUpsertCommutesAcrossKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := answer(1, 1, "one")
	b := answer(2, 1, "two")

	r1, err := s.SaveSection(ctx, "forward", []model.Answer{a}, t0, countProgress)
	require.NoError(t, err)
	_, err = s.SaveSection(ctx, "forward", []model.Answer{b}, t0, countProgress)
	require.NoError(t, err)

	r2, err := s.SaveSection(ctx, "reverse", []model.Answer{b}, t0, countProgress)
	require.NoError(t, err)
	_, err = s.SaveSection(ctx, "reverse", []model.Answer{a}, t0, countProgress)
	require.NoError(t, err)

	pairs := func(id string) map[int]string {
		answers, err := s.GetAnswers(ctx, id)
		require.NoError(t, err)
		out := make(map[int]string)
		for _, a := range answers {
			out[a.QuestionID] = a.Value
		}
		return out
	}

	assert.Equal(t, pairs(r1.ID), pairs(r2.ID))
	assert.Equal(t, map[int]string{1: "one", 2: "two"}, pairs(r1.ID))
}

func TestUpsertLastWriteWins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "old")}, t0, countProgress)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	_, err = s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "new")}, later, countProgress)
	require.NoError(t, err)

	answers, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "new", answers[0].Value)
	assert.True(t, answers[0].UpdatedAt.Equal(later))
}

func TestUpsertAnswer(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "first")}, t0, countProgress)
	require.NoError(t, err)
	saved, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)

	later := t0.Add(time.Hour)
	a := model.Answer{ResponseID: r.ID, QuestionID: 1, SectionID: 1, Value: "second", UpdatedAt: later}
	require.NoError(t, s.UpsertAnswer(ctx, &a))
	assert.Equal(t, saved[0].ID, a.ID)

	fresh := model.Answer{ResponseID: r.ID, QuestionID: 2, SectionID: 1, Value: "other"}
	require.NoError(t, s.UpsertAnswer(ctx, &fresh))
	assert.NotEmpty(t, fresh.ID)
	assert.NotEqual(t, a.ID, fresh.ID)
	assert.False(t, fresh.UpdatedAt.IsZero())

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM answers WHERE response_id = $1`, r.ID).Scan(&rows))
	assert.Equal(t, 2, rows)

	answers, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "second", answers[0].Value)
	assert.True(t, answers[0].UpdatedAt.Equal(later))

	missing := model.Answer{ResponseID: "no-such-response", QuestionID: 1, SectionID: 1, Value: "x"}
	assert.Error(t, s.UpsertAnswer(ctx, &missing))
}

func TestDeleteCascadesToAnswers(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "a"), answer(2, 1, "b")}, t0, countProgress)
	require.NoError(t, err)

	found, err := s.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := s.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	answers, err := s.GetAnswers(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM answers WHERE response_id = $1`, r.ID).Scan(&rows))
	assert.Zero(t, rows)

	found, err = s.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForeignKeyCascade(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "a")}, t0, countProgress)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM responses WHERE id = $1`, r.ID)
	require.NoError(t, err)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM answers`).Scan(&rows))
	assert.Zero(t, rows)
}

func TestUpsertMetadata(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.UpsertMetadata(ctx, "token-1", model.ResponseUpdate{
		BusinessName: strPtr("  Acme Co.  "),
		Email:        strPtr("owner@acme.test"),
	}, t0)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, sql.NullString{String: "Acme Co.", Valid: true}, r.BusinessName)
	assert.Equal(t, "owner@acme.test", r.Email.String)
	assert.False(t, r.Completed)

	r, err = s.UpsertMetadata(ctx, "token-1", model.ResponseUpdate{Completed: boolPtr(true)}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, r.Completed)
	assert.Equal(t, "Acme Co.", r.BusinessName.String)
	assert.Equal(t, "owner@acme.test", r.Email.String)

	r, err = s.UpsertMetadata(ctx, "token-1", model.ResponseUpdate{Email: strPtr("")}, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, r.Email.Valid)
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", []model.Answer{answer(1, 1, "a")}, t0, countProgress)
	require.NoError(t, err)

	updated, err := s.Update(ctx, r.ID, model.ResponseUpdate{BusinessName: strPtr("Beta")},
		[]model.Answer{answer(1, 1, "edited"), answer(3, 1, "new")}, t0.Add(time.Hour), countProgress)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Beta", updated.BusinessName.String)
	assert.Equal(t, 20, updated.Progress)

	missing, err := s.Update(ctx, "nope", model.ResponseUpdate{}, nil, t0, countProgress)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateProgress(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.SaveSection(ctx, "token-1", nil, t0, countProgress)
	require.NoError(t, err)
	assert.Zero(t, r.Progress)

	found, err := s.UpdateProgress(ctx, r.ID, 75, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	got, err := s.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.Progress)

	found, err = s.UpdateProgress(ctx, "nope", 10, t0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetRecords(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.SaveSection(ctx, "a", []model.Answer{answer(2, 1, "x"), answer(1, 1, "y")}, t0, countProgress)
	require.NoError(t, err)
	b, err := s.SaveSection(ctx, "b", []model.Answer{answer(3, 1, "z")}, t0, countProgress)
	require.NoError(t, err)
	c, err := s.SaveSection(ctx, "c", nil, t0, countProgress)
	require.NoError(t, err)

	records, err := s.GetRecords(ctx, []string{b.ID, "missing", a.ID, c.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, b.ID, records[0].ID)
	assert.Equal(t, a.ID, records[1].ID)
	assert.Equal(t, c.ID, records[2].ID)

	require.Len(t, records[1].Answers, 2)
	assert.Equal(t, 1, records[1].Answers[0].QuestionID)
	assert.Equal(t, 2, records[1].Answers[1].QuestionID)
	assert.Empty(t, records[2].Answers)

	none, err := s.GetRecords(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMetadata(ctx, "a", model.ResponseUpdate{BusinessName: strPtr("Alpha Foods"), Completed: boolPtr(true)}, t0)
	require.NoError(t, err)
	_, err = s.SaveSection(ctx, "a", []model.Answer{answer(1, 1, "x"), answer(2, 1, "y")}, t0, countProgress)
	require.NoError(t, err)

	_, err = s.UpsertMetadata(ctx, "b", model.ResponseUpdate{BusinessName: strPtr("Beta 100% Co"), Email: strPtr("hello@beta.test")}, t0.Add(time.Hour))
	require.NoError(t, err)

	_, err = s.UpsertMetadata(ctx, "c", model.ResponseUpdate{BusinessName: strPtr("Gamma")}, t0.Add(2*time.Hour))
	require.NoError(t, err)

	all, total, err := s.List(ctx, model.ResponseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "Gamma", all[0].BusinessName.String)
	assert.Equal(t, "Alpha Foods", all[2].BusinessName.String)
	assert.Equal(t, 2, all[2].AnswerCount)

	completed, total, err := s.List(ctx, model.ResponseFilter{Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, completed, 1)
	assert.Equal(t, "Alpha Foods", completed[0].BusinessName.String)

	_, total, err = s.List(ctx, model.ResponseFilter{Status: model.StatusIncomplete})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	found, total, err := s.List(ctx, model.ResponseFilter{Search: "BETA.TEST"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].SessionToken)

	found, _, err = s.List(ctx, model.ResponseFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].SessionToken)

	found, _, err = s.List(ctx, model.ResponseFilter{Search: "%"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	byName, _, err := s.List(ctx, model.ResponseFilter{SortBy: "name", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, byName, 3)
	assert.Equal(t, "Alpha Foods", byName[0].BusinessName.String)
	assert.Equal(t, "Gamma", byName[2].BusinessName.String)

	page, total, err := s.List(ctx, model.ResponseFilter{SortBy: "name", Order: "asc", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Gamma", page[0].BusinessName.String)
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.False(t, stats.LastUpdated.Valid)

	_, err = s.SaveSection(ctx, "a", []model.Answer{answer(1, 1, "x")}, t0, countProgress)
	require.NoError(t, err)
	_, err = s.SaveSection(ctx, "b", []model.Answer{answer(1, 1, "x"), answer(2, 1, "y"), answer(3, 1, "z")}, t0.Add(time.Hour), countProgress)
	require.NoError(t, err)
	_, err = s.UpsertMetadata(ctx, "b", model.ResponseUpdate{Completed: boolPtr(true)}, t0.Add(2*time.Hour))
	require.NoError(t, err)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.InDelta(t, 20.0, stats.AverageProgress, 0.001)
	require.True(t, stats.LastUpdated.Valid)
	assert.True(t, stats.LastUpdated.Time.Equal(t0.Add(2*time.Hour)))

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
