package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/readiness/internal/model"
)

// ProgressFunc computes a response's progress from its full answer set
type ProgressFunc func(answers []model.Answer) int

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const responseColumns = `id, session_token, business_name, email, progress, completed, created_at, updated_at`

// ResponseStore handles database operations for responses and their answers
type ResponseStore struct {
	db *sql.DB
}

// NewResponseStore creates a new ResponseStore
func NewResponseStore(db *sql.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// SaveSection upserts a batch of answers for the response owned by
// sessionToken, creating the response when it does not exist yet. Progress is
// recomputed over the full answer set and written in the same transaction.
func (s *ResponseStore) SaveSection(ctx context.Context, sessionToken string, answers []model.Answer, at time.Time, progress ProgressFunc) (*model.Response, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	responseID, err := ensureResponse(ctx, tx, sessionToken, at)
	if err != nil {
		return nil, err
	}

	if err := applyAnswers(ctx, tx, responseID, answers, at, progress); err != nil {
		return nil, err
	}

	r, err := getResponse(ctx, tx, "id", responseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit section save: %w", err)
	}

	return r, nil
}

// UpsertAnswer inserts or updates a single answer keyed by (response, question)
func (s *ResponseStore) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	return upsertAnswer(ctx, s.db, a)
}

// UpdateProgress persists a progress value and refreshes updated_at.
// Returns false when the response does not exist.
func (s *ResponseStore) UpdateProgress(ctx context.Context, id string, progress int, at time.Time) (bool, error) {
	return updateProgress(ctx, s.db, id, progress, at)
}

// UpsertMetadata applies metadata to the response owned by sessionToken,
// creating the response when it does not exist yet
func (s *ResponseStore) UpsertMetadata(ctx context.Context, sessionToken string, u model.ResponseUpdate, at time.Time) (*model.Response, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	responseID, err := ensureResponse(ctx, tx, sessionToken, at)
	if err != nil {
		return nil, err
	}

	if _, err := updateMetadata(ctx, tx, responseID, u, at); err != nil {
		return nil, err
	}

	r, err := getResponse(ctx, tx, "id", responseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit metadata save: %w", err)
	}

	return r, nil
}

// Update applies an admin edit: metadata changes and answer values, with
// progress recomputed afterwards. Returns nil when the response does not exist.
func (s *ResponseStore) Update(ctx context.Context, id string, u model.ResponseUpdate, answers []model.Answer, at time.Time, progress ProgressFunc) (*model.Response, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	found, err := updateMetadata(ctx, tx, id, u, at)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if err := applyAnswers(ctx, tx, id, answers, at, progress); err != nil {
		return nil, err
	}

	r, err := getResponse(ctx, tx, "id", id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit response update: %w", err)
	}

	return r, nil
}

// GetByID retrieves a response by its id
func (s *ResponseStore) GetByID(ctx context.Context, id string) (*model.Response, error) {
	return getResponse(ctx, s.db, "id", id)
}

// GetBySessionToken retrieves a response by the session token that owns it
func (s *ResponseStore) GetBySessionToken(ctx context.Context, token string) (*model.Response, error) {
	return getResponse(ctx, s.db, "session_token", token)
}

// GetAnswers retrieves the answers of a response ordered by question id
func (s *ResponseStore) GetAnswers(ctx context.Context, responseID string) ([]model.Answer, error) {
	return listAnswers(ctx, s.db, responseID)
}

// GetRecords retrieves responses with their answers. Records come back in the
// order of ids; unknown ids are skipped.
func (s *ResponseStore) GetRecords(ctx context.Context, ids []string) ([]model.ResponseRecord, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")

	rows, err := s.db.QueryContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get responses: %w", err)
	}
	byID := make(map[string]*model.ResponseRecord, len(ids))
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		byID[r.ID] = &model.ResponseRecord{Response: *r}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}
	rows.Close()

	if len(byID) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, response_id, question_id, section_id, value, updated_at
		FROM answers
		WHERE response_id IN (` + in + `)
		ORDER BY response_id, question_id
	`
	answerRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		a, err := scanAnswer(answerRows)
		if err != nil {
			return nil, err
		}
		if rec, ok := byID[a.ResponseID]; ok {
			rec.Answers = append(rec.Answers, a)
		}
	}
	if err := answerRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}

	records := make([]model.ResponseRecord, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// List retrieves a filtered, sorted page of responses with their answer
// counts, plus the total number of matching responses
func (s *ResponseStore) List(ctx context.Context, f model.ResponseFilter) ([]model.ResponseSummary, int, error) {
	where, args := listConditions(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM responses r` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count responses: %w", err)
	}

	query := `
		SELECT r.id, r.session_token, r.business_name, r.email, r.progress, r.completed,
		       r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM answers a WHERE a.response_id = r.id) AS answer_count
		FROM responses r` + where + `
		ORDER BY ` + orderClause(f.SortBy, f.Order)

	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var summaries []model.ResponseSummary
	for rows.Next() {
		var rs model.ResponseSummary
		err := rows.Scan(
			&rs.ID,
			&rs.SessionToken,
			&rs.BusinessName,
			&rs.Email,
			&rs.Progress,
			&rs.Completed,
			&rs.CreatedAt,
			&rs.UpdatedAt,
			&rs.AnswerCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan response: %w", err)
		}
		summaries = append(summaries, rs)
	}

	return summaries, total, rows.Err()
}

// ListIDs retrieves every response id, most recently updated first
func (s *ResponseStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM responses ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list response ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan response id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a response and all of its answers. Returns false when the
// response does not exist.
func (s *ResponseStore) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE response_id = $1`, id); err != nil {
		return false, fmt.Errorf("failed to delete answers for %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM responses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete response %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete response %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}

	return n > 0, nil
}

// Stats calculates aggregate counts across all responses
func (s *ResponseStore) Stats(ctx context.Context) (*model.ResponseStats, error) {
	stats := &model.ResponseStats{}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(progress), 0)
		FROM responses
	`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.AverageProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate response stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT updated_at FROM responses ORDER BY updated_at DESC LIMIT 1`).Scan(&stats.LastUpdated)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find last update: %w", err)
	}

	return stats, nil
}

func ensureResponse(ctx context.Context, q querier, sessionToken string, at time.Time) (string, error) {
	query := `
		INSERT INTO responses (id, session_token, progress, completed, created_at, updated_at)
		VALUES ($1, $2, 0, FALSE, $3, $3)
		ON CONFLICT (session_token) DO UPDATE SET
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	var id string
	if err := q.QueryRowContext(ctx, query, uuid.NewString(), sessionToken, at.UTC()).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to upsert response: %w", err)
	}
	return id, nil
}

func applyAnswers(ctx context.Context, q querier, responseID string, answers []model.Answer, at time.Time, progress ProgressFunc) error {
	for i := range answers {
		a := answers[i]
		a.ResponseID = responseID
		a.UpdatedAt = at
		if err := upsertAnswer(ctx, q, &a); err != nil {
			return err
		}
	}

	if progress == nil {
		return nil
	}

	all, err := listAnswers(ctx, q, responseID)
	if err != nil {
		return err
	}

	if _, err := updateProgress(ctx, q, responseID, progress(all), at); err != nil {
		return err
	}
	return nil
}

func upsertAnswer(ctx context.Context, q querier, a *model.Answer) error {
	query := `
		INSERT INTO answers (id, response_id, question_id, section_id, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (response_id, question_id) DO UPDATE SET
			section_id = EXCLUDED.section_id,
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}

	err := q.QueryRowContext(ctx, query,
		uuid.NewString(),
		a.ResponseID,
		a.QuestionID,
		a.SectionID,
		a.Value,
		a.UpdatedAt.UTC(),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert answer %d for %s: %w", a.QuestionID, a.ResponseID, err)
	}
	return nil
}

func updateProgress(ctx context.Context, q querier, id string, progress int, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE responses SET progress = $1, updated_at = $2 WHERE id = $3`,
		progress, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update progress for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update progress for %s: %w", id, err)
	}
	return n > 0, nil
}

func updateMetadata(ctx context.Context, q querier, id string, u model.ResponseUpdate, at time.Time) (bool, error) {
	sets := []string{"updated_at = $1"}
	args := []any{at.UTC()}

	if u.BusinessName != nil {
		args = append(args, nullString(*u.BusinessName))
		sets = append(sets, fmt.Sprintf("business_name = $%d", len(args)))
	}
	if u.Email != nil {
		args = append(args, nullString(*u.Email))
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if u.Completed != nil {
		args = append(args, *u.Completed)
		sets = append(sets, fmt.Sprintf("completed = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE responses SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update response %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update response %s: %w", id, err)
	}
	return n > 0, nil
}

func getResponse(ctx context.Context, q querier, column, value string) (*model.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses WHERE ` + column + ` = $1`

	r, err := scanResponse(q.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response %s: %w", value, err)
	}
	return r, nil
}

func listAnswers(ctx context.Context, q querier, responseID string) ([]model.Answer, error) {
	query := `
		SELECT id, response_id, question_id, section_id, value, updated_at
		FROM answers
		WHERE response_id = $1
		ORDER BY question_id
	`

	rows, err := q.QueryContext(ctx, query, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers for %s: %w", responseID, err)
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResponse(row scanner) (*model.Response, error) {
	var r model.Response
	err := row.Scan(
		&r.ID,
		&r.SessionToken,
		&r.BusinessName,
		&r.Email,
		&r.Progress,
		&r.Completed,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanAnswer(row scanner) (model.Answer, error) {
	var a model.Answer
	err := row.Scan(
		&a.ID,
		&a.ResponseID,
		&a.QuestionID,
		&a.SectionID,
		&a.Value,
		&a.UpdatedAt,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan answer: %w", err)
	}
	return a, nil
}

func listConditions(f model.ResponseFilter) (string, []any) {
	var conds []string
	var args []any

	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(LOWER(COALESCE(r.business_name, '')) LIKE $%d ESCAPE '\' OR LOWER(COALESCE(r.email, '')) LIKE $%d ESCAPE '\')`, n, n))
	}

	switch f.Status {
	case model.StatusCompleted:
		conds = append(conds, "r.completed = TRUE")
	case model.StatusIncomplete:
		conds = append(conds, "r.completed = FALSE")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var sortColumns = map[string]string{
	"updated":  "r.updated_at",
	"created":  "r.created_at",
	"progress": "r.progress",
	"name":     "LOWER(COALESCE(r.business_name, ''))",
}

func orderClause(sortBy, order string) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = sortColumns["updated"]
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	return col + " " + dir + ", r.id"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
