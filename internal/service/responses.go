package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/model"
)

// MaxExportBatch caps how many responses a single export may request
const MaxExportBatch = 100

// List paging defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// GetRecord retrieves a response with its answers ordered by question id
func (s *ResponseService) GetRecord(ctx context.Context, id string) (*model.ResponseRecord, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get response %s: %w", id, err)
	}
	if r == nil {
		return nil, NewNotFoundError("Response not found")
	}
	return s.withAnswers(ctx, r)
}

// GetRecordBySessionToken retrieves the response a questionnaire client is
// resuming
func (s *ResponseService) GetRecordBySessionToken(ctx context.Context, token string) (*model.ResponseRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewInvalidError("Session token is required")
	}

	r, err := s.store.GetBySessionToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get response by session token: %w", err)
	}
	if r == nil {
		return nil, NewNotFoundError("Response not found")
	}
	return s.withAnswers(ctx, r)
}

// FetchRecords retrieves the records for an export batch in request order
func (s *ResponseService) FetchRecords(ctx context.Context, ids []string) ([]model.ResponseRecord, error) {
	if len(ids) == 0 {
		return nil, NewInvalidError("Response IDs are required")
	}
	if len(ids) > MaxExportBatch {
		return nil, NewInvalidError(fmt.Sprintf("Cannot export more than %d responses at once", MaxExportBatch))
	}

	records, err := s.store.GetRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch responses: %w", err)
	}
	if len(records) == 0 {
		return nil, NewNotFoundError("No responses found")
	}
	return records, nil
}

// AllResponseIDs lists every stored response id, most recent first
func (s *ResponseService) AllResponseIDs(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return ids, nil
}

// ListParams is the admin list query as received from a client
type ListParams struct {
	Search string
	Status string
	SortBy string
	Order  string
	Page   int
	Limit  int
}

// ResponsePage is one page of the admin response list
type ResponsePage struct {
	Items      []model.ResponseSummary
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ListResponses returns a filtered, sorted page of responses
func (s *ResponseService) ListResponses(ctx context.Context, p ListParams) (*ResponsePage, error) {
	status := p.Status
	switch status {
	case "", model.StatusAll:
		status = model.StatusAll
	case model.StatusCompleted, model.StatusIncomplete:
	default:
		return nil, NewInvalidError(fmt.Sprintf("Unknown status %q", p.Status))
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	items, total, err := s.store.List(ctx, model.ResponseFilter{
		Search: p.Search,
		Status: status,
		SortBy: p.SortBy,
		Order:  p.Order,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	return &ResponsePage{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// DeleteResponse removes a response and its answers
func (s *ResponseService) DeleteResponse(ctx context.Context, id string) error {
	found, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete response %s: %w", id, err)
	}
	if !found {
		return NewNotFoundError("Response not found")
	}

	s.logger.Info("response deleted", "response_id", id)
	return nil
}

// Stats returns aggregate counts across all responses
func (s *ResponseService) Stats(ctx context.Context) (*model.ResponseStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// Catalog is the questionnaire the service validates against
func (s *ResponseService) Catalog() *catalog.Catalog { return s.catalog }

func (s *ResponseService) withAnswers(ctx context.Context, r *model.Response) (*model.ResponseRecord, error) {
	answers, err := s.store.GetAnswers(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers for %s: %w", r.ID, err)
	}
	return &model.ResponseRecord{Response: *r, Answers: answers}, nil
}

// AnswerView is a stored answer prepared for display
type AnswerView struct {
	QuestionID int
	Text       string
	Type       catalog.QuestionType
	Value      string
	Items      []string
	UpdatedAt  time.Time
}

// SectionView is one catalog section with the answers a response gave in it
type SectionView struct {
	ID            int
	Title         string
	Description   string
	QuestionCount int
	Answers       []AnswerView
}

// GroupBySection arranges a record's answers under every catalog section in
// catalog order. Answers to questions the catalog does not know are left out.
func GroupBySection(cat *catalog.Catalog, rec model.ResponseRecord) []SectionView {
	sections := cat.Sections()
	views := make([]SectionView, len(sections))
	slot := make(map[int]int, len(sections))
	for i, sec := range sections {
		views[i] = SectionView{
			ID:            sec.ID,
			Title:         sec.Title,
			Description:   sec.Description,
			QuestionCount: len(sec.Questions),
		}
		slot[sec.ID] = i
	}

	for _, a := range rec.Answers {
		q, ok := cat.Question(a.QuestionID)
		if !ok {
			continue
		}
		owner, _ := cat.SectionFor(a.QuestionID)

		view := AnswerView{
			QuestionID: a.QuestionID,
			Text:       q.Text,
			Type:       q.Type,
			Value:      model.DisplayValue(a.Value),
			UpdatedAt:  a.UpdatedAt,
		}
		if items, ok := model.DecodeList(a.Value); ok {
			view.Items = items
		}

		i := slot[owner]
		views[i].Answers = append(views[i].Answers, view)
	}

	return views
}
