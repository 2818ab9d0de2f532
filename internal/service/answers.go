package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/store"
)

// ResponseStore abstracts the persistence operations ResponseService needs
type ResponseStore interface {
	SaveSection(ctx context.Context, sessionToken string, answers []model.Answer, at time.Time, progress store.ProgressFunc) (*model.Response, error)
	UpsertMetadata(ctx context.Context, sessionToken string, u model.ResponseUpdate, at time.Time) (*model.Response, error)
	Update(ctx context.Context, id string, u model.ResponseUpdate, answers []model.Answer, at time.Time, progress store.ProgressFunc) (*model.Response, error)
	UpdateProgress(ctx context.Context, id string, progress int, at time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Response, error)
	GetBySessionToken(ctx context.Context, token string) (*model.Response, error)
	GetAnswers(ctx context.Context, responseID string) ([]model.Answer, error)
	GetRecords(ctx context.Context, ids []string) ([]model.ResponseRecord, error)
	List(ctx context.Context, f model.ResponseFilter) ([]model.ResponseSummary, int, error)
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*model.ResponseStats, error)
}

// ResponseService owns the answer save flow and assembles response records
type ResponseService struct {
	store   ResponseStore
	catalog *catalog.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewResponseService creates a new ResponseService
func NewResponseService(store ResponseStore, cat *catalog.Catalog, logger *slog.Logger) *ResponseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseService{
		store:   store,
		catalog: cat,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AnswerInput is one submitted answer. SectionID is advisory; the catalog
// decides which section a question belongs to.
type AnswerInput struct {
	QuestionID int
	SectionID  int
	Value      model.Value
}

// SaveSectionRequest is a batch of answers saved from one questionnaire page
type SaveSectionRequest struct {
	SessionToken string
	SectionID    int
	Answers      []AnswerInput
}

// SaveSectionResult reports where the answers went and the new progress
type SaveSectionResult struct {
	ResponseID string
	Progress   int
}

// SaveSection upserts a section's answers for the response owned by the
// session token and recomputes its progress over every stored answer
func (s *ResponseService) SaveSection(ctx context.Context, req SaveSectionRequest) (*SaveSectionResult, error) {
	token := strings.TrimSpace(req.SessionToken)
	if token == "" {
		return nil, NewInvalidError("Session token is required")
	}

	answers, err := s.resolveAnswers(req.SectionID, req.Answers)
	if err != nil {
		return nil, err
	}

	r, err := s.store.SaveSection(ctx, token, answers, s.now(), s.progressOf)
	if err != nil {
		return nil, fmt.Errorf("failed to save section %d: %w", req.SectionID, err)
	}

	s.logger.Info("section saved",
		"response_id", r.ID,
		"section_id", req.SectionID,
		"answers", len(answers),
		"progress", r.Progress,
	)

	return &SaveSectionResult{ResponseID: r.ID, Progress: r.Progress}, nil
}

// MetadataRequest carries respondent details saved alongside the answers
type MetadataRequest struct {
	SessionToken string
	model.ResponseUpdate
}

// SaveMetadata creates or updates the response owned by the session token
func (s *ResponseService) SaveMetadata(ctx context.Context, req MetadataRequest) (*model.Response, error) {
	token := strings.TrimSpace(req.SessionToken)
	if token == "" {
		return nil, NewInvalidError("Session token is required")
	}

	r, err := s.store.UpsertMetadata(ctx, token, req.ResponseUpdate, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to save response metadata: %w", err)
	}
	return r, nil
}

// UpdateRequest is an admin edit of a stored response
type UpdateRequest struct {
	model.ResponseUpdate
	Answers []AnswerInput
}

// UpdateResponse applies an admin edit. Progress is recomputed from the
// resulting answer set.
func (s *ResponseService) UpdateResponse(ctx context.Context, id string, req UpdateRequest) (*model.Response, error) {
	answers, err := s.resolveAnswers(0, req.Answers)
	if err != nil {
		return nil, err
	}

	r, err := s.store.Update(ctx, id, req.ResponseUpdate, answers, s.now(), s.progressOf)
	if err != nil {
		return nil, fmt.Errorf("failed to update response %s: %w", id, err)
	}
	if r == nil {
		return nil, NewNotFoundError("Response not found")
	}

	s.logger.Info("response updated", "response_id", id, "answers", len(answers), "progress", r.Progress)
	return r, nil
}

// OverrideProgress sets a response's progress independently of its answers.
// The value holds until the next answer save recomputes it.
func (s *ResponseService) OverrideProgress(ctx context.Context, id string, progress int) (*model.Response, error) {
	if progress < 0 || progress > 100 {
		return nil, NewInvalidError("Progress must be between 0 and 100")
	}

	found, err := s.store.UpdateProgress(ctx, id, progress, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to override progress for %s: %w", id, err)
	}
	if !found {
		return nil, NewNotFoundError("Response not found")
	}

	s.logger.Warn("progress overridden", "response_id", id, "progress", progress)

	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload response %s: %w", id, err)
	}
	if r == nil {
		return nil, NewNotFoundError("Response not found")
	}
	return r, nil
}

// resolveAnswers encodes submitted values and assigns each answer the section
// the catalog places its question in. An unknown question rejects the batch.
func (s *ResponseService) resolveAnswers(sectionID int, inputs []AnswerInput) ([]model.Answer, error) {
	answers := make([]model.Answer, 0, len(inputs))
	position := make(map[int]int, len(inputs))

	for _, in := range inputs {
		owner, ok := s.catalog.SectionFor(in.QuestionID)
		if !ok {
			return nil, NewInvalidError(fmt.Sprintf("Unknown question %d", in.QuestionID))
		}

		claimed := in.SectionID
		if claimed == 0 {
			claimed = sectionID
		}
		if claimed != 0 && claimed != owner {
			s.logger.Debug("section id corrected",
				"question_id", in.QuestionID,
				"claimed", claimed,
				"section_id", owner,
			)
		}

		a := model.Answer{
			QuestionID: in.QuestionID,
			SectionID:  owner,
			Value:      in.Value.Encode(),
		}

		// a repeated question keeps the last submitted value
		if i, dup := position[in.QuestionID]; dup {
			answers[i] = a
			continue
		}
		position[in.QuestionID] = len(answers)
		answers = append(answers, a)
	}

	return answers, nil
}

func (s *ResponseService) progressOf(answers []model.Answer) int {
	return ProgressFor(s.catalog, answers)
}
