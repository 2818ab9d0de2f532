package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/store"
)

var errStoreDown = errors.New("store unavailable")

type stubStore struct {
	responses map[string]*model.Response
	answers   map[string]map[int]model.Answer
	nextID    int
	err       error
}

func newStubStore() *stubStore {
	return &stubStore{
		responses: make(map[string]*model.Response),
		answers:   make(map[string]map[int]model.Answer),
	}
}

func (s *stubStore) byToken(token string) *model.Response {
	for _, r := range s.responses {
		if r.SessionToken == token {
			return r
		}
	}
	return nil
}

func (s *stubStore) ensure(token string, at time.Time) *model.Response {
	if r := s.byToken(token); r != nil {
		r.UpdatedAt = at
		return r
	}
	s.nextID++
	r := &model.Response{ID: "r" + strconv.Itoa(s.nextID), SessionToken: token, CreatedAt: at, UpdatedAt: at}
	s.responses[r.ID] = r
	s.answers[r.ID] = make(map[int]model.Answer)
	return r
}

func (s *stubStore) apply(id string, answers []model.Answer, at time.Time, progress store.ProgressFunc) {
	for _, a := range answers {
		a.ResponseID = id
		a.UpdatedAt = at
		s.answers[id][a.QuestionID] = a
	}
	if progress != nil {
		s.responses[id].Progress = progress(s.sorted(id))
	}
}

func (s *stubStore) sorted(id string) []model.Answer {
	var out []model.Answer
	for _, a := range s.answers[id] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

func (s *stubStore) meta(r *model.Response, u model.ResponseUpdate) {
	if u.BusinessName != nil {
		r.BusinessName.String, r.BusinessName.Valid = *u.BusinessName, *u.BusinessName != ""
	}
	if u.Email != nil {
		r.Email.String, r.Email.Valid = *u.Email, *u.Email != ""
	}
	if u.Completed != nil {
		r.Completed = *u.Completed
	}
}

func (s *stubStore) SaveSection(_ context.Context, token string, answers []model.Answer, at time.Time, progress store.ProgressFunc) (*model.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := s.ensure(token, at)
	s.apply(r.ID, answers, at, progress)
	cp := *r
	return &cp, nil
}

func (s *stubStore) UpsertMetadata(_ context.Context, token string, u model.ResponseUpdate, at time.Time) (*model.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := s.ensure(token, at)
	s.meta(r, u)
	cp := *r
	return &cp, nil
}

func (s *stubStore) Update(_ context.Context, id string, u model.ResponseUpdate, answers []model.Answer, at time.Time, progress store.ProgressFunc) (*model.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.responses[id]
	if !ok {
		return nil, nil
	}
	s.meta(r, u)
	r.UpdatedAt = at
	s.apply(id, answers, at, progress)
	cp := *r
	return &cp, nil
}

func (s *stubStore) UpdateProgress(_ context.Context, id string, progress int, at time.Time) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	r, ok := s.responses[id]
	if !ok {
		return false, nil
	}
	r.Progress = progress
	r.UpdatedAt = at
	return true, nil
}

func (s *stubStore) GetByID(_ context.Context, id string) (*model.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.responses[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *stubStore) GetBySessionToken(_ context.Context, token string) (*model.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := s.byToken(token)
	if r == nil {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *stubStore) GetAnswers(_ context.Context, id string) ([]model.Answer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sorted(id), nil
}

func (s *stubStore) GetRecords(_ context.Context, ids []string) ([]model.ResponseRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []model.ResponseRecord
	for _, id := range ids {
		if r, ok := s.responses[id]; ok {
			out = append(out, model.ResponseRecord{Response: *r, Answers: s.sorted(id)})
		}
	}
	return out, nil
}

func (s *stubStore) List(_ context.Context, f model.ResponseFilter) ([]model.ResponseSummary, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	var out []model.ResponseSummary
	for _, r := range s.responses {
		if f.Status == model.StatusCompleted && !r.Completed {
			continue
		}
		if f.Status == model.StatusIncomplete && r.Completed {
			continue
		}
		out = append(out, model.ResponseSummary{Response: *r, AnswerCount: len(s.answers[r.ID])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *stubStore) ListIDs(_ context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var ids []string
	for id := range s.responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *stubStore) Delete(_ context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.responses[id]; !ok {
		return false, nil
	}
	delete(s.responses, id)
	delete(s.answers, id)
	return true, nil
}

func (s *stubStore) Stats(_ context.Context) (*model.ResponseStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	stats := &model.ResponseStats{Total: len(s.responses)}
	for _, r := range s.responses {
		if r.Completed {
			stats.Completed++
		}
	}
	return stats, nil
}
