package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/readiness/internal/catalog"
)

// MetricsService calculates survey-wide metrics
type MetricsService struct {
	db      *sql.DB
	catalog *catalog.Catalog
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(db *sql.DB, cat *catalog.Catalog) *MetricsService {
	return &MetricsService{db: db, catalog: cat}
}

// SurveyMetrics represents calculated survey-wide metrics
type SurveyMetrics struct {
	TotalResponses     int
	CompletedResponses int
	AverageProgress    float64
	TotalAnswers       int
	Sections           []SectionCoverage
}

// SectionCoverage shows how thoroughly one section has been answered
type SectionCoverage struct {
	ID          int
	Title       string
	Questions   int
	Answers     int
	Respondents int
	// AnswerRate is answers over questions times responses, as a percentage
	AnswerRate float64
}

// Calculate computes the current survey metrics
func (m *MetricsService) Calculate(ctx context.Context) (*SurveyMetrics, error) {
	metrics := &SurveyMetrics{}

	responseQuery := `
		SELECT
			COUNT(*) as total_responses,
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) as completed_responses,
			COALESCE(AVG(progress), 0) as average_progress
		FROM responses
	`
	err := m.db.QueryRowContext(ctx, responseQuery).Scan(
		&metrics.TotalResponses,
		&metrics.CompletedResponses,
		&metrics.AverageProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate response metrics: %w", err)
	}

	sectionQuery := `
		SELECT section_id, COUNT(*), COUNT(DISTINCT response_id)
		FROM answers
		GROUP BY section_id
	`
	rows, err := m.db.QueryContext(ctx, sectionQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate section metrics: %w", err)
	}
	defer rows.Close()

	type counts struct{ answers, respondents int }
	bySection := make(map[int]counts)
	for rows.Next() {
		var id int
		var c counts
		if err := rows.Scan(&id, &c.answers, &c.respondents); err != nil {
			return nil, fmt.Errorf("failed to scan section metrics: %w", err)
		}
		bySection[id] = c
		metrics.TotalAnswers += c.answers
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read section metrics: %w", err)
	}

	for _, sec := range m.catalog.Sections() {
		c := bySection[sec.ID]
		cov := SectionCoverage{
			ID:          sec.ID,
			Title:       sec.Title,
			Questions:   len(sec.Questions),
			Answers:     c.answers,
			Respondents: c.respondents,
		}
		if possible := cov.Questions * metrics.TotalResponses; possible > 0 {
			cov.AnswerRate = float64(cov.Answers) / float64(possible) * 100
		}
		metrics.Sections = append(metrics.Sections, cov)
	}

	return metrics, nil
}
