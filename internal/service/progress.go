package service

import (
	"math"
	"strings"

	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/model"
)

// CalculateProgress returns the answered share as a whole percentage
func CalculateProgress(answered, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(answered) / float64(total) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// IsAnswered reports whether stored answer text counts towards progress.
// Blank text and empty lists do not.
func IsAnswered(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	if items, ok := model.DecodeList(value); ok {
		return len(items) > 0
	}
	return true
}

// CountAnswered counts the distinct catalog questions with an answer
func CountAnswered(c *catalog.Catalog, answers []model.Answer) int {
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		if seen[a.QuestionID] {
			continue
		}
		if _, ok := c.Question(a.QuestionID); !ok {
			continue
		}
		if IsAnswered(a.Value) {
			seen[a.QuestionID] = true
		}
	}
	return len(seen)
}

// ProgressFor recomputes progress for a full answer set
func ProgressFor(c *catalog.Catalog, answers []model.Answer) int {
	return CalculateProgress(CountAnswered(c, answers), c.TotalQuestions())
}
