package model

import (
	"database/sql"
	"time"
)

// Response is one respondent's submission, located by the session token the
// questionnaire client holds
type Response struct {
	ID           string
	SessionToken string
	BusinessName sql.NullString
	Email        sql.NullString
	Progress     int
	Completed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Answer is the stored value for one question of a response
type Answer struct {
	ID         string
	ResponseID string
	QuestionID int
	SectionID  int
	Value      string
	UpdatedAt  time.Time
}

// ResponseRecord is a response with its answers ordered by question id
type ResponseRecord struct {
	Response
	Answers []Answer
}

// ResponseSummary is a list row for the admin dashboard
type ResponseSummary struct {
	Response
	AnswerCount int
}

// Response status filters for the admin list
const (
	StatusAll        = "all"
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
)

// ResponseFilter narrows and orders the admin response list
type ResponseFilter struct {
	Search string
	Status string
	SortBy string
	Order  string
	Limit  int
	Offset int
}

// ResponseStats is the aggregate view printed by the stats command
type ResponseStats struct {
	Total           int
	Completed       int
	AverageProgress float64
	LastUpdated     sql.NullTime
}

// ResponseUpdate carries metadata changes; nil fields are left untouched
type ResponseUpdate struct {
	BusinessName *string
	Email        *string
	Completed    *bool
}

// Empty reports whether the update changes nothing
func (u ResponseUpdate) Empty() bool {
	return u.BusinessName == nil && u.Email == nil && u.Completed == nil
}
