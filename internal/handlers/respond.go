package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first validation failure into a client message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min", "gt", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": status,
		"error":  msg,
	})
}

// serviceError maps a service failure to its HTTP status. Anything that is
// not a ServiceError is logged and reported as fallback.
func serviceError(c *fiber.Ctx, logr *slog.Logger, err error, fallback string) error {
	switch service.CodeOf(err) {
	case service.ErrorInvalid:
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case service.ErrorNotFound:
		return errorJSON(c, fiber.StatusNotFound, err.Error())
	case service.ErrorUnauthorized:
		return errorJSON(c, fiber.StatusUnauthorized, err.Error())
	}

	logr.Error(fallback,
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return errorJSON(c, fiber.StatusInternalServerError, fallback)
}

func render(c *fiber.Ctx, page templ.Component, status int) error {
	handler := adaptor.HTTPHandler(templ.Handler(page, templ.WithStatus(status)))
	return handler(c)
}

type answerJSON struct {
	ID         string      `json:"id"`
	QuestionID int         `json:"questionId"`
	SectionID  int         `json:"sectionId"`
	Value      model.Value `json:"value"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type responseJSON struct {
	ID           string    `json:"id"`
	SessionToken string    `json:"sessionToken,omitempty"`
	BusinessName *string   `json:"businessName"`
	Email        *string   `json:"email"`
	Progress     int       `json:"progress"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type summaryJSON struct {
	responseJSON
	AnswerCount int `json:"answerCount"`
}

type recordJSON struct {
	responseJSON
	Answers []answerJSON `json:"answers"`
}

// toResponseJSON converts a response; the session token is only echoed back
// to the questionnaire client that owns it
func toResponseJSON(r model.Response, withToken bool) responseJSON {
	out := responseJSON{
		ID:           r.ID,
		BusinessName: nullable(r.BusinessName),
		Email:        nullable(r.Email),
		Progress:     r.Progress,
		Completed:    r.Completed,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if withToken {
		out.SessionToken = r.SessionToken
	}
	return out
}

func toRecordJSON(rec *model.ResponseRecord, withToken bool) recordJSON {
	answers := make([]answerJSON, len(rec.Answers))
	for i, a := range rec.Answers {
		answers[i] = answerJSON{
			ID:         a.ID,
			QuestionID: a.QuestionID,
			SectionID:  a.SectionID,
			Value:      model.DecodeValue(a.Value),
			UpdatedAt:  a.UpdatedAt,
		}
	}
	return recordJSON{responseJSON: toResponseJSON(rec.Response, withToken), Answers: answers}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
