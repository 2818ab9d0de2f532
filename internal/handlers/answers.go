package handlers

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/service"
)

type answerPayload struct {
	QuestionID int         `json:"questionId" validate:"gt=0"`
	SectionID  int         `json:"sectionId" validate:"gte=0"`
	Value      model.Value `json:"value"`
}

type saveAnswersRequest struct {
	SessionToken string          `json:"sessionToken" validate:"required"`
	SectionID    int             `json:"sectionId" validate:"gte=0"`
	Answers      []answerPayload `json:"answers" validate:"dive"`
}

type metadataRequest struct {
	SessionToken string  `json:"sessionToken" validate:"required"`
	BusinessName *string `json:"businessName" validate:"omitempty,max=255"`
	Email        *string `json:"email" validate:"omitempty,max=255"`
	Completed    *bool   `json:"completed"`
}

// QuestionnaireHandler serves the question catalog
func QuestionnaireHandler(cat *catalog.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(cat)
	}
}

// SaveAnswersHandler saves one questionnaire section. Any progress the client
// sends is ignored; the server recomputes it.
func SaveAnswersHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req saveAnswersRequest
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, validationMessage(err))
		}

		result, err := svc.SaveSection(c.UserContext(), service.SaveSectionRequest{
			SessionToken: req.SessionToken,
			SectionID:    req.SectionID,
			Answers:      answerInputs(req.Answers),
		})
		if err != nil {
			return serviceError(c, logr, err, "Failed to save answers")
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"responseId": result.ResponseID,
			"progress":   result.Progress,
		})
	}
}

// SaveMetadataHandler creates or updates the respondent details of a response
func SaveMetadataHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req metadataRequest
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, validationMessage(err))
		}
		if msg, ok := checkEmail(req.Email); !ok {
			return errorJSON(c, fiber.StatusBadRequest, msg)
		}

		r, err := svc.SaveMetadata(c.UserContext(), service.MetadataRequest{
			SessionToken: req.SessionToken,
			ResponseUpdate: model.ResponseUpdate{
				BusinessName: req.BusinessName,
				Email:        req.Email,
				Completed:    req.Completed,
			},
		})
		if err != nil {
			return serviceError(c, logr, err, "Failed to create/update response")
		}

		return c.JSON(toResponseJSON(*r, true))
	}
}

// checkEmail validates an email that is present and not blank. A blank email
// clears the stored one.
func checkEmail(email *string) (string, bool) {
	if email == nil || strings.TrimSpace(*email) == "" {
		return "", true
	}
	if err := validate.Var(strings.TrimSpace(*email), "email"); err != nil {
		return "Invalid email format", false
	}
	return "", true
}

func answerInputs(payload []answerPayload) []service.AnswerInput {
	inputs := make([]service.AnswerInput, len(payload))
	for i, a := range payload {
		inputs[i] = service.AnswerInput{
			QuestionID: a.QuestionID,
			SectionID:  a.SectionID,
			Value:      a.Value,
		}
	}
	return inputs
}
