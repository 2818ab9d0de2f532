package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/service"
)

type updateResponseRequest struct {
	BusinessName *string         `json:"businessName" validate:"omitempty,max=255"`
	Email        *string         `json:"email" validate:"omitempty,max=255"`
	Completed    *bool           `json:"completed"`
	Answers      []answerPayload `json:"answers" validate:"dive"`
}

type progressOverrideRequest struct {
	Progress *int `json:"progress" validate:"required"`
}

// ResumeHandler returns the response owned by the sessionToken query
// parameter. Without one the request falls through to the admin list.
func ResumeHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("sessionToken")
		if token == "" {
			return c.Next()
		}

		rec, err := svc.GetRecordBySessionToken(c.UserContext(), token)
		if err != nil {
			return serviceError(c, logr, err, "Failed to fetch responses")
		}
		return c.JSON(toRecordJSON(rec, true))
	}
}

// ListResponsesHandler serves one page of the admin response list
func ListResponsesHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := svc.ListResponses(c.UserContext(), listParams(c))
		if err != nil {
			return serviceError(c, logr, err, "Failed to fetch responses")
		}

		items := make([]summaryJSON, len(page.Items))
		for i, s := range page.Items {
			items[i] = summaryJSON{
				responseJSON: toResponseJSON(s.Response, false),
				AnswerCount:  s.AnswerCount,
			}
		}

		return c.JSON(fiber.Map{
			"items":      items,
			"page":       page.Page,
			"limit":      page.Limit,
			"total":      page.Total,
			"totalPages": page.TotalPages,
		})
	}
}

// GetResponseHandler returns a response with its answers
func GetResponseHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := svc.GetRecord(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, logr, err, "Failed to fetch response")
		}
		return c.JSON(toRecordJSON(rec, false))
	}
}

// DeleteResponseHandler removes a response and its answers
func DeleteResponseHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.DeleteResponse(c.UserContext(), c.Params("id")); err != nil {
			return serviceError(c, logr, err, "Failed to delete response")
		}
		// htmx follows this back to the list after a delete from the detail page
		if c.Get("HX-Request") == "true" {
			c.Set("HX-Redirect", "/admin")
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// UpdateResponseHandler applies an admin edit of metadata and answers
func UpdateResponseHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req updateResponseRequest
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, validationMessage(err))
		}
		if msg, ok := checkEmail(req.Email); !ok {
			return errorJSON(c, fiber.StatusBadRequest, msg)
		}

		update := model.ResponseUpdate{
			BusinessName: req.BusinessName,
			Email:        req.Email,
			Completed:    req.Completed,
		}
		if update.Empty() && len(req.Answers) == 0 {
			return errorJSON(c, fiber.StatusBadRequest, "Nothing to update")
		}

		id := c.Params("id")
		if _, err := svc.UpdateResponse(c.UserContext(), id, service.UpdateRequest{
			ResponseUpdate: update,
			Answers:        answerInputs(req.Answers),
		}); err != nil {
			return serviceError(c, logr, err, "Failed to update response")
		}

		rec, err := svc.GetRecord(c.UserContext(), id)
		if err != nil {
			return serviceError(c, logr, err, "Failed to fetch response")
		}
		return c.JSON(toRecordJSON(rec, false))
	}
}

// ProgressOverrideHandler sets a response's progress without touching its
// answers
func ProgressOverrideHandler(svc *service.ResponseService, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req progressOverrideRequest
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, validationMessage(err))
		}

		r, err := svc.OverrideProgress(c.UserContext(), c.Params("id"), *req.Progress)
		if err != nil {
			return serviceError(c, logr, err, "Failed to override progress")
		}
		return c.JSON(toResponseJSON(*r, false))
	}
}

func listParams(c *fiber.Ctx) service.ListParams {
	return service.ListParams{
		Search: c.Query("search"),
		Status: c.Query("status"),
		SortBy: c.Query("sort"),
		Order:  c.Query("order"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", service.DefaultPageSize),
	}
}
