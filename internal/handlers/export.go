package handlers

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/readiness/internal/export"
	"github.com/jjenkins/readiness/internal/service"
)

type exportRequest struct {
	IDs    []string `json:"ids" form:"ids"`
	Format string   `json:"format" form:"format"`
}

// ExportHandler downloads the selected responses as CSV or XLSX. It accepts
// a JSON body or the dashboard's form post.
func ExportHandler(svc *service.ResponseService, exporter *export.Exporter, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req exportRequest
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}

		if len(req.IDs) == 0 {
			return errorJSON(c, fiber.StatusBadRequest, "Response IDs are required")
		}
		format, err := export.ParseFormat(req.Format)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, `Format must be either "csv" or "xlsx"`)
		}

		return sendExport(c, svc, exporter, logr, req.IDs, format)
	}
}

// ExportOneHandler downloads a single response from its detail page
func ExportOneHandler(svc *service.ResponseService, exporter *export.Exporter, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := export.ParseFormat(c.Query("format", string(export.FormatXLSX)))
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, `Format must be either "csv" or "xlsx"`)
		}
		return sendExport(c, svc, exporter, logr, []string{c.Params("id")}, format)
	}
}

func sendExport(c *fiber.Ctx, svc *service.ResponseService, exporter *export.Exporter, logr *slog.Logger, ids []string, format export.Format) error {
	records, err := svc.FetchRecords(c.UserContext(), ids)
	if err != nil {
		return serviceError(c, logr, err, "Failed to export responses")
	}

	data, err := exporter.Export(records, format)
	if err != nil {
		return serviceError(c, logr, err, "Failed to export responses")
	}

	var businessName string
	if len(records) == 1 {
		businessName = records[0].BusinessName.String
	}
	filename := export.Filename(format, len(records), businessName, time.Now())

	logr.Info("responses exported",
		slog.Int("count", len(records)),
		slog.String("format", string(format)),
		slog.Int("bytes", len(data)),
	)

	c.Set(fiber.HeaderContentType, export.ContentType(format))
	c.Set(fiber.HeaderContentDisposition, contentDisposition(filename))
	c.Set(fiber.HeaderContentLength, strconv.Itoa(len(data)))
	return c.Status(fiber.StatusOK).Send(data)
}

// contentDisposition names the download; filename* carries names with Thai
// characters for clients that read RFC 5987 parameters
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, filename, url.PathEscape(filename))
}
