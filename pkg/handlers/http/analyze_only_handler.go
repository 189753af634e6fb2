package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/fairsight-ai/guardian/pkg/guardian"
)

type analyzeOnlyRequest struct {
	Text   string   `json:"text"`
	Checks []string `json:"checks"`
}

type analyzeOnlyHandler struct {
	logger   *logrus.Logger
	pipeline *guardian.Pipeline
}

func NewAnalyzeOnlyHandler(logger *logrus.Logger, pipeline *guardian.Pipeline) Handler {
	return &analyzeOnlyHandler{
		logger:   logger,
		pipeline: pipeline,
	}
}

func (h *analyzeOnlyHandler) Handle(c *fiber.Ctx) error {
	var req analyzeOnlyRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.WithError(err).Error("failed to bind analyze-only request")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	checks := make([]safety.Category, 0, len(req.Checks))
	for _, name := range req.Checks {
		checks = append(checks, safety.Category(name))
	}
	if len(checks) == 0 {
		checks = safety.Categories
	}

	findings, err := h.pipeline.AnalyzeOnly(c.Context(), req.Text, checks)
	if err != nil {
		if safety.IsConfigurationError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.WithError(err).Error("analyze-only request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "analysis failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"findings": findings})
}
