package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/fairsight-ai/guardian/pkg/guardian"
)

type analyzeRequest struct {
	Prompt   string         `json:"prompt"`
	Response string         `json:"response"`
	TenantID string         `json:"tenant_id"`
	Config   *safety.Config `json:"config,omitempty"`
}

type analyzeHandler struct {
	logger   *logrus.Logger
	pipeline *guardian.Pipeline
	defaults safety.Config
}

func NewAnalyzeHandler(logger *logrus.Logger, pipeline *guardian.Pipeline, defaults safety.Config) Handler {
	return &analyzeHandler{
		logger:   logger,
		pipeline: pipeline,
		defaults: defaults,
	}
}

func (h *analyzeHandler) Handle(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.WithError(err).Error("failed to bind analysis request")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.TenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tenant_id is required"})
	}
	if req.Response == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "response is required"})
	}

	cfg := h.defaults
	if req.Config != nil {
		cfg = *req.Config
	}

	verdict, err := h.pipeline.AnalyzeAndEnforce(c.Context(), safety.AnalysisRequest{
		Prompt:   req.Prompt,
		Response: req.Response,
		TenantID: req.TenantID,
		Config:   cfg,
	})
	if err != nil {
		switch {
		case safety.IsConfigurationError(err):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, safety.ErrQuotaExceeded):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "safety inference unit quota exceeded"})
		default:
			h.logger.WithError(err).Error("analysis pipeline failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "analysis failed"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(verdict)
}
