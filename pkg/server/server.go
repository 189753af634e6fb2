package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fairsight-ai/guardian/pkg/config"
	handlers "github.com/fairsight-ai/guardian/pkg/handlers/http"
	"github.com/fairsight-ai/guardian/pkg/infra/prometheus"
)

type Server struct {
	config           *config.Config
	logger           *logrus.Logger
	router           *fiber.App
	handlerTransport handlers.HandlerTransport
	metricsStarted   bool
}

func NewServer(cfg *config.Config, logger *logrus.Logger, handlerTransport handlers.HandlerTransport) *Server {
	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		BodyLimit:             8 * 1024 * 1024,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	r.Server().NoDefaultServerHeader = true
	r.Server().NoDefaultDate = true
	r.Server().NoDefaultContentType = true

	return &Server{
		config:           cfg,
		logger:           logger,
		router:           r,
		handlerTransport: handlerTransport,
	}
}

func (s *Server) Run() error {
	s.router.Use(recover.New())
	s.setupRoutes()
	s.setupHealthCheck()
	s.setupMetricsEndpoint()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.WithField("addr", addr).Info("starting guardian server")
	return s.router.Listen(addr)
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		analysis := v1.Group("/analysis")
		{
			analysis.Post("", s.handlerTransport.AnalyzeHandler.Handle)
			analysis.Post("/checks", s.handlerTransport.AnalyzeOnlyHandler.Handle)
		}
	}
}

func (s *Server) setupHealthCheck() {
	s.router.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}

// setupMetricsEndpoint exposes the prometheus registry on its own port so the
// scrape surface is never reachable through the public API.
func (s *Server) setupMetricsEndpoint() {
	if s.metricsStarted {
		return
	}
	s.metricsStarted = true

	metricsApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	metricsApp.Use(recover.New())

	metricsApp.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(prometheus.Handler())
		handler(c.Context())
		return nil
	})

	go func() {
		addr := fmt.Sprintf(":%d", s.config.Server.MetricsPort)
		if err := metricsApp.Listen(addr); err != nil {
			if !strings.Contains(err.Error(), "address already in use") {
				s.logger.WithError(err).Error("failed to start metrics server")
			}
		}
	}()
}

func (s *Server) Shutdown() error {
	return s.router.Shutdown()
}
