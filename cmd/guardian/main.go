package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/fairsight-ai/guardian/pkg/config"
	"github.com/fairsight-ai/guardian/pkg/detectors"
	"github.com/fairsight-ai/guardian/pkg/detectors/bias"
	"github.com/fairsight-ai/guardian/pkg/detectors/jailbreak"
	"github.com/fairsight-ai/guardian/pkg/detectors/toxicity"
	"github.com/fairsight-ai/guardian/pkg/guardian"
	handlers "github.com/fairsight-ai/guardian/pkg/handlers/http"
	"github.com/fairsight-ai/guardian/pkg/infra/database"
	infraLogger "github.com/fairsight-ai/guardian/pkg/infra/logger"
	"github.com/fairsight-ai/guardian/pkg/infra/moderation"
	"github.com/fairsight-ai/guardian/pkg/infra/prometheus"
	"github.com/fairsight-ai/guardian/pkg/infra/providers"
	"github.com/fairsight-ai/guardian/pkg/infra/providers/factory"
	"github.com/fairsight-ai/guardian/pkg/infra/quota"
	"github.com/fairsight-ai/guardian/pkg/infra/repository"
	"github.com/fairsight-ai/guardian/pkg/infra/telemetry"
	telemetryKafka "github.com/fairsight-ai/guardian/pkg/infra/telemetry/kafka"
	"github.com/fairsight-ai/guardian/pkg/server"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	cfg := config.GetConfig()

	prometheus.Initialize()

	db, err := database.NewDB(logger, &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	quotaStore := quota.NewRedisStore(logger, redisClient)

	// detectors
	moderationClient := moderation.NewOpenAIClient(logger, &http.Client{Timeout: 30 * time.Second}, cfg.Providers.ModerationAPIKey)
	toxicityDetector := toxicity.NewDetector(logger, moderationClient)

	locator := factory.NewProviderLocator()

	biasClient, err := locator.Get(cfg.Providers.Bias.Provider)
	if err != nil {
		logger.Fatalf("failed to initialize bias provider: %v", err)
	}
	biasDetector := bias.NewChecker(logger, biasClient, providerConfig(cfg.Providers.Bias), bias.Options{
		Pairs:     biasPairs(cfg.Guardian.BiasPairs),
		Tolerance: cfg.Guardian.BiasTolerance,
	})

	jailbreakDetector := jailbreak.NewDetector(logger)

	// remediation
	rewriteClient, err := locator.Get(cfg.Providers.Rewrite.Provider)
	if err != nil {
		logger.Fatalf("failed to initialize rewrite provider: %v", err)
	}
	rewriter := guardian.NewLLMRewriter(logger, rewriteClient, providerConfig(cfg.Providers.Rewrite))

	// recording
	var exporter telemetry.Exporter
	if cfg.Telemetry.Enabled {
		exporter, err = telemetryKafka.NewExporter(cfg.Telemetry.Kafka)
		if err != nil {
			logger.Fatalf("failed to initialize kafka exporter: %v", err)
		}
		defer exporter.Close()
	}
	recorder := guardian.NewAsyncRecorder(logger, repository.NewIncidentRepository(db.DB), exporter)
	defer recorder.Close()

	pipeline := guardian.NewPipeline(
		logger,
		[]detectors.Detector{toxicityDetector, biasDetector, jailbreakDetector},
		quotaStore,
		rewriter,
		guardian.NewExplainer(),
		recorder,
		guardian.WithDetectorTimeout(cfg.Guardian.DetectorTimeout),
		guardian.WithUnitCost(cfg.Guardian.UnitCost),
	)

	srv := server.NewServer(cfg, logger, handlers.HandlerTransport{
		AnalyzeHandler:     handlers.NewAnalyzeHandler(logger, pipeline, cfg.Guardian.Defaults),
		AnalyzeOnlyHandler: handlers.NewAnalyzeOnlyHandler(logger, pipeline),
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("failed to shut down server")
	}
}

func providerConfig(cfg config.ProviderConfig) *providers.Config {
	return &providers.Config{
		Credentials:  providers.Credentials{ApiKey: cfg.APIKey},
		Model:        cfg.Model,
		MaxTokens:    int(cfg.MaxTokens),
		Temperature:  cfg.Temperature,
		Instructions: cfg.Instructions,
	}
}

func biasPairs(pairs []config.BiasPair) []bias.AttributePair {
	if len(pairs) == 0 {
		return bias.DefaultPairs()
	}
	out := make([]bias.AttributePair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, bias.AttributePair{A: p.A, B: p.B})
	}
	return out
}
