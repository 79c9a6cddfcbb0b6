package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/auth"
	"app/internal/cache"
	"app/internal/config"
	"app/internal/database"
	"app/internal/media"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/summarize"
	"app/internal/transcribe"
	"app/pkg/executor"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Resources holds the long-lived dependencies the router opens; main closes
// them on shutdown and drives the background sweeper.
type Resources struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Sweeper *service.Sweeper
}

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *Resources, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	// 1. Open DB connection and run migrations
	dsn := cfg.DBConnectionString
	// Local databases usually run without TLS; production connection strings
	// are expected to carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := database.Open(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open database")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Connect to Redis for the transcript cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		pool.Close()
		logger.Error().Err(err).Msg("Failed to ping Redis")
		return nil, nil, err
	}
	logger.Info().Msg("Redis connection successful")

	// 3. Initialize S3 client for payment proofs
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		pool.Close()
		logger.Error().Err(err).Msg("Failed to load S3 config")
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Media pipeline components
	transcoder := media.NewTranscoder(
		executor.New(),
		cfg.TempDir,
		time.Duration(cfg.ConvertTimeoutSec)*time.Second,
		time.Duration(cfg.ProbeTimeoutSec)*time.Second,
		logger,
	)
	if !transcoder.CheckInstalled() {
		logger.Warn().Msg("ffmpeg/ffprobe not found, uploads will fail until installed")
	}
	mediaValidator := media.NewValidator(cfg.MaxUploadSizeMB)
	transcriber := transcribe.NewWhisperTranscriber(
		cfg.OpenAIAPIKey, cfg.WhisperModel, cfg.WhisperLanguage,
		time.Duration(cfg.TranscribeTimeoutSec)*time.Second,
	)
	summarizer := summarize.NewGroqSummarizer(
		cfg.GroqAPIKey, cfg.GroqModel,
		time.Duration(cfg.SummarizeTimeoutSec)*time.Second,
	)
	transcripts := cache.NewTranscriptCache(redisClient, logger)

	// 6. Repositories, services, handlers
	creditRepo := repository.NewCreditRepo(pool)
	purchaseRepo := repository.NewPurchaseRepo(pool)
	subscriptionRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	recordingRepo := repository.NewRecordingRepo(pool)

	proofStorage := service.NewProofStorage(s3Client, cfg.S3Bucket)
	creditSvc := service.NewCreditService(creditRepo, purchaseRepo, proofStorage, logger)
	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, usageRepo, recordingRepo, logger)
	xenditSvc := service.NewXenditService(
		cfg.XenditBaseURL, cfg.XenditSecretKey, cfg.XenditWebhookToken, cfg.FrontendURL,
		paymentRepo, subscriptionSvc, logger,
	)
	pipelineSvc := service.NewPipelineService(
		mediaValidator, transcoder, transcriber, summarizer, transcripts,
		creditSvc, subscriptionSvc, recordingRepo, logger,
	)
	recordingsSvc := service.NewRecordingQueryService(recordingRepo)

	pipelineHandler := handler.NewPipelineHandler(pipelineSvc, recordingsSvc, transcripts, validate, cfg.MaxUploadSizeMB, logger)
	creditHandler := handler.NewCreditHandler(creditSvc, subscriptionSvc, validate, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionSvc, xenditSvc, validate, logger)
	adminHandler := handler.NewAdminHandler(creditSvc, transcripts, validate, logger)
	healthHandler := handler.NewHealthHandler(cfg, transcoder)

	// 7. Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)
	adminMiddleware := middleware.AdminMiddleware(auth.NewStaticTokenAuthorizer(cfg.AdminToken))

	// 8. Routes
	apiV1Mux := http.NewServeMux()
	pipelineHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	creditHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	adminHandler.RegisterRoutes(apiV1Mux, adminMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	healthHandler.RegisterRoutes(mux)

	// 9. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	resources := &Resources{
		Pool:  pool,
		Redis: redisClient,
		Sweeper: service.NewSweeper(
			transcripts, recordingRepo, cfg.TempDir,
			time.Duration(cfg.SweepIntervalMin)*time.Minute, logger,
		),
	}
	return middleware.LoggerMiddleware(c.Handler(mux)), resources, nil
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.Environment == "development" || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
