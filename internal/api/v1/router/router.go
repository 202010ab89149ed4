package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	// 1. Open DB connection pool
	dsn := cfg.DBConnectionString
	// In a development environment, we want to ensure that SSL is disabled
	// for local testing. In production, the connection string should be
	// provided with the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		dsn += dsnSeparator(dsn) + "sslmode=disable"
	}
	// For non-development environments that use a transaction pooler like
	// pgbouncer, we must use the simple query protocol to avoid issues with
	// server-side prepared statements.
	if cfg.Environment != "development" && !strings.Contains(dsn, "default_query_exec_mode") {
		dsn += dsnSeparator(dsn) + "default_query_exec_mode=simple_protocol"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Resolve external API keys that are not set in the environment
	if err := resolveSecrets(ctx, cfg, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// 3. Initialize external clients
	visionClient, err := service.NewVisionClient(ctx, cfg.VisionAPIKey,
		time.Duration(cfg.RecognitionTimeoutSec)*time.Second, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	geminiClient := service.NewGeminiClient(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey,
		time.Duration(cfg.EnrichmentTimeoutSec)*time.Second, logger)
	searchClient, err := service.NewSearchClient(ctx, cfg.SearchAPIKey, cfg.SearchEngineID,
		time.Duration(cfg.SearchTimeoutSec)*time.Second, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	marketClient := service.NewMarketClient(cfg.CoinGeckoBaseURL,
		time.Duration(cfg.MarketTimeoutSec)*time.Second, logger)

	// 4. Optional image archive (S3-compatible storage)
	var archive service.ArchiveService
	if cfg.S3Bucket != "" {
		s3Config, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
			awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
		)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		})
		archive = service.NewArchiveService(s3Client, cfg.S3Bucket, logger)
	}

	// 5. Optional analysis event publisher
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Pub/Sub unavailable, analysis events disabled")
		} else {
			publisher = p
		}
	}

	// 6. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 7. Initialize repositories & services & handlers
	usageRepo := repository.NewUsageRepo(pool)
	analysisSvc := service.NewAnalysisService(
		usageRepo, visionClient, geminiClient, searchClient, marketClient,
		archive, publisher, cfg.AnalysisEventsTopic, cfg.DailyAnalysisLimit, logger,
	)

	analyzeHandler := handler.NewAnalyzeHandler(analysisSvc, validate, logger)
	usageHandler := handler.NewUsageHandler(analysisSvc, logger)

	// 8. Create ServeMux router
	apiV1Mux := http.NewServeMux()
	analyzeHandler.RegisterRoutes(apiV1Mux)
	usageHandler.RegisterRoutes(apiV1Mux)
	apiV1Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// 9. Apply CORS middleware. The UI is a static browser app, potentially
	// served from anywhere.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	return middleware.LoggerMiddleware(logger, c.Handler(mux)), pool, nil
}

// resolveSecrets fills in any API key left empty in the environment from
// Secret Manager, when a secret name is configured for it.
func resolveSecrets(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	pending := map[string]*string{}
	if cfg.VisionAPIKey == "" && cfg.VisionAPIKeySecretName != "" {
		pending[cfg.VisionAPIKeySecretName] = &cfg.VisionAPIKey
	}
	if cfg.GeminiAPIKey == "" && cfg.GeminiAPIKeySecretName != "" {
		pending[cfg.GeminiAPIKeySecretName] = &cfg.GeminiAPIKey
	}
	if cfg.SearchAPIKey == "" && cfg.SearchAPIKeySecretName != "" {
		pending[cfg.SearchAPIKeySecretName] = &cfg.SearchAPIKey
	}
	if len(pending) == 0 {
		return nil
	}

	secrets, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
	if err != nil {
		return err
	}
	for name, target := range pending {
		value, err := secrets.GetSecret(ctx, name)
		if err != nil {
			logger.Error().Err(err).Str("secret", name).Msg("Failed to resolve secret")
			return err
		}
		*target = value
	}
	return nil
}

func dsnSeparator(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return "&"
		}
		return "?"
	}
	return " "
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Only remove the middleware if it exists.
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
