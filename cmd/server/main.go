package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/dispatcher"
	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/application/service"
	"github.com/garyjia/expense-drafts/internal/config"
	"github.com/garyjia/expense-drafts/internal/domain/event"
	"github.com/garyjia/expense-drafts/internal/domain/extraction"
	"github.com/garyjia/expense-drafts/internal/domain/normalize"
	"github.com/garyjia/expense-drafts/internal/domain/workflow"
	"github.com/garyjia/expense-drafts/internal/infrastructure/export"
	"github.com/garyjia/expense-drafts/internal/infrastructure/external/gemini"
	"github.com/garyjia/expense-drafts/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-drafts/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-drafts/internal/infrastructure/imaging"
	"github.com/garyjia/expense-drafts/internal/infrastructure/metrics"
	"github.com/garyjia/expense-drafts/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-drafts/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-drafts/internal/infrastructure/resilience"
	"github.com/garyjia/expense-drafts/internal/infrastructure/storage"
	httpserver "github.com/garyjia/expense-drafts/internal/interfaces/http"
	"github.com/garyjia/expense-drafts/pkg/database"
	"github.com/garyjia/expense-drafts/pkg/logging"
)

var draftEvents = []event.Type{
	event.TypeReceiptUploaded,
	event.TypeDraftCreated,
	event.TypeDraftEvaluated,
	event.TypeDraftEdited,
	event.TypeDraftProposed,
	event.TypeDraftSubmitted,
	event.TypeExtractionFailed,
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	path := *configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting expense drafts service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("extraction_provider", cfg.Extraction.Provider))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv := logging.NewKV(logger)

	// Initialize database
	if cfg.Database.Path != database.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize repositories
	store := sqlite.NewDB(db.DB, logger)
	draftRepo := repository.NewDraftRepository(store, logger)
	receiptRepo := repository.NewReceiptRepository(store, logger)
	ruleRepo := repository.NewRuleRepository(store, logger)
	referenceRepo := repository.NewReferenceRepository(store, logger)

	if err := seedPolicyRules(ctx, store, ruleRepo, cfg.Policy.Rules, logger); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Storage.ReceiptsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create receipts directory: %w", err)
	}
	fileStorage := storage.NewLocalFileStorage(cfg.Storage.ReceiptsDir, logger)

	// Initialize AI providers
	prompts, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	openaiCfg := openai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		VisionModel: cfg.OpenAI.VisionModel,
		Timeout:     cfg.OpenAI.Timeout,
		Prompts:     prompts,
	}
	openaiClient := openai.NewClient(openaiCfg)

	extractor, closeExtractor, err := newExtractor(ctx, cfg, openaiCfg, openaiClient, logger)
	if err != nil {
		return err
	}
	defer closeExtractor()

	breakerCfg := resilience.Config{
		MaxFailures: cfg.Resilience.MaxFailures,
		OpenTimeout: cfg.Resilience.OpenTimeout,
	}
	// Conversion runs outside the breaker so bad uploads never trip it
	extractor = resilience.GuardExtractor(extractor, resilience.NewBreaker("extractor", breakerCfg, logger))
	extractor = imaging.NewConvertingExtractor(extractor, imaging.NewConverter(cfg.Extraction.MaxPDFPages, logger), logger)
	categorizer := resilience.GuardCategorizer(
		openai.NewCategorizer(openaiClient, openaiCfg, logger),
		resilience.NewBreaker("categorizer", breakerCfg, logger),
	)

	// Events
	recorder := metrics.New()
	events := dispatcher.New(dispatcher.WithLogger(kv))
	defer events.Close()
	for _, t := range draftEvents {
		events.Subscribe(t, "metrics", recorder.RecordTransition)
	}
	notifier := lark.NewNotifier(lark.Config{
		AppID:          cfg.Lark.AppID,
		AppSecret:      cfg.Lark.AppSecret,
		BaseURL:        cfg.Lark.BaseURL,
		ReviewerChatID: cfg.Lark.ReviewerChatID,
	}, logger)
	events.Subscribe(event.TypeDraftSubmitted, "lark-notifier", service.NotifyOnSubmit(draftRepo, notifier, kv))

	// Initialize services
	lifecycle := workflow.NewLifecycle(time.Now)
	draftService := service.NewDraftService(service.DraftServiceDeps{
		Drafts:      draftRepo,
		Receipts:    receiptRepo,
		Rules:       ruleRepo,
		References:  referenceRepo,
		Storage:     fileStorage,
		Extractor:   extractor,
		Categorizer: categorizer,
		TxManager:   store,
		Events:      events,
		Metrics:     recorder,
		Reconciler: extraction.NewReconciler(
			normalize.NewNormalizer(cfg.Normalization.Aliases),
			normalize.NewClassifier(cfg.Classification.Categories),
		),
		Lifecycle: lifecycle,
		Logger:    kv,
	})

	services := httpserver.Services{
		Receipts:   service.NewReceiptService(receiptRepo, fileStorage, store, events, kv),
		Drafts:     draftService,
		References: service.NewReferenceService(referenceRepo, kv),
		Export:     service.NewExportService(draftService, export.NewWorkbookWriter(logger), kv),
	}

	var metricsHandler = recorder.Handler()
	if !cfg.Metrics.Enabled {
		metricsHandler = nil
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		MetricsPath:     cfg.Metrics.Path,
	}, services, metricsHandler, kv)

	return server.Start(ctx)
}

// newExtractor builds the configured vision provider. The returned func releases it.
func newExtractor(
	ctx context.Context,
	cfg *config.Config,
	openaiCfg openai.Config,
	client *gopenai.Client,
	logger *zap.Logger,
) (port.Extractor, func(), error) {
	if cfg.Extraction.Provider != config.ProviderGemini {
		return openai.NewExtractor(client, openaiCfg, logger), func() {}, nil
	}

	spec := openaiCfg.Prompts.ReceiptExtraction
	ext, err := gemini.NewExtractor(ctx, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
		Prompt:  spec.System + "\n\n" + spec.UserTemplate,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize gemini extractor: %w", err)
	}
	return ext, func() {
		if err := ext.Close(); err != nil {
			logger.Warn("Failed to close gemini client", zap.Error(err))
		}
	}, nil
}

// seedPolicyRules upserts the configured rules in one transaction; list position is evaluation order
func seedPolicyRules(ctx context.Context, tx port.TransactionManager, rules port.RuleRepository, seeds []config.PolicyRuleConfig, logger *zap.Logger) error {
	if len(seeds) == 0 {
		return nil
	}
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		for i, r := range seeds {
			if err := rules.Upsert(ctx, r.Code, i, r.Document()); err != nil {
				return fmt.Errorf("rule %s: %w", r.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed policy rules: %w", err)
	}
	logger.Info("Policy rules seeded", zap.Int("count", len(seeds)))
	return nil
}
