package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/lumenkb/lumen/internal/api/handlers"
	"github.com/lumenkb/lumen/internal/config"
	"github.com/lumenkb/lumen/internal/database"
	"github.com/lumenkb/lumen/internal/domain"
	"github.com/lumenkb/lumen/internal/jobs"
	"github.com/lumenkb/lumen/internal/openai"
	"github.com/lumenkb/lumen/internal/repository"
	"github.com/lumenkb/lumen/internal/server"
	"github.com/lumenkb/lumen/internal/service"
	"github.com/lumenkb/lumen/internal/source/drive"
	"github.com/lumenkb/lumen/internal/storage"
	"github.com/lumenkb/lumen/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the lumen API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("LUMEN_OPENAI_API_KEY is required")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	if err := checkEmbeddingDimension(ctx, chunkRepo, cfg.EmbeddingDimension); err != nil {
		return err
	}

	convRepo := repository.NewConversationRepository(pool)
	syncRunRepo := repository.NewSyncRunRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	oaClient := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimension,
		ChatModel:      cfg.ChatModel,
		VisionModel:    cfg.VisionModel,
	})

	var attachmentStore handlers.AttachmentStore
	var attachmentFetcher service.AttachmentFetcher
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		adapter := &S3AttachmentAdapter{client: s3Client}
		attachmentStore = adapter
		attachmentFetcher = adapter
	}

	var indexer handlers.IndexerService
	var syncWorker *jobs.Worker
	if cfg.HasDrive() {
		driveSource, err := drive.NewSource(ctx, drive.Config{
			FolderID:        cfg.DriveFolderID,
			CredentialsFile: cfg.DriveCredentialsFile,
		})
		if err != nil {
			return fmt.Errorf("failed to create drive source: %w", err)
		}

		indexerSvc := service.NewIndexerService(driveSource, oaClient, chunkRepo, txRunner, syncRunRepo, service.ChunkConfig{
			ChunkSize:  cfg.ChunkSize,
			Overlap:    cfg.ChunkOverlap,
			Separators: service.DefaultChunkConfig().Separators,
		})
		indexer = indexerSvc

		if cfg.SyncInterval > 0 {
			syncWorker = jobs.NewWorker(jobs.NewSyncProcessor(indexerSvc), cfg.SyncInterval)
			go syncWorker.Start(ctx)
			log.Printf("sync worker started (interval %v)", cfg.SyncInterval)
		}
	} else {
		indexer = &NoOpIndexer{runs: syncRunRepo}
		log.Println("no drive folder configured, sync disabled")
	}

	retriever := service.NewRetrieverService(oaClient, chunkRepo, cfg.TopK, cfg.MinSimilarity)
	convSvc := service.NewConversationService(convRepo)
	chatSvc := service.NewChatService(
		retriever,
		&GeneratorAdapter{client: oaClient},
		oaClient,
		attachmentFetcher,
		convRepo,
		cfg.HistoryWindow,
	)

	routerCfg := server.RouterConfig{
		APIToken:           cfg.APIToken,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatHandler:        handlers.NewChatHandler(chatSvc),
		SessionHandler:     handlers.NewSessionHandler(convSvc),
		SyncHandler:        handlers.NewSyncHandler(indexer),
		DocumentsHandler:   handlers.NewDocumentsHandler(chunkRepo),
		AttachmentHandler:  handlers.NewAttachmentHandler(attachmentStore),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if syncWorker != nil {
		syncWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// GeneratorAdapter bridges the chat service onto the OpenAI client.
type GeneratorAdapter struct {
	client *openai.Client
}

func (a *GeneratorAdapter) Generate(ctx context.Context, messages []service.GenMessage) (string, error) {
	converted := make([]openai.Message, len(messages))
	for i, m := range messages {
		converted[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	return a.client.Generate(ctx, converted)
}

// S3AttachmentAdapter exposes S3 storage to the attachment handler and the
// chat service.
type S3AttachmentAdapter struct {
	client *storage.S3Client
}

func (a *S3AttachmentAdapter) Put(ctx context.Context, key string, contentType string, data []byte) error {
	return a.client.PutObject(ctx, key, contentType, data)
}

func (a *S3AttachmentAdapter) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	return a.client.GetObject(ctx, key)
}

// NoOpIndexer serves sync endpoints when no document source is configured.
// Historical reports remain readable.
type NoOpIndexer struct {
	runs *repository.SyncRunRepository
}

func (n *NoOpIndexer) Sync(ctx context.Context) (*domain.IndexReport, error) {
	return nil, domain.NewDomainError(domain.ErrCodeUnavailable, "no document source configured: LUMEN_DRIVE_FOLDER_ID required")
}

func (n *NoOpIndexer) LatestReport(ctx context.Context) (*domain.IndexReport, error) {
	return n.runs.Latest(ctx)
}

// checkEmbeddingDimension refuses to start against a database whose vector
// column width differs from the configured embedding dimension. Embeds would
// otherwise fail on every request.
func checkEmbeddingDimension(ctx context.Context, repo *repository.ChunkRepository, configured int) error {
	dim, err := repo.EmbeddingDimension(ctx)
	if err != nil {
		return fmt.Errorf("failed to read embedding column dimension: %w", err)
	}
	if dim != configured {
		return fmt.Errorf("LUMEN_EMBEDDING_DIMENSION is %d but the database embedding column is vector(%d)", configured, dim)
	}
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs database/sql, not pgx pool
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
