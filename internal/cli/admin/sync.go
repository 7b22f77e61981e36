package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenkb/lumen/internal/config"
	"github.com/lumenkb/lumen/internal/database"
	"github.com/lumenkb/lumen/internal/openai"
	"github.com/lumenkb/lumen/internal/repository"
	"github.com/lumenkb/lumen/internal/service"
	"github.com/lumenkb/lumen/internal/source/drive"
)

// SyncCmd returns the sync command. It runs one index sync against the
// configured document source and prints the report.
func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one index sync and exit",
		Long:  "Synchronizes the vector index with the configured document source and prints the resulting report.",
		RunE:  runSync,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("LUMEN_OPENAI_API_KEY is required")
	}
	if !cfg.HasDrive() {
		return fmt.Errorf("LUMEN_DRIVE_FOLDER_ID is required")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

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

	driveSource, err := drive.NewSource(ctx, drive.Config{
		FolderID:        cfg.DriveFolderID,
		CredentialsFile: cfg.DriveCredentialsFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create drive source: %w", err)
	}

	oaClient := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimension,
		ChatModel:      cfg.ChatModel,
		VisionModel:    cfg.VisionModel,
	})

	indexer := service.NewIndexerService(
		driveSource,
		oaClient,
		chunkRepo,
		repository.NewTxRunner(pool),
		repository.NewSyncRunRepository(pool),
		service.ChunkConfig{
			ChunkSize:  cfg.ChunkSize,
			Overlap:    cfg.ChunkOverlap,
			Separators: service.DefaultChunkConfig().Separators,
		},
	)

	log.Println("starting sync...")
	report, err := indexer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Sync %s finished in %s\n", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Printf("  added=%d updated=%d removed=%d skipped=%d failed=%d\n",
		report.Added, report.Updated, report.Removed, report.Skipped, len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  FAILED %s (%s): %s\n", f.Name, f.DocumentID, f.Reason)
	}

	if !report.Clean() {
		return fmt.Errorf("sync completed with %d failures", len(report.Failed))
	}
	return nil
}
