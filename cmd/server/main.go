package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/access"
	"github.com/lettertrack/lettertrack/internal/config"
	"github.com/lettertrack/lettertrack/internal/email"
	"github.com/lettertrack/lettertrack/internal/fulfillment"
	httpserver "github.com/lettertrack/lettertrack/internal/interfaces/http"
	"github.com/lettertrack/lettertrack/internal/render"
	"github.com/lettertrack/lettertrack/internal/report"
	"github.com/lettertrack/lettertrack/internal/repository"
	"github.com/lettertrack/lettertrack/internal/storage"
	"github.com/lettertrack/lettertrack/internal/upload"
	"github.com/lettertrack/lettertrack/pkg/database"
	"github.com/lettertrack/lettertrack/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting letter request fulfillment service",
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Create working directories
	for _, dir := range []string{cfg.Uploads.Dir, cfg.Letters.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create directory",
				zap.String("dir", dir),
				zap.Error(err))
		}
	}

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	destinationRepo := repository.NewDestinationRepository(db.DB, logger)
	letterRepo := repository.NewLetterRepository(db.DB, logger)
	documentRepo := repository.NewDocumentRepository(db.DB, logger)
	templateRepo := repository.NewTemplateRepository(db.DB, logger)

	// Initialize the fulfillment service and its collaborators
	fileStorage := storage.NewLocalFileStorage(cfg.Uploads.Dir, logger)
	service := fulfillment.NewService(fulfillment.Deps{
		DB:           db,
		Requests:     requestRepo,
		Destinations: destinationRepo,
		Letters:      letterRepo,
		Documents:    documentRepo,
		Templates:    templateRepo,
		Issuer:       access.NewIssuer(logger),
		Validator:    upload.NewValidator(fileStorage, logger),
		Folders:      storage.NewFolderManager(cfg.Uploads.Dir, logger),
		Renderer:     render.NewPDFRenderer(cfg.Letters.OutputDir, logger),
		Transport: email.NewSMTPTransport(email.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			FromAddress: cfg.SMTP.FromAddress,
			FromName:    cfg.SMTP.FromName,
		}, logger),
		Composer: email.ComposerConfig{
			ProfessorName: cfg.Letters.ProfessorName,
			Institution:   cfg.Letters.Institution,
		},
		Logger: logger,
	})

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Uploads.MaxFileSize,
	}, service, report.NewExporter(logger), logger)

	// Serve until interrupted, then shut down gracefully
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
