package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/marianozunino/vanish/internal/blob"
	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/handler"
	"github.com/marianozunino/vanish/internal/index"
	"github.com/marianozunino/vanish/internal/middleware"
	"github.com/marianozunino/vanish/internal/share"
	"github.com/marianozunino/vanish/internal/sweep"
)

// App represents the application
type App struct {
	server  *echo.Echo
	sweeper *sweep.Sweeper
	config  *config.Config
	index   *index.Index
}

// New wires the application together from a loaded configuration
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ix, err := index.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata index: %w", err)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return nil, err
	}

	svc := share.NewService(cfg, blobs, ix)
	sweeper := sweep.New(cfg, blobs, ix)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 5 * time.Minute
	e.Server.WriteTimeout = 5 * time.Minute
	e.Server.IdleTimeout = 10 * time.Minute
	e.Server.ReadHeaderTimeout = 30 * time.Second

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", int(cfg.MaxSize)+1)))
	e.Use(middleware.SecurityHeaders())

	h := handler.NewHandler(svc, cfg)
	e.POST("/upload", h.HandleUpload)
	e.GET("/download/:id", h.HandleDownload)
	e.GET("/health", h.HandleHealth)

	return &App{
		server:  e,
		sweeper: sweeper,
		config:  cfg,
		index:   ix,
	}, nil
}

func newBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Storage {
	case config.StorageS3:
		return blob.NewS3Store(cfg.S3)
	default:
		return blob.NewFSStore(cfg.UploadPath)
	}
}

// Start starts the application
func (a *App) Start() {
	if a.config.SweepEnabled {
		a.sweeper.Start()
	}

	serverAddr := fmt.Sprintf(":%d", a.config.Port)

	go func() {
		if err := a.server.Start(serverAddr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	log.Printf("Server started on %s", serverAddr)
}

// Stop stops all application services
func (a *App) Stop() {
	if a.config.SweepEnabled {
		a.sweeper.Stop()
	}

	if err := a.index.Close(); err != nil {
		log.Printf("Warning: Failed to close metadata index: %v", err)
	}
}

// Shutdown gracefully shuts down the server
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
