package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"image-track-backend/internal/blob"
	"image-track-backend/internal/config"
	"image-track-backend/internal/handlers"
	"image-track-backend/internal/middleware"
	"image-track-backend/internal/services"
	"image-track-backend/internal/store"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Initialize entry store
	entryStore, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer entryStore.Close()

	// Initialize storage for uploaded binaries
	blobStorage, localUploads, err := newBlobStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize upload storage")
	}

	// Initialize services
	wsHub := services.NewWSHub()
	trackingService := services.NewTrackingService(entryStore, blobStorage, wsHub)

	// Initialize handlers
	imageHandler := handlers.NewImageHandler(trackingService)
	wsHandler := handlers.NewWebSocketHandler(wsHub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", imageHandler.Upload)
		r.Post("/track/{id}", imageHandler.TrackView)
		r.Get("/image/{id}", imageHandler.GetImage)
		r.Get("/images", imageHandler.ListImages)
	})

	// Dashboard live feed
	r.Get("/ws/dashboard", wsHandler.HandleDashboard)

	// Static pages and uploaded binaries
	r.Get("/view/{id}", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join("web", "view.html"))
	})
	if localUploads != nil {
		fileServer(r, "/uploads", http.Dir(localUploads.Dir()))
	}
	fileServer(r, "/", http.Dir("web"))

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Backend).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newStore builds the entry store selected by configuration
func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		return store.NewFileStore(cfg.Storage.File.Path)
	case "postgres":
		db, err := pgxpool.New(context.Background(), cfg.Storage.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info().Msg("Database connection established")
		return store.NewPostgresStore(context.Background(), db)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newBlobStorage builds the uploaded-binary storage selected by
// configuration. The local storage is also returned concretely so the router
// can serve its directory.
func newBlobStorage(cfg *config.Config) (blob.Storage, *blob.LocalStorage, error) {
	switch cfg.Uploads.Backend {
	case "local":
		local, err := blob.NewLocalStorage(cfg.Uploads.Dir)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	case "s3":
		s3Storage, err := blob.NewS3Storage(
			context.Background(),
			cfg.AWS.Region,
			cfg.AWS.S3Bucket,
			cfg.AWS.AccessKey,
			cfg.AWS.SecretKey,
			cfg.AWS.Endpoint,
		)
		if err != nil {
			return nil, nil, err
		}
		return s3Storage, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown uploads backend %q", cfg.Uploads.Backend)
	}
}

// fileServer mounts a static file server under path
func fileServer(r chi.Router, path string, root http.FileSystem) {
	fs := http.StripPrefix(path, http.FileServer(root))
	if path != "/" {
		path += "/"
	}
	r.Get(path+"*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
	if path == "/" {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			fs.ServeHTTP(w, req)
		})
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
