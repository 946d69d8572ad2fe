// Package main runs the lecture video HTTP API with an in-process reconciliation worker and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studymeta/backend/config"
	"github.com/studymeta/backend/internal/auth"
	"github.com/studymeta/backend/internal/lectures"
	"github.com/studymeta/backend/internal/media"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/internal/middleware"
	"github.com/studymeta/backend/internal/streams"
	"github.com/studymeta/backend/internal/uploads"
	"github.com/studymeta/backend/internal/uploadurls"
	"github.com/studymeta/backend/internal/vps"
	"github.com/studymeta/backend/internal/webhooks"
	"github.com/studymeta/backend/internal/worker"
	"github.com/studymeta/backend/pkg/database"
	"github.com/studymeta/backend/pkg/queue"
	"github.com/studymeta/backend/pkg/redis"
	"github.com/studymeta/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Configured() {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
			VideosBucket:    cfg.AWS.VideosBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		} else {
			logger.Info("s3 enabled", zap.String("bucket", s3Client.Bucket()), zap.Bool("mirror", cfg.AWS.MirrorPackages))
		}
	}
	var vpsClient *vps.Client
	if cfg.VPS.Configured() {
		vpsClient = vps.NewClient(cfg.VPS.APIURL, cfg.VPS.APIKey, cfg.VPS.Timeout, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Auth
	var identity auth.IdentityProvider
	if cfg.Identity.URL != "" {
		identity = auth.NewRemoteIdentity(cfg.Identity.URL, cfg.Identity.APIKey, nil)
	} else {
		identity = auth.NewJWTService(cfg.Identity.JWTSecret)
	}
	gate := auth.NewGate(identity, auth.NewRoleRepository(pool), logger)

	lectureRepo := lectures.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Synchronous upload
	runner := media.ExecRunner{}
	var mirror uploads.Mirror
	if s3Client != nil && cfg.AWS.MirrorPackages {
		mirror = s3Client
	}
	uploadService := uploads.NewService(uploads.Config{
		OutputRoot:          cfg.Pipeline.OutputRoot,
		PublicStreamBaseURL: cfg.Pipeline.PublicStreamBaseURL,
		TranscodeTimeout:    cfg.Pipeline.TranscodeTimeout,
		MaxConcurrent:       cfg.Pipeline.MaxConcurrentTranscode,
	},
		lectureRepo,
		media.NewInspector(runner, cfg.Pipeline.FFprobePath),
		media.NewTranscoder(runner, cfg.Pipeline.FFmpegPath, cfg.Pipeline.SegmentSeconds),
		jobQueue,
		mirror,
		m,
		logger,
	)
	uploadHandler := uploads.NewHandler(uploadService,
		uploads.NewStager(cfg.Pipeline.UploadDir, cfg.Pipeline.MaxUploadBytes),
		cfg.Pipeline.MaxUploadBytes, cfg.Pipeline.UploadReadTimeout, m, logger)

	// Playback
	var signer streams.Signer
	switch {
	case vpsClient != nil:
		signer = streams.NewVPSSigner(vpsClient)
	case s3Client != nil:
		signer = streams.NewS3Signer(s3Client)
	}
	broker := streams.NewBroker(lectureRepo, gate, signer, streams.Options{
		TTL:           cfg.Pipeline.StreamURLTTL,
		AllowUnsigned: cfg.Pipeline.AllowUnsignedFallback,
		PublicBaseURL: cfg.Pipeline.PublicStreamBaseURL,
	}, m, logger)

	// Direct upload
	var issuer uploadurls.Issuer
	switch {
	case vpsClient != nil:
		issuer = uploadurls.NewVPSIssuer(vpsClient)
	case s3Client != nil:
		issuer = uploadurls.NewS3Issuer(s3Client, time.Hour)
	}

	router := newRouter(routes{
		gate:       gate,
		limiter:    middleware.NewRedisLimiter(rdb.Client, "ratelimit"),
		rateLimit:  cfg.RateLimit,
		corsOrigin: cfg.Server.FrontendOrigin,
		hsts:       cfg.Server.IsProduction(),
		uploads:    uploadHandler,
		streams:    streams.NewHandler(broker, logger),
		uploadURLs: uploadurls.NewHandler(uploadurls.NewService(lectureRepo, issuer, cfg.Pipeline.MaxUploadBytes, logger), logger),
		webhooks:   webhooks.NewHandler(lectureRepo, cfg.Webhook.Secret, m, logger),
		metrics:    m,
		logger:     logger,
	})

	// ReadTimeout bounds ordinary requests; the upload handler extends its own read deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (lecture metadata reconciliation)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	processor := worker.NewLectureSyncProcessor(lectureRepo, jobQueue, m, logger)
	go processor.Run(workerCtx)
	logger.Info("lecture sync worker started")

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("upload_dir", cfg.Pipeline.UploadDir),
			zap.String("output_root", cfg.Pipeline.OutputRoot),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	// In-flight transcodes are bound to their request contexts; give them the shutdown window.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
