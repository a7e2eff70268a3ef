package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/doc-annotator/api"
	"github.com/fyerfyer/doc-annotator/api/handler"
	"github.com/fyerfyer/doc-annotator/api/middleware"
	appconfig "github.com/fyerfyer/doc-annotator/config"
	"github.com/fyerfyer/doc-annotator/internal/cache"
	"github.com/fyerfyer/doc-annotator/internal/database"
	"github.com/fyerfyer/doc-annotator/internal/repository"
	"github.com/fyerfyer/doc-annotator/internal/services"
	"github.com/fyerfyer/doc-annotator/pkg/storage"
	"github.com/fyerfyer/doc-annotator/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Server port, overrides server.port")
	flag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	gin.SetMode(cfg.Server.Mode)

	logger := setupLogger(cfg.Log)
	logger.Info("Starting document annotator...")

	if err := setupDatabase(cfg.Database, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	var resultCache cache.Cache
	if cfg.Cache.Enable {
		resultCache, err = setupCache(cfg.Cache)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		if closer, ok := resultCache.(io.Closer); ok {
			defer closer.Close()
		}
	}

	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	var repo repository.JobRepository
	if queue != nil {
		repo = repository.NewJobRepositoryWithQueue(database.MustDB(), queue)
	} else {
		repo = repository.NewJobRepository()
	}

	engine, err := engineConfig(cfg.Annotation)
	if err != nil {
		logger.Fatalf("Invalid annotation config: %v", err)
	}

	opts := []services.AnnotationOption{
		services.WithLogger(logger),
		services.WithEngineConfig(engine),
		services.WithDefaultFormat(cfg.Annotation.CommentFormat),
	}
	if resultCache != nil {
		opts = append(opts, services.WithCache(resultCache))
	}
	if queue != nil {
		opts = append(opts, services.WithTaskQueue(queue))
		logger.Info("Annotation jobs will be processed by the task queue")
	}
	annotationService := services.NewAnnotationService(fileStorage, repo, opts...)

	if queue != nil {
		worker, err := setupWorker(queue, annotationService, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	r := api.SetupRouter(handler.NewAnnotationHandler(annotationService))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统，配置了日志文件时同时写入滚动文件
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}))
	}
	return logger
}

// setupDatabase 设置数据库
func setupDatabase(cfg appconfig.DatabaseConfig, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	if cfg.Type != "" {
		dbConfig.Type = cfg.Type
	}
	if cfg.DSN != "" {
		dbConfig.DSN = cfg.DSN
	}
	return database.Setup(dbConfig, logger)
}

// setupStorage 设置文件存储服务
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type:  cfg.Type,
		Local: storage.LocalConfig{Path: cfg.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupCache 设置结果缓存
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	cacheConfig.RedisAddr = cfg.Address
	cacheConfig.RedisPassword = cfg.Password
	cacheConfig.RedisDB = cfg.DB
	if cfg.TTL > 0 {
		cacheConfig.DefaultTTL = time.Duration(cfg.TTL) * time.Second
	}
	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg appconfig.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	if cfg.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Concurrency
	}
	if cfg.RetryLimit > 0 {
		queueConfig.RetryLimit = cfg.RetryLimit
	}
	if cfg.RetryDelay > 0 {
		queueConfig.RetryDelay = time.Duration(cfg.RetryDelay) * time.Second
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": queueConfig.Concurrency,
		"retry_limit": queueConfig.RetryLimit,
	}).Info("Setting up task queue")

	if cfg.Type == "redis" || cfg.Type == "" {
		return taskqueue.NewRedisQueueWithLogger(queueConfig, logger)
	}
	return taskqueue.NewQueue(cfg.Type, queueConfig)
}

// setupWorker 在本进程内启动标注任务的工作者
func setupWorker(queue taskqueue.Queue, svc *services.AnnotationService, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("queue type %T has no worker implementation", queue)
	}

	worker := taskqueue.NewRedisWorker(redisQueue, nil)
	h := services.NewAnnotationTaskHandler(svc, logger)
	for _, t := range h.GetTaskTypes() {
		worker.RegisterHandler(t, h)
	}
	if err := worker.Start(); err != nil {
		return nil, err
	}
	return worker, nil
}

// engineConfig 将配置转换为标注引擎参数
func engineConfig(cfg appconfig.AnnotationConfig) (services.EngineConfig, error) {
	engine := services.DefaultEngineConfig()

	color, err := cfg.Color()
	if err != nil {
		return engine, err
	}
	mapping, err := cfg.Mapping()
	if err != nil {
		return engine, err
	}

	if cfg.Author != "" {
		engine.Author = cfg.Author
	}
	if cfg.MaxComments > 0 {
		engine.MaxComments = cfg.MaxComments
	}
	if cfg.MaxBodyChars > 0 {
		engine.MaxBodyChars = cfg.MaxBodyChars
	}
	engine.Color = color
	engine.Mapping = mapping
	return engine, nil
}
