package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/student-records-api/api/swagger"
	"github.com/noah-isme/student-records-api/internal/handler"
	"github.com/noah-isme/student-records-api/internal/middleware"
	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/cache"
	"github.com/noah-isme/student-records-api/pkg/config"
	"github.com/noah-isme/student-records-api/pkg/database"
	"github.com/noah-isme/student-records-api/pkg/jobs"
	"github.com/noah-isme/student-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-records-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-records-api/pkg/storage"
)

// @title Student Records API
// @version 1.0.0
// @description Student records service with JWT session lifecycle
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db, metrics)
	refreshRepo := repository.NewRefreshTokenRepository(db, metrics)
	revocationRepo := repository.NewRevocationRepository(redisClient)
	studentRepo := repository.NewStudentRepository(db)

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessExpiration,
	})
	if err != nil {
		logr.Sugar().Fatalw("token service init failed", "error", err)
	}

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, refreshRepo, revocationRepo, tokens, validate, logr, service.AuthConfig{
		RefreshTTL: cfg.JWT.RefreshExpiration,
	})
	userSvc := service.NewUserService(userRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Export.DownloadTTL)
	exportSvc := service.NewExportService(studentRepo, exportStore, exportSigner, logr)

	maintenance := jobs.NewQueue("maintenance", func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case "purge_refresh_tokens":
			removed, err := refreshRepo.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logr.Sugar().Infow("expired refresh tokens purged", "count", removed)
			}
			return nil
		case "cleanup_exports":
			_, err := exportSvc.CleanupOlderThan(cfg.Export.DownloadTTL)
			return err
		default:
			return fmt.Errorf("unknown maintenance job %q", job.Type)
		}
	}, jobs.QueueConfig{Workers: 1, Logger: logr})
	maintenance.Start(context.Background())
	defer maintenance.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Export.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			for _, jobType := range []string{"purge_refresh_tokens", "cleanup_exports"} {
				if err := maintenance.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType}); err != nil {
					logr.Sugar().Warnw("maintenance enqueue failed", "type", jobType, "error", err)
				}
			}
		}
	}()

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = userSvc.EnsureDefaultAdmin(seedCtx, service.SeedAdmin{
		Username: cfg.Seed.AdminUsername,
		Password: cfg.Seed.AdminPassword,
	})
	cancel()
	if err != nil {
		logr.Sugar().Fatalw("admin seed failed", "error", err)
	}

	authHandler := handler.NewAuthHandler(authSvc, metrics)
	studentHandler := handler.NewStudentHandler(studentSvc)
	adminHandler := handler.NewAdminHandler(userSvc)
	redisHandler := handler.NewRedisHandler(redisClient)
	metricsHandler := handler.NewMetricsHandler(metrics)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.Authenticate(tokens, revocationRepo, userRepo, metrics, logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Scrape)

	r.POST("/authenticate", authHandler.Authenticate)
	r.POST("/refresh", authHandler.Refresh)
	r.POST("/logout", authHandler.Logout)
	r.POST("/signup", authHandler.Signup)

	students := r.Group("/students", middleware.RequireAuth())
	{
		students.GET("", studentHandler.List)
		students.GET("/search", studentHandler.Search)
		students.POST("", studentHandler.Create)
		students.GET("/:id", studentHandler.Get)
		students.PUT("/:id", studentHandler.Update)
		students.DELETE("/:id", studentHandler.Delete)
	}

	admin := r.Group("/admin", middleware.RequireAuth(), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/page", adminHandler.ListUsersPage)
		admin.POST("/students/export", exportHandler.Export)
	}

	// Downloads authenticate with the signed token alone.
	r.GET("/exports/download", exportHandler.Download)

	redisGroup := r.Group("/redis", middleware.RequireAuth(), middleware.RequireRoles(models.RoleAdmin))
	{
		redisGroup.GET("/ping", redisHandler.Ping)
		redisGroup.POST("/set", redisHandler.Set)
		redisGroup.GET("/get", redisHandler.Get)
		redisGroup.DELETE("/del", redisHandler.Del)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
