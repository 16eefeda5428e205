package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/middlewares"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/mmdatafocus/shifts_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultPort = "8080"

var tracer = otel.Tracer("shifts-backend")

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// correlationMiddleware reuses the caller's x-correlation-id or generates one.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// setupRouter builds the engine with every route. It does not touch the network.
func setupRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Redis is optional; the database is not.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	// credentials cannot be combined with a wildcard origin
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	r.Use(cors.New(corsConfig))

	// RATE_LIMIT_ENABLED=true, RATE_LIMIT_WINDOW_SECONDS=60, RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		if client := config.GetRedisDB(); client != nil {
			limit := int64(600)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					limit = n
				}
			}
			windowSec := int64(60)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					windowSec = n
				}
			}
			r.Use(NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second).RateLimitMiddleware)
		} else {
			logger.WithFields(logrus.Fields{"field": "rateLimiter"}).Warn("redis not ready; rate limiting disabled")
		}
	}

	r.Use(tracingMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/", middlewares.RequireAuth())
	api.POST("/shift-reports", createShiftReportHandler())
	api.GET("/shift-reports/:id", getShiftReportHandler())
	api.PUT("/shift-reports/:id", updateShiftReportHandler())
	api.DELETE("/shift-reports/:id", deleteShiftReportHandler())
	api.POST("/shift-reports/:id/recalculate", recalculateShiftReportHandler())
	api.PUT("/shift-report-details/:id", updateShiftReportDetailHandler())
	api.GET("/leaves", listLeavesHandler())
	api.POST("/leaves", createLeaveHandler())
	api.PUT("/leaves/:id", updateLeaveHandler())
	api.DELETE("/leaves/:id", deleteLeaveHandler())
	api.POST("/project-works", createProjectWorkHandler())
	api.PUT("/project-works/:id", updateProjectWorkHandler())
	api.POST("/price-tiers", setPriceTierHandler())
	api.POST("/push-subscriptions", savePushSubscriptionHandler())
	api.GET("/payroll", payrollSummaryHandler())
	api.GET("/payroll/export", payrollExportHandler())
	// Ops tooling (admin only): requeue notifications that failed delivery.
	api.POST("/internal/ops/notifications/replay", notificationReplayHandler())
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Until the database is ready, app endpoints answer 503.
	r := setupRouter(logger)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	if err := config.ConnectDatabase(); err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Fatal(err.Error())
	}
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can hold DDL locks; production runs it as a separate job.
	if !config.SkipMigrations() {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if config.DatabaseDriver() == "mysql" {
		for attempt := 1; ; attempt++ {
			err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
			if err == nil {
				break
			}
			sleep := time.Second * time.Duration(1<<min(attempt, 5))
			if sleep > 30*time.Second {
				sleep = 30 * time.Second
			}
			logger.WithFields(logrus.Fields{
				"field":   "database",
				"attempt": attempt,
			}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
			time.Sleep(sleep)
		}
	}

	// Notifications are delivered only after the business write commits.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	dispatcher := workflow.NewNotificationDispatcher(db, logger, workflow.NewHandlerRegistry(), workflow.NewPushSender(logger))
	go dispatcher.Run(dispatcherCtx)

	logger.WithFields(logrus.Fields{
		"info":          "Connection Established",
		"dispatcher_id": dispatcher.DispatcherID,
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the dispatcher before draining so it claims no new work.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per client IP in a fixed window.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
