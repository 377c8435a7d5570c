package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/queue"
	"rollcall/internal/room"
	"rollcall/internal/store"
)

var checkins = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_checkins_total",
	Help: "Attendance code submissions by outcome.",
}, []string{"outcome"})

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	} else if err := db.EnsureSchema(context.Background()); err != nil {
		log.Printf("warning: schema check failed: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:attendance")
	}

	rooms := room.NewRegistry(redisClient, cfg.SessionTTL, cfg.CodeLength, cfg.VerificationCap)
	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(rooms, q)

	prometheus.MustRegister(checkins)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Dev token issuance. In production an external identity provider fronts
	// this service; the core only trusts the claims it is handed.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Role   string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := auth.Issue(req.UserID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/attend", func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		result, err := svc.Attend(c.Request.Context(), req.Code, claims.Subject)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try again shortly"})
			return
		}
		checkins.WithLabelValues(result.String()).Inc()

		switch result {
		case room.CheckAccepted:
			c.JSON(http.StatusOK, gin.H{"status": result.String()})
		case room.CheckAcceptedPendingReview:
			c.JSON(http.StatusAccepted, gin.H{
				"status": result.String(),
				"detail": "you have been selected for manual verification; see your room's reviewer",
			})
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid attendance code"})
		}
	})

	reviewers := authGroup.Group("", auth.RequireRole(auth.RoleMentor))

	reviewers.POST("/meetings/:meeting_id/rooms", func(c *gin.Context) {
		var req struct {
			Location  string `json:"location"`
			SubRoomID string `json:"sub_room_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		code, err := rooms.RegisterRoom(c.Request.Context(), req.Location, c.Param("meeting_id"), req.SubRoomID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": code})
	})

	reviewers.GET("/meetings/:meeting_id/rooms/:sub_room_id", func(c *gin.Context) {
		ctx := c.Request.Context()
		code, err := rooms.GetCodeForRoom(ctx, c.Param("meeting_id"), c.Param("sub_room_id"))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if code == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not open"})
			return
		}
		session, err := rooms.GetRoom(ctx, code)
		if err != nil || session == nil {
			// The room key outlived its code entry; treat the room as closed.
			c.JSON(http.StatusNotFound, gin.H{"error": "room not open"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": code, "session": session})
	})

	reviewers.DELETE("/rooms/:code", func(c *gin.Context) {
		if err := rooms.CloseRoom(c.Request.Context(), c.Param("code")); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	reviewers.POST("/verify", func(c *gin.Context) {
		var req struct {
			UserID    string `json:"user_id" binding:"required"`
			MeetingID string `json:"meeting_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cleared, err := svc.Verify(c.Request.Context(), req.UserID, req.MeetingID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if !cleared {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user is not pending verification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "verified"})
	})

	reviewers.GET("/meetings/:meeting_id/attendances", func(c *gin.Context) {
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := repo.ListByMeeting(c.Request.Context(), c.Param("meeting_id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendances": records})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
