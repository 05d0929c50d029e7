package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/estatereach/config"
	"github.com/jordanlanch/estatereach/pkg/ai"
	"github.com/jordanlanch/estatereach/pkg/api/handlers"
	"github.com/jordanlanch/estatereach/pkg/bookings"
	"github.com/jordanlanch/estatereach/pkg/cache"
	"github.com/jordanlanch/estatereach/pkg/campaigns"
	"github.com/jordanlanch/estatereach/pkg/dashboard"
	"github.com/jordanlanch/estatereach/pkg/database"
	"github.com/jordanlanch/estatereach/pkg/demo"
	"github.com/jordanlanch/estatereach/pkg/email"
	"github.com/jordanlanch/estatereach/pkg/export"
	"github.com/jordanlanch/estatereach/pkg/leads"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	custommiddleware "github.com/jordanlanch/estatereach/pkg/middleware"
	"github.com/jordanlanch/estatereach/pkg/sms"
	"github.com/jordanlanch/estatereach/pkg/templates"
	"github.com/jordanlanch/estatereach/pkg/warming"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("✅ Database connected")

	// Initialize Redis. The API runs without it: dashboard caching and the
	// redis limiter backend just become unavailable.
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, caching disabled: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Printf("✅ Redis connected")
	}

	prometheusMetrics := metrics.New()

	// Provider selection happens once at startup. Without credentials the
	// mock backends log sends instead of delivering them.
	var emailProvider email.Provider
	if cfg.SendGridConfigured() {
		emailProvider = email.NewSendGridProvider(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, appLog)
		log.Printf("✅ Email provider: sendgrid (from: %s)", cfg.SendGridFromEmail)
	} else {
		emailProvider = email.NewMockProvider(appLog)
		log.Printf("ℹ️  Email provider: mock (SendGrid not configured)")
	}

	var smsProvider sms.Provider
	if cfg.TwilioConfigured() {
		smsProvider = sms.NewTwilioProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, appLog)
		log.Printf("✅ SMS provider: twilio (from: %s)", cfg.TwilioFromNumber)
	} else {
		smsProvider = sms.NewMockProvider(appLog)
		log.Printf("ℹ️  SMS provider: mock (Twilio not configured)")
	}

	emailLimiter := newLimiter(cfg, redisClient, "send_limit:email", cfg.SendGridDailySendLimit)
	smsLimiter := newLimiter(cfg, redisClient, "send_limit:sms", cfg.SMSDailySendLimit)

	// Services
	emailSvc := email.NewService(db.DB, emailProvider, emailLimiter, nil, cfg.SendGridDailySendLimit, prometheusMetrics, appLog)
	smsSvc := sms.NewService(db.DB, smsProvider, smsLimiter, nil, prometheusMetrics, appLog)
	leadSvc := leads.NewService(db.DB, prometheusMetrics, appLog)
	templateSvc := templates.NewService(db.DB, appLog)
	campaignSvc := campaigns.NewService(db.DB, emailSvc, templateSvc, appLog)
	bookingSvc := bookings.NewService(db.DB, prometheusMetrics, appLog)
	chatSvc := ai.NewService(db.DB, cfg.OpenAIAPIKey, cfg.OpenAIModel, appLog)
	dashboardSvc := dashboard.NewService(db.DB, redisClient, prometheusMetrics, appLog)
	demoSvc := demo.NewService(db.DB, leadSvc, templateSvc, appLog)
	exportSvc := export.NewService(db.DB)

	if cfg.OpenAIConfigured() {
		log.Printf("✅ Chatbot: OpenAI (%s)", cfg.OpenAIModel)
	} else {
		log.Printf("ℹ️  Chatbot: rule-based (OpenAI not configured)")
	}

	// Handlers
	leadHandler := handlers.NewLeadHandler(leadSvc, exportSvc)
	templateHandler := handlers.NewTemplateHandler(templateSvc)
	campaignHandler := handlers.NewCampaignHandler(campaignSvc)
	smsHandler := handlers.NewSMSHandler(smsSvc)
	chatbotHandler := handlers.NewChatbotHandler(chatSvc)
	dashboardHandler := handlers.NewDashboardHandler(dashboardSvc, emailSvc)
	demoHandler := handlers.NewDemoHandler(demoSvc)
	webhookHandler := handlers.NewWebhookHandler(emailSvc, smsSvc, bookingSvc, leadSvc, prometheusMetrics, appLog)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	rateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(rateLimiter.Middleware())

	// Public endpoints
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        cfg.AppName,
			"version":     cfg.AppVersion,
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		cacheStatus := "up"
		if redisClient == nil {
			cacheStatus = "disabled"
		} else if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			cacheStatus = "down"
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    cacheStatus,
		})
	})

	e.GET("/config", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"environment":         cfg.APIEnvironment,
			"email_mode":          emailSvc.Mode(),
			"sms_mode":            smsSvc.Mode(),
			"openai_configured":   cfg.OpenAIConfigured(),
			"calendly_configured": cfg.CalendlyConfigured(),
			"daily_email_limit":   cfg.SendGridDailySendLimit,
			"daily_sms_limit":     cfg.SMSDailySendLimit,
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Leads
	api := e.Group("/api")
	leadsGroup := api.Group("/leads")
	leadsGroup.POST("", leadHandler.Create)
	leadsGroup.GET("", leadHandler.List)
	leadsGroup.POST("/upload", leadHandler.Upload)
	leadsGroup.GET("/template/csv", leadHandler.SampleCSV)
	leadsGroup.GET("/export", leadHandler.Export)
	leadsGroup.GET("/:id", leadHandler.Get)
	leadsGroup.PUT("/:id", leadHandler.Update)
	leadsGroup.DELETE("/:id", leadHandler.Delete)

	// Templates
	templatesGroup := api.Group("/templates")
	templatesGroup.POST("", templateHandler.Create)
	templatesGroup.GET("", templateHandler.List)
	templatesGroup.GET("/default/active", templateHandler.Default)
	templatesGroup.POST("/preview", templateHandler.PreviewText)
	templatesGroup.POST("/seed/defaults", templateHandler.SeedDefaults)
	templatesGroup.GET("/:id", templateHandler.Get)
	templatesGroup.PUT("/:id", templateHandler.Update)
	templatesGroup.DELETE("/:id", templateHandler.Delete)
	templatesGroup.POST("/:id/preview", templateHandler.Preview)

	// Campaigns
	campaignsGroup := api.Group("/campaigns")
	campaignsGroup.POST("", campaignHandler.Create)
	campaignsGroup.GET("", campaignHandler.List)
	campaignsGroup.POST("/quick-start", campaignHandler.QuickStart)
	campaignsGroup.GET("/:id", campaignHandler.Get)
	campaignsGroup.PUT("/:id", campaignHandler.Update)
	campaignsGroup.DELETE("/:id", campaignHandler.Delete)
	campaignsGroup.POST("/:id/start", campaignHandler.Start)
	campaignsGroup.POST("/:id/pause", campaignHandler.Pause)
	campaignsGroup.POST("/:id/resume", campaignHandler.Resume)
	campaignsGroup.POST("/:id/complete", campaignHandler.Complete)
	campaignsGroup.GET("/:id/emails", campaignHandler.Emails)

	// SMS
	smsGroup := api.Group("/sms")
	smsGroup.POST("/send", smsHandler.Send)
	smsGroup.POST("/bulk", smsHandler.SendBulk)

	// Chatbot
	chatbotGroup := api.Group("/chatbot")
	chatbotGroup.POST("/message", chatbotHandler.Message)
	chatbotGroup.GET("/transcript/:id", chatbotHandler.Transcript)

	// Dashboard
	dashboardGroup := api.Group("/dashboard")
	dashboardGroup.GET("", dashboardHandler.Overview)
	dashboardGroup.GET("/stats", dashboardHandler.Stats)
	dashboardGroup.GET("/funnel", dashboardHandler.Funnel)
	dashboardGroup.GET("/activity", dashboardHandler.Activity)
	dashboardGroup.GET("/campaigns", dashboardHandler.Campaigns)
	dashboardGroup.GET("/quick", dashboardHandler.Quick)
	dashboardGroup.GET("/send-status", dashboardHandler.SendStatus)

	// Demo
	demoGroup := api.Group("/demo")
	demoGroup.POST("/seed", demoHandler.Seed)
	demoGroup.POST("/reset", demoHandler.Reset)
	demoGroup.POST("/simulate-replies", demoHandler.SimulateReplies)

	// Provider webhooks
	webhooks := e.Group("/webhooks")
	webhooks.POST("/sendgrid", webhookHandler.SendGrid)
	webhooks.POST("/twilio", webhookHandler.Twilio)
	webhooks.POST("/calendly", webhookHandler.Calendly)

	// Start server
	address := cfg.APIHost + ":" + cfg.APIPort
	go func() {
		log.Printf("🚀 %s listening on %s", cfg.AppName, address)
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// newLimiter picks the daily send limiter backend. Redis keeps counts
// consistent across instances; memory suits a single process.
func newLimiter(cfg *config.Config, redisClient *cache.Client, prefix string, limit int) warming.Limiter {
	if cfg.SendLimiterBackend == "redis" && redisClient != nil {
		return warming.NewRedisLimiter(redisClient.Redis, prefix, limit)
	}
	return warming.NewDailyLimiter(limit)
}
