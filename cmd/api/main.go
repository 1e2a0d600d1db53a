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
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/zamfin/loanpilot-api/docs" // Swagger docs
	"github.com/zamfin/loanpilot-api/internal/config"
	"github.com/zamfin/loanpilot-api/internal/database"
	"github.com/zamfin/loanpilot-api/internal/handlers"
	"github.com/zamfin/loanpilot-api/internal/jobs"
	"github.com/zamfin/loanpilot-api/internal/middleware"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/services"
	"github.com/zamfin/loanpilot-api/internal/storage"
	"github.com/zamfin/loanpilot-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title LoanPilot API
// @version 1.0
// @description REST API for LoanPilot Loan Management System
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8081
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn: cfg.SentryDSN,
			// Set TracesSampleRate to 1.0 to capture 100% of transactions for performance monitoring.
			// Set to a lower value (e.g. 0.2) in production if needed.
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Warn if Resend email is not configured (API loads .env, not .production.env)
	if cfg.ResendAPIKey == "" || cfg.FromEmail == "" {
		logger.Warn("Resend email disabled: RESEND_API_KEY or FROM_EMAIL not set. Set them in .env and ensure the From domain is verified in Resend dashboard.")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, store, cfg, db)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, store)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Redirect root to swagger
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})

		// Swagger documentation
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// Password recovery (public)
		v1.POST("/users/send_recovery_code", h.User.SendRecoveryCode)
		v1.POST("/users/verify_recovery_code", h.User.VerifyRecoveryCode)
		v1.POST("/users/update_password_with_code", h.User.UpdatePasswordWithCode)

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				// User management (admin only; PUT /users/:user_id is below for admin or owner)
				admin.DELETE("/users/:user_id", h.User.Delete)
				admin.PUT("/users/:user_id/toggle_status", h.User.ToggleStatus)
				admin.POST("/users/:user_id/restore", h.User.Restore)

				// Loan lifecycle decisions (admin only)
				admin.DELETE("/loans/:loan_id", h.Loan.Delete)
				admin.POST("/loans/:loan_id/approve", h.Loan.Approve)
				admin.POST("/loans/:loan_id/reject", h.Loan.Reject)
				admin.POST("/loans/:loan_id/release", h.Loan.Release)
				admin.POST("/loans/:loan_id/close", h.Loan.Close)
				admin.POST("/loans/:loan_id/default", h.Loan.MarkDefaulted)
				admin.POST("/loans/:loan_id/reinstate", h.Loan.Reinstate)

				// Repayment reversal (admin only)
				admin.POST("/repayments/:repayment_id/reverse", h.Repayment.Reverse)

				// Borrower archival (admin only)
				admin.DELETE("/borrowers/:borrower_id", h.Borrower.Archive)
				admin.POST("/borrowers/:borrower_id/restore", h.Borrower.Restore)

				// Wallet deposits (admin only)
				admin.POST("/wallets/deposit", h.Wallet.Deposit)
			}

			// Staff routes (admin + loan officers)
			staff := protected.Group("")
			staff.Use(middleware.RequireRole("admin", "officer"))
			{
				// User viewing (officers can look up colleagues) and creation
				staff.GET("/users", h.User.Index)
				staff.POST("/users", h.User.Create)

				// Borrower management
				staff.GET("/borrowers", h.Borrower.Index)
				staff.POST("/borrowers", h.Borrower.Create)
				staff.GET("/borrowers/:borrower_id", h.Borrower.Show)
				staff.PUT("/borrowers/:borrower_id", h.Borrower.Update)
				staff.POST("/borrowers/:borrower_id/upload_photo", h.Borrower.UploadPhoto)
				staff.GET("/borrowers/:borrower_id/loans", h.Borrower.Loans)
				staff.POST("/borrowers/:borrower_id/refresh_score", h.Borrower.RefreshScore)

				// Loan applications and books
				staff.GET("/loans", h.Loan.Index)
				staff.POST("/loans", h.Loan.Create)
				staff.GET("/loans/stats", h.Loan.GetStats)
				staff.GET("/loans/portfolio_stats", h.Loan.GetPortfolioStats)
				staff.GET("/loans/export", h.Loan.Export)
				staff.GET("/loans/:loan_id", h.Loan.Show)
				staff.PUT("/loans/:loan_id", h.Loan.Update)
				staff.POST("/loans/:loan_id/assess", h.Loan.Assess)
				staff.GET("/loans/:loan_id/schedule", h.Loan.Schedule)
				staff.GET("/loans/:loan_id/schedule_pdf", h.Loan.SchedulePDF)
				staff.GET("/loans/:loan_id/agreement_pdf", h.Loan.AgreementPDF)

				// Repayments
				staff.GET("/repayments", h.Repayment.Index)
				staff.GET("/repayments/statistics", h.Repayment.Statistics)
				staff.GET("/repayments/:repayment_id", h.Repayment.Show)
				staff.POST("/loans/:loan_id/repayments", h.Repayment.Create)
				staff.GET("/loans/:loan_id/repayments", h.Repayment.IndexByLoan)
				staff.POST("/repayments/:repayment_id/upload_receipt", h.Repayment.UploadReceipt)
				staff.GET("/repayments/:repayment_id/download_receipt", h.Repayment.DownloadReceipt)
				staff.GET("/repayments/:repayment_id/receipt_pdf", h.Repayment.ReceiptPDF)

				// Reports
				staff.GET("/reports/loan_book_csv", h.Report.LoanBookCSV)
				staff.GET("/reports/collections_csv", h.Report.CollectionsCSV)
				staff.GET("/reports/overdue_loans_csv", h.Report.OverdueLoansCSV)
				staff.GET("/reports/borrower_statement_pdf", h.Report.BorrowerStatementPDF)

				// Wallet balances
				staff.GET("/wallets", h.Wallet.Index)

				// Audit trail
				staff.GET("/audits", h.Audit.Index)

				// Background job stats
				staff.GET("/jobs/status", h.Job.Status)
			}

			// All authenticated users (personal data access)
			// Profile viewing/update: admin or profile owner only
			protected.GET("/users/:user_id", middleware.RequireAdminOrOwner(), h.User.Show)
			protected.PUT("/users/:user_id", middleware.RequireAdminOrOwner(), h.User.Update)
			// User can change their own password
			protected.PATCH("/users/:user_id/change_password", h.User.ChangePassword)
			protected.POST("/users/:user_id/resend_confirmation", h.User.ResendConfirmation)

			// Notifications (users can manage their own notifications)
			// Static route first so "mark_all_as_read" is not matched as :notification_id
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.POST("/:notification_id/mark_as_read", h.Notification.MarkAsRead)
				notifications.GET("/:notification_id", h.Notification.Show)
				notifications.DELETE("/:notification_id", h.Notification.Delete)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Flag overdue installments and notify officers every hour
	worker.ScheduleEvery(1*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Checking overdue loans...")
		return svcs.Repayment.CheckOverdueLoans(ctx)
	})

	// Update credit scores every 6 hours
	worker.ScheduleEvery(6*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Updating credit scores...")
		if err := svcs.CreditScore.ScorePendingLoans(ctx); err != nil {
			logger.Error("Error scoring pending loans", "error", err)
		}
		return svcs.CreditScore.UpdateAllScores(ctx)
	})

	// Daily overdue reminder emails for borrowers with late installments
	worker.ScheduleEvery(24*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Sending daily overdue reminder emails...")
		return svcs.Repayment.SendDailyOverdueReminderEmails(ctx)
	})

	logger.Info("Scheduled recurring jobs")
}
