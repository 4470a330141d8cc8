package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/civictrack/backend/internal/database"
	"github.com/civictrack/backend/internal/handlers"
	mW "github.com/civictrack/backend/internal/middleware"
	"github.com/civictrack/backend/internal/services"
)

// @title Civic Accountability Backend API
// @version 1.0
// @description API for citizen oversight of public infrastructure projects
// @host localhost:8080
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")
	viper.BindEnv("uploads.citizenship_dir", "UPLOADS_CITIZENSHIP_DIR")
	viper.BindEnv("app.base_url", "APP_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	tokenService := services.NewTokenService([]byte(secret), services.LoginTokenTTL)
	authService := services.NewAuthService(db, tokenService)
	verificationService := services.NewVerificationService(db)
	verificationHandler := handlers.NewVerificationHandler(verificationService)
	projectService := services.NewProjectService(db, redisClient)
	issueService := services.NewIssueService(db)
	expenditureService := services.NewExpenditureService(db)
	milestoneService := services.NewMilestoneService(db)

	authenticator := mW.NewAuthenticator(db, tokenService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/openapi.yaml"),
	))

	// Serve OpenAPI spec
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yaml")
	})

	// Static file server for project images
	r.Handle("/static/project-images/*", http.StripPrefix("/static/project-images/",
		mW.StaticFileServer("./static/project-images")))

	// User endpoints
	r.Route("/user", func(r chi.Router) {
		r.Post("/register", authService.Register)
		r.Post("/login", authService.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticate)
			r.Get("/verify", authService.Verify)

			r.Group(func(r chi.Router) {
				r.Use(authenticator.RequireAdmin)
				r.Put("/admin", authService.SetAdmin)
				r.Get("/all", authService.ListUsers)
			})
		})
	})

	// Citizenship verification endpoints
	r.Route("/verification", func(r chi.Router) {
		r.Use(authenticator.Authenticate)
		r.Post("/citizenship/{phone}", verificationHandler.Upload)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.RequireAdmin)
			r.Get("/citizenship", verificationHandler.Review)
			r.Put("/citizenship/{phone}", verificationHandler.Approve)
			r.Put("/citizenship/{phone}/reject", verificationHandler.Reject)
		})
	})

	// Project endpoints (reads are public)
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", projectService.ListProjects)
		r.Get("/{projectId}", projectService.GetProject)
		r.Get("/{projectId}/qr", projectService.ProjectQR)
		r.Get("/{projectId}/issues", issueService.ListProjectIssues)
		r.Get("/{projectId}/expenditures", expenditureService.ListProjectExpenditures)
		r.Get("/{projectId}/milestones", milestoneService.ListProjectMilestones)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticate)
			r.Post("/{projectId}/issues", issueService.CreateIssue)
			r.Post("/{projectId}/expenditures", expenditureService.CreateExpenditure)

			r.Group(func(r chi.Router) {
				r.Use(authenticator.RequireAdmin)
				r.Post("/", projectService.CreateProject)
				r.Put("/{projectId}", projectService.UpdateProject)
				r.Delete("/{projectId}", projectService.DeleteProject)
				r.Post("/{projectId}/milestones", milestoneService.CreateMilestone)
			})
		})
	})

	// Issue moderation
	r.Route("/issues", func(r chi.Router) {
		r.Use(authenticator.Authenticate)
		r.With(authenticator.RequireAdmin).Put("/{issueId}/status", issueService.UpdateIssueStatus)
	})

	// Milestone progress
	r.Route("/milestones", func(r chi.Router) {
		r.Use(authenticator.Authenticate)
		r.Put("/{milestoneId}/status", milestoneService.UpdateMilestoneStatus)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
