package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"edutest-system/internal/admin"
	"edutest-system/internal/auth"
	"edutest-system/internal/catalog"
	"edutest-system/internal/models"
	"edutest-system/internal/session"
	"edutest-system/pkg/cache"
	"edutest-system/pkg/database"
	"edutest-system/pkg/websocket"

	"github.com/gorilla/mux"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Initialize database
	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Board{},
		&models.Standard{},
		&models.Subject{},
		&models.Chapter{},
		&models.Test{},
		&models.Question{},
		&models.Option{},
		&models.TestResult{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Initialize repositories
	authRepo := auth.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	sessionRepo := session.NewRepository(db)
	adminRepo := admin.NewRepository(db)

	// Initialize services
	jwtSecret := os.Getenv("JWT_SECRET")
	authService := auth.NewService(authRepo, jwtSecret)
	catalogService := catalog.NewService(catalogRepo, redisCache)
	sessionService := session.NewService(catalogService, sessionRepo, redisCache, wsHub)
	adminService := admin.NewService(adminRepo)

	// Initialize handlers
	authHandler := auth.NewHandler(authService)
	catalogHandler := catalog.NewHandler(catalogService)
	sessionHandler := session.NewHandler(sessionService, sessionRepo, redisCache)
	adminHandler := admin.NewHandler(adminService)

	// Setup router
	router := mux.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	// Auth routes - no JWT required
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Authenticated API
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(jwtSecret))

	// Catalog browse
	apiRouter.HandleFunc("/boards", catalogHandler.GetBoards).Methods("GET")
	apiRouter.HandleFunc("/boards/{boardID}/standards", catalogHandler.GetStandards).Methods("GET")
	apiRouter.HandleFunc("/standards/{standardID}/subjects", catalogHandler.GetSubjects).Methods("GET")
	apiRouter.HandleFunc("/subjects/{subjectID}/chapters", catalogHandler.GetChapters).Methods("GET")
	apiRouter.HandleFunc("/chapters/{chapterID}/tests", catalogHandler.GetTests).Methods("GET")
	apiRouter.HandleFunc("/tests/{testID}/questions", catalogHandler.GetTestQuestions).Methods("GET")
	apiRouter.HandleFunc("/tests/{testID}/questions", catalogHandler.CreateQuestion).Methods("POST", "OPTIONS")

	// Test sessions
	apiRouter.HandleFunc("/sessions", sessionHandler.Start).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/sessions/{sessionID}", sessionHandler.Get).Methods("GET")
	apiRouter.HandleFunc("/sessions/{sessionID}", sessionHandler.Abandon).Methods("DELETE")
	apiRouter.HandleFunc("/sessions/{sessionID}/answer", sessionHandler.SetAnswer).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/sessions/{sessionID}/advance", sessionHandler.Advance).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/sessions/{sessionID}/retreat", sessionHandler.Retreat).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/sessions/{sessionID}/finish", sessionHandler.Finish).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/sessions/{sessionID}/lifecycle", sessionHandler.Lifecycle).Methods("POST", "OPTIONS")

	// Results
	apiRouter.HandleFunc("/results/recent", sessionHandler.GetRecentResults).Methods("GET")
	apiRouter.HandleFunc("/results/{sessionID}", sessionHandler.GetResult).Methods("GET")

	// Staff management
	apiRouter.HandleFunc("/admin/staff", adminHandler.CreateStaff).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/admin/staff/{userID}/role", adminHandler.UpdateStaffRole).Methods("PUT", "OPTIONS")
	apiRouter.HandleFunc("/admin/staff/{userID}/toggle", adminHandler.ToggleStaffActive).Methods("POST", "OPTIONS")

	// WebSocket endpoint for countdown ticks and completion events
	router.HandleFunc("/ws/sessions/{sessionID}", wsHub.HandleWebSocket)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown gracefully")
}
