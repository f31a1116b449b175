package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gowa-gateway/config"
	"gowa-gateway/database"
	"gowa-gateway/internal/facade"
	"gowa-gateway/internal/handler"
	"gowa-gateway/internal/helper"
	customMiddleware "gowa-gateway/internal/middleware"
	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {

	// Load .env (abaikan error kalau file tidak ada, misal di production)
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	//database whatsmeow (credential store)
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	container := database.InitWhatsmeow(ctx, cfg.DatabaseURL)

	//database custom (recovery list)
	appDbURL := cfg.AppDatabaseURL
	if appDbURL == "" {
		log.Println("APP_DATABASE_URL not set, falling back to DATABASE_URL for recovery list")
		appDbURL = cfg.DatabaseURL
	}
	appDB := database.InitAppDB(appDbURL)

	sessionStore := model.NewSessionStore(appDB)
	if err := sessionStore.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure session schema:", err)
	}

	// Auth service (satu kredensial admin dari env)
	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET is not set")
	}
	if cfg.AdminPassword == "" {
		log.Println("ADMIN_PASSWORD is not set")
	}
	tokenTTL := helper.GetEnvAsDuration("TOKEN_TTL", 12*time.Hour)
	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPassword, tokenTTL)
	if err != nil {
		log.Fatal("Failed to init auth service:", err)
	}

	// Inisialisasi WebSocket Hub
	hub := ws.NewHub()
	go hub.Run()

	// Session tuning dari env, fallback ke default
	sessionCfg := service.DefaultSessionConfig()
	sessionCfg.RestartDelay = helper.GetEnvAsDuration("SESSION_RESTART_DELAY", sessionCfg.RestartDelay)
	sessionCfg.InsecureDelay = helper.GetEnvAsDuration("SESSION_INSECURE_DELAY", sessionCfg.InsecureDelay)
	sessionCfg.ReconnectDelay = helper.GetEnvAsDuration("SESSION_RECONNECT_DELAY", sessionCfg.ReconnectDelay)
	sessionCfg.ChatLogCap = helper.GetEnvAsInt("SESSION_CHAT_LOG_CAP", sessionCfg.ChatLogCap)
	sessionCfg.GroupCacheTTL = helper.GetEnvAsDuration("SESSION_GROUP_CACHE_TTL", sessionCfg.GroupCacheTTL)

	// Registry eksplisit, dioper by reference ke semua handler
	waFacade := facade.NewWhatsmeow(container, sessionStore)
	registry := service.NewRegistry(waFacade, sessionStore, hub, sessionCfg)

	// Recreate session set dari recovery list (tanpa auto-connect)
	log.Println("Loading saved sessions...")
	if err := registry.Restore(ctx); err != nil {
		log.Printf("Warning: Failed to restore sessions: %v", err)
	}

	// Setup Echo
	e := echo.New()
	// e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if len(cfg.CORSAllowOrigins) == 0 || cfg.CORSAllowOrigins[0] == "" {
		log.Println("CORS_ALLOW_ORIGINS is not set")
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
	}))
	e.OPTIONS("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Rate limiter configuration from env
	rateLimit := helper.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10)
	rateBurst := helper.GetEnvAsInt("RATE_LIMIT_BURST", 10)
	rateWindow := helper.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rateLimit),
				Burst:     rateBurst,
				ExpiresIn: time.Duration(rateWindow) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		switch code {
		case http.StatusUnauthorized:
			response["message"] = "Authentication required. Please login first."
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}

		c.JSON(code, response)
	}

	authHandler := handler.NewAuthHandler(authService)
	infoHandler := handler.NewInfoHandler(registry)
	sessionHandler := handler.NewSessionHandler(registry)
	messageHandler := handler.NewMessageHandler(registry)
	exportHandler := handler.NewExportHandler(registry)
	wsHandler := handler.NewWSHandler(hub)

	// =====================================================
	// PUBLIC ROUTES (No authentication required)
	// =====================================================

	e.POST("/login", authHandler.Login)
	e.GET("/ws", wsHandler.Serve) //listen socket gorilla
	e.GET("/", infoHandler.Health)

	// Daftar group route yang butuh JWT
	api := e.Group("/api", customMiddleware.JWTAuth(authService))

	// =====================================================
	// SESSION ROUTES (JWT required)
	// =====================================================
	api.GET("/sessions", sessionHandler.List)
	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions/:sessionId", sessionHandler.Get)
	api.POST("/sessions/:sessionId/connect", sessionHandler.Connect)
	api.POST("/sessions/:sessionId/disconnect", sessionHandler.Disconnect)
	api.DELETE("/sessions/:sessionId", sessionHandler.Destroy)

	// Chat log routes
	api.GET("/sessions/:sessionId/chats/export", exportHandler.Export)
	api.GET("/sessions/:sessionId/chats/:chatId/messages", messageHandler.List)
	api.POST("/sessions/:sessionId/chats/:chatId/messages", messageHandler.Send)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
