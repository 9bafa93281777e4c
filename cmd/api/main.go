package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/audit"
	"github.com/ShenYT0/msn-web/internal/config"
	"github.com/ShenYT0/msn-web/internal/handler"
	"github.com/ShenYT0/msn-web/internal/middleware"
	pgRepo "github.com/ShenYT0/msn-web/internal/repository/postgres"
	redisRepo "github.com/ShenYT0/msn-web/internal/repository/redis"
	"github.com/ShenYT0/msn-web/internal/service"
	"github.com/ShenYT0/msn-web/pkg/auth"
	"github.com/ShenYT0/msn-web/pkg/database"
	"github.com/ShenYT0/msn-web/pkg/discord"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	userRepo := pgRepo.NewUserRepo(db)
	gameRepo := pgRepo.NewGameRepo(db)
	stateRepo, err := redisRepo.NewOAuthStateRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize OAuthStateRepo: %v", err)
		os.Exit(1)
	}
	codeRepo, err := redisRepo.NewVerificationCodeRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize VerificationCodeRepo: %v", err)
		os.Exit(1)
	}

	auditLog := audit.NewStdLogger()
	isProduction := gin.Mode() == gin.ReleaseMode

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, isProduction)
	if err != nil {
		log.Printf("Failed to initialize JWT service: %v", err)
		os.Exit(1)
	}

	// Discord clients. An unconfigured deployment still boots; Discord
	// operations fail with a config error when attempted.
	discordCfg := discord.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/auth/discord/callback",
		GuildID:      cfg.Discord.GuildID,
		BotToken:     cfg.Discord.BotToken,
		AvatarSize:   cfg.Discord.AvatarSize,
	}
	tokenClient := discord.NewTokenClient(discordCfg)

	// Services
	avatarService, err := service.NewAvatarService(userRepo, cfg.Avatar.UploadDir, cfg.Avatar.GravatarSize, cfg.Avatar.MaxUploadKB)
	if err != nil {
		log.Printf("Failed to initialize AvatarService: %v", err)
		os.Exit(1)
	}
	authService, err := service.NewAuthService(userRepo, auditLog)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}
	discordAuthService, err := service.NewDiscordAuthService(userRepo, stateRepo, tokenClient, service.DefaultAPIFactory,
		avatarService, cfg.Discord.AvatarSize, auditLog)
	if err != nil {
		log.Printf("Failed to initialize DiscordAuthService: %v", err)
		os.Exit(1)
	}
	syncService, err := service.NewDiscordSyncService(userRepo, tokenClient, service.DefaultAPIFactory,
		cfg.Discord.GuildID, cfg.Discord.BotToken, cfg.Discord.AvatarSize, auditLog)
	if err != nil {
		log.Printf("Failed to initialize DiscordSyncService: %v", err)
		os.Exit(1)
	}
	userService, err := service.NewUserService(userRepo, gameRepo, avatarService, syncService, auditLog)
	if err != nil {
		log.Printf("Failed to initialize UserService: %v", err)
		os.Exit(1)
	}

	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.VerificationEnabled {
		emailService, err = service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Server.SiteName)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
	}
	verificationService, err := service.NewEmailVerificationService(userRepo, codeRepo, emailService, auditLog)
	if err != nil {
		log.Printf("Failed to initialize EmailVerificationService: %v", err)
		os.Exit(1)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authService, jwtService)
	discordHandler := handler.NewDiscordHandler(discordAuthService, syncService, jwtService, isProduction)
	userHandler := handler.NewUserHandler(userService, avatarService, verificationService)
	gameHandler := handler.NewGameHandler(userService)
	maintenanceHandler := handler.NewMaintenanceHandler(syncService)

	router := gin.Default()

	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	corsOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.Server.PublicURL != "" {
		corsOrigins = append(corsOrigins, strings.TrimRight(cfg.Server.PublicURL, "/"))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// uploaded avatars are served directly
	router.Static("/"+strings.Trim(cfg.Avatar.UploadDir, "/"), cfg.Avatar.UploadDir)

	requireAuth := middleware.SessionAuth(jwtService, userRepo)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/me", requireAuth, authHandler.Me)

			authGroup.GET("/discord", discordHandler.Begin)
			authGroup.GET("/discord/callback", discordHandler.Callback)
			authGroup.POST("/discord/register", discordHandler.CompleteRegistration)
			authGroup.POST("/discord/unlink", requireAuth, discordHandler.Unlink)
		}

		api.GET("/users", userHandler.List)
		api.GET("/users/:login", userHandler.Get)

		settings := api.Group("/settings", requireAuth)
		{
			settings.GET("", userHandler.Settings)
			settings.PUT("", userHandler.UpdateSettings)
			settings.POST("/avatar", userHandler.UploadAvatar)
			settings.POST("/password", userHandler.ChangePassword)
			settings.DELETE("/password", userHandler.DeletePassword)
			settings.GET("/email", userHandler.VerificationStatus)
			settings.POST("/email/send-code", userHandler.SendVerificationCode)
			settings.POST("/email/confirm", userHandler.ConfirmEmail)
		}

		api.GET("/games", gameHandler.List)
		games := api.Group("/games", requireAuth)
		{
			games.GET("/mine", gameHandler.Mine)
			games.POST("/:slug/join", gameHandler.Join)
			games.POST("/:slug/leave", gameHandler.Leave)
		}

		maintenance := api.Group("/maintenance", middleware.MaintenanceAuth(cfg.MaintenanceToken))
		{
			maintenance.POST("/discord/refresh-tokens", maintenanceHandler.RefreshTokens)
			maintenance.POST("/discord/sync-avatars", maintenanceHandler.SyncAvatars)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}
