package main

import (
	"os"

	_ "constructlink/api/swagger" // swagger docs
	"constructlink/internal/database"
	"constructlink/internal/handler"
	"constructlink/internal/middleware"
	"constructlink/internal/repository"
	"constructlink/internal/service"
	"constructlink/internal/websocket"
	"constructlink/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           ConstructLink Asset Management API
// @version         1.0
// @description     Maker-Verifier-Authorizer withdrawal workflow for construction assets and consumables.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Info("No configs/.env file found or error loading it")
	}

	if os.Getenv("GIN_MODE") == "release" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "constructlink")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	log.Info("Connected to PostgreSQL successfully")

	if err := database.Seed(db); err != nil {
		log.WithError(err).Fatal("Database seeding failed")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	consumableRepo := repository.NewConsumableRepository(db)
	stockTxRepo := repository.NewStockTxRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	// Permission policy backed by the roles tables
	policy := workflow.NewDBPolicy(db)

	// Services
	ledgerService := service.NewLedgerService(consumableRepo, stockTxRepo)
	userService := service.NewUserService(userRepo, roleRepo)
	roleService := service.NewRoleService(roleRepo, policy, txManager)
	projectService := service.NewProjectService(projectRepo)
	assetService := service.NewAssetService(assetRepo, auditRepo, txManager)
	consumableService := service.NewConsumableService(consumableRepo, stockTxRepo, auditRepo, ledgerService, txManager)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, assetRepo, auditRepo, policy, txManager, wsHub)
	batchService := service.NewBatchService(batchRepo, consumableRepo, auditRepo, ledgerService, policy, txManager, wsHub)
	auditService := service.NewAuditService(auditRepo)
	reportService := service.NewReportService(withdrawalRepo, batchRepo, consumableRepo)

	// Handlers
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleService)
	projectHandler := handler.NewProjectHandler(projectService)
	assetHandler := handler.NewAssetHandler(assetService)
	consumableHandler := handler.NewConsumableHandler(consumableService)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalService)
	batchHandler := handler.NewBatchHandler(batchService)
	auditHandler := handler.NewAuditHandler(auditService)
	reportHandler := handler.NewReportHandler(reportService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsConfig.AllowOrigins = []string{origins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-CSRF-Token"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	userHandler.RegisterRoutes(api)
	roleHandler.RegisterRoutes(api)
	projectHandler.RegisterRoutes(api)
	assetHandler.RegisterRoutes(api)
	consumableHandler.RegisterRoutes(api)
	withdrawalHandler.RegisterRoutes(api)
	batchHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	reportHandler.RegisterRoutes(api)

	port := envOr("PORT", "8080")
	log.WithField("port", port).Info("Server listening")
	if err := router.Run(":" + port); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
