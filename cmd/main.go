package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/franciscosanchezn/pizza-mcp/docs" // Import generated docs
	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/config"
	"github.com/franciscosanchezn/pizza-mcp/internal/controllers"
	"github.com/franciscosanchezn/pizza-mcp/internal/database"
	"github.com/franciscosanchezn/pizza-mcp/internal/metrics"
	"github.com/franciscosanchezn/pizza-mcp/internal/middleware"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/swaggo/files"
	"github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	configuration *config.Config

	catalogStore  services.CatalogStore
	catalogCache  services.CatalogCache
	orderService  services.OrderService
	clientService services.ClientService
	notifier      services.Notifier

	validator    *auth.Validator
	oauthService *auth.OAuthService

	mcpController     controllers.MCPController
	wsController      controllers.WSController
	catalogController controllers.CatalogController
	clientController  *controllers.ClientController
)

// @title Pizza MCP Server
// @version 1.0
// @description Pizza menu and ordering backend exposed as MCP tools over JSON-RPC, with SSE/WebSocket notification streams and an administrative REST surface.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Static API key for server-to-server access.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration = loadConfig()

	// Initialize database connection, schema and seed data
	setupDatabase()

	// Initialize services
	setupServices()

	// Initialize credential validation and the development token issuer
	setupAuth()

	// Initialize controllers
	setupControllers()

	// Initialize Gin router
	var router *gin.Engine = setupRouter()

	// Build the first catalog snapshot before accepting traffic
	warmCatalog()

	// Start the server
	log.Infof("Starting server on %s:%d", configuration.Host, configuration.Port)
	checkPanicErr(router.Run(fmt.Sprintf("%v:%d", configuration.Host, configuration.Port)))
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

// setupDatabase initializes the database connection, runs migrations and
// seeds the catalog when it is empty
func setupDatabase() {
	dbConfig := database.LoadDatabaseConfig()
	var err error
	db, err = database.InitDatabase(dbConfig)
	checkPanicErr(err)
	checkPanicErr(database.Migrate(db))
	checkPanicErr(database.SeedIfEmpty(db))
}

// setupServices wires the catalog store, cache, order engine and notifier
func setupServices() {
	catalogStore = services.NewCatalogStore(db)
	catalogCache = services.NewCatalogCache(catalogStore)
	orderService = services.NewOrderService(db, catalogCache, configuration.StoreTimeout)
	notifier = services.NewNotifier(catalogCache, configuration.NotifyTimeout)
	clientService = services.NewClientService(db)
}

// setupAuth creates the credential validator and, when enabled, the
// development token issuer
func setupAuth() {
	validator = auth.NewValidator(configuration)
	if configuration.IssuerEnabled {
		var err error
		oauthService, err = auth.NewOAuthService(db, configuration)
		checkPanicErr(err)
	}
}

// setupControllers creates the HTTP-facing controllers
func setupControllers() {
	mcpController = controllers.NewMCPController(catalogCache, orderService, notifier, validator.ConfiguredSchemes())
	wsController = controllers.NewWSController(notifier)
	catalogController = controllers.NewCatalogController(catalogStore)
	clientController = controllers.NewClientController(clientService)
}

// warmCatalog builds the initial catalog snapshot so the first tool call is
// served from memory. A failure is not fatal: the next read rebuilds.
func warmCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), configuration.StoreTimeout)
	defer cancel()

	summary, err := catalogCache.Warm(ctx)
	if err != nil {
		log.WithError(err).Warn("Catalog warm-up failed, first read will rebuild")
		return
	}
	log.WithFields(log.Fields{
		"pizzas":     summary.PizzasCount,
		"toppings":   summary.ToppingsCount,
		"categories": summary.CategoriesCount,
		"offers":     summary.ActiveOffersCount,
		"locations":  summary.LocationsCount,
	}).Info("Catalog cache warmed")
}

// setupRouter initializes the Gin router and sets up the routes
// It returns the configured router
func setupRouter() *gin.Engine {
	if configuration.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(metrics.Middleware())

	setupRoutes(router)

	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine) {
	// Health check and metrics endpoints
	router.GET("/health", healthCheckHandler)
	router.GET("/metrics", metrics.Handler())

	// Development token issuer endpoints
	if oauthService != nil {
		router.POST("/oauth/token", oauthService.HandleToken)
		router.GET("/.well-known/jwks.json", oauthService.HandleJWKS)
	}

	// Tool protocol and notification streams. Credential validation runs on
	// every request; per-tool level checks happen at dispatch so public
	// tools stay reachable for anonymous callers.
	authed := router.Group("/")
	authed.Use(middleware.Authenticate(validator))
	{
		authed.POST("/mcp", mcpController.HandleRPC)
		authed.GET("/mcp", middleware.RequireLevel(auth.LevelAuthenticated), mcpController.HandleSSE)
		authed.GET("/ws", middleware.RequireLevel(auth.LevelAuthenticated), wsController.HandleWS)

		// Administrative REST surface
		adminApi := authed.Group("/api/v1/admin")
		adminApi.Use(middleware.RequireLevel(auth.LevelAdministrative))
		{
			adminApi.POST("/pizzas", catalogController.CreatePizza)
			adminApi.PUT("/pizzas/:id", catalogController.UpdatePizza)
			adminApi.DELETE("/pizzas/:id", catalogController.DeletePizza)

			adminApi.POST("/toppings", catalogController.CreateTopping)
			adminApi.PUT("/toppings/:id", catalogController.UpdateTopping)
			adminApi.DELETE("/toppings/:id", catalogController.DeleteTopping)

			adminApi.POST("/categories", catalogController.CreateCategory)
			adminApi.PUT("/categories/:id", catalogController.UpdateCategory)
			adminApi.DELETE("/categories/:id", catalogController.DeleteCategory)

			adminApi.POST("/locations", catalogController.CreateLocation)
			adminApi.PUT("/locations/:id", catalogController.UpdateLocation)
			adminApi.DELETE("/locations/:id", catalogController.DeleteLocation)

			adminApi.POST("/offers", catalogController.CreateOffer)
			adminApi.PUT("/offers/:id", catalogController.UpdateOffer)
			adminApi.DELETE("/offers/:id", catalogController.DeleteOffer)

			adminApi.POST("/clients", clientController.CreateClient)
			adminApi.GET("/clients", clientController.ListClients)
			adminApi.GET("/clients/:id", clientController.GetClient)
			adminApi.DELETE("/clients/:id", clientController.DeleteClient)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "pizza-mcp",
	})
}
