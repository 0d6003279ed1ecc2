package main

import (
	"fmt"
	"log"
	"net/http"

	"backoffice/internal/api"
	"backoffice/internal/api/handlers"
	"backoffice/internal/api/middleware"
	"backoffice/internal/engine/directory"
	"backoffice/internal/pkg/logger"
	"backoffice/internal/platform/audit"
	"backoffice/internal/platform/auth"
	"backoffice/internal/platform/config"
	"backoffice/internal/platform/database"
	"backoffice/internal/platform/repositories"
	"backoffice/internal/platform/secrets"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	codec, err := secrets.NewCodec(cfg.Secrets.Key)
	if err != nil {
		log.Fatalf("Invalid secrets key: %v", err)
	}

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	personRepo := repositories.NewPersonRepository(db)
	groupRepo := repositories.NewScimGroupRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	grantRepo := repositories.NewRoleGrantRepository(db)
	integrationRepo := repositories.NewIntegrationRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLog := audit.NewLogger(db)
	syncSvc := directory.NewService(orgRepo, userRepo, personRepo, groupRepo,
		roleRepo, grantRepo, integrationRepo, codec, cfg.Directory)

	// Handlers
	directoryHandler := handlers.NewDirectoryHandler(integrationRepo, orgRepo, syncSvc, codec, auditLog, cfg.Directory)
	personHandler := handlers.NewPersonHandler(personRepo)
	userHandler := handlers.NewUserHandler(userRepo, grantRepo)
	healthHandler := handlers.NewHealthHandler(db)
	metricsHandler := handlers.NewMetricsHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	tenantMiddleware := middleware.NewTenantMiddleware(orgRepo)

	router := api.NewRouter(&api.Dependencies{
		DirectoryHandler: directoryHandler,
		PersonHandler:    personHandler,
		UserHandler:      userHandler,
		HealthHandler:    healthHandler,
		MetricsHandler:   metricsHandler,
		AuthMiddleware:   authMiddleware,
		TenantMiddleware: tenantMiddleware,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
