package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/clavis-auth/internal/config"
	"github.com/prperemyshlev/clavis-auth/internal/handler"
	"github.com/prperemyshlev/clavis-auth/internal/identity"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/service"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
	"github.com/prperemyshlev/clavis-auth/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
		utils.WithPreviousSecrets(cfg.JWT.PreviousSecrets...),
	)

	hasher, err := utils.NewPasswordHasher(cfg.Security.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	identities, google := newIdentityRegistry(cfg, repos, hasher)
	if cfg.Session.DevLoginEnabled {
		logger.Warn("Developer login is enabled")
	}

	var consent service.ConsentURLBuilder
	if identities.Enabled(identity.MethodGoogleCode) {
		consent = google
	}

	events := service.NewLogPublisher(logger)
	if kafka := infra.Kafka(); kafka != nil {
		events = service.NewKafkaPublisher(kafka.Client, kafka.Topic, logger)
	}

	authService, err := service.NewAuthService(service.AuthServiceDeps{
		Identities:        identities,
		Users:             repos.User,
		Tokens:            repos.Token,
		JWT:               jwtManager,
		States:            service.NewRedisStateStore(infra.Redis(), cfg.Session.OAuthStateTTL.Duration),
		Consent:           consent,
		Events:            events,
		Meter:             infra.MeterProvider().Meter(serviceName),
		Logger:            logger,
		RevokeAllOnLogout: cfg.Session.RevokeAllOnLogout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	authHandler := handler.NewAuthHandler(authService, logger)
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, authService, rateLimiter, healthChecker, infra.MetricsHandler(), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

// newIdentityRegistry registers a verifier for every configured login method
func newIdentityRegistry(cfg *config.Config, repos *repository.Repositories, hasher *utils.PasswordHasher) (*identity.Registry, *identity.GoogleVerifier) {
	registry := identity.NewRegistry()

	google := identity.NewGoogleVerifier(identity.GoogleConfig{
		ClientIDs:       cfg.Google.ClientIDs,
		ClientSecret:    cfg.Google.ClientSecret,
		RedirectURL:     cfg.Google.RedirectURL,
		Issuers:         cfg.Google.Issuers,
		CertsURL:        cfg.Google.CertsURL,
		KeysCacheTTL:    cfg.Google.KeysCacheTTL.Duration,
		ExchangeTimeout: cfg.Google.ExchangeTimeout.Duration,
	})
	registry.Register(google, identity.MethodGoogleIDToken)
	if cfg.Google.ClientSecret != "" {
		registry.Register(google, identity.MethodGoogleCode)
	}

	if cfg.Apple.Enabled() {
		registry.Register(identity.NewAppleVerifier(identity.AppleConfig{
			ClientIDs:    cfg.Apple.ClientIDs,
			Issuer:       cfg.Apple.Issuer,
			KeysURL:      cfg.Apple.KeysURL,
			KeysCacheTTL: cfg.Apple.KeysCacheTTL.Duration,
		}), identity.MethodAppleIDToken)
	}

	registry.Register(identity.NewLocalVerifier(repos.User, hasher), identity.MethodAdminPassword)

	if cfg.Session.DevLoginEnabled {
		registry.Register(identity.DevVerifier{}, identity.MethodDev)
	}

	return registry, google
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	authService service.AuthService,
	rateLimiter service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
	logger *zap.Logger,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	loginLimit := handler.RateLimitMiddleware(
		rateLimiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.LoginKey,
		logger,
	)
	authenticated := handler.AuthMiddleware(authService, logger)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/google/login", loginLimit, authHandler.GoogleLogin)
			if authService.MethodEnabled(identity.MethodGoogleCode) {
				auth.GET("/google/login-url", authHandler.GoogleLoginURL)
				auth.GET("/google/callback", loginLimit, authHandler.GoogleCallback)
				auth.POST("/google/callback", loginLimit, authHandler.GoogleCallback)
			}
			if authService.MethodEnabled(identity.MethodAppleIDToken) {
				auth.POST("/apple/login", loginLimit, authHandler.AppleLogin)
			}
			auth.POST("/admin/login", loginLimit, authHandler.AdminLogin)
			if authService.MethodEnabled(identity.MethodDev) {
				auth.POST("/dev/login", authHandler.DevLogin)
			}

			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/logout/all", authenticated, authHandler.LogoutAll)
			auth.GET("/me", authenticated, authHandler.Me)
			auth.GET("/sessions", authenticated, authHandler.Sessions)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
