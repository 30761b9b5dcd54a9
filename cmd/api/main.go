package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodgram-app/backend/config"
	"github.com/foodgram-app/backend/internal/api"
	"github.com/foodgram-app/backend/internal/database"
	"github.com/foodgram-app/backend/internal/logger"
	"github.com/foodgram-app/backend/internal/middleware"
	"github.com/foodgram-app/backend/internal/router"
	"github.com/foodgram-app/backend/internal/server"
	"github.com/foodgram-app/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.New(cfg)
	if err != nil {
		logger.Log.Fatalw("failed to connect to database", "error", err)
	}

	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		logger.Log.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	s3Cfg, err := config.NewS3Config(context.Background(), cfg)
	if err != nil {
		logger.Log.Fatalw("failed to configure S3", "error", err)
	}

	authService := service.NewAuthService(db, redisClient, cfg.JWTSecret)
	recipeService := service.NewRecipeService(db)
	cartService := service.NewShoppingCartService(db)
	subscriptionService := service.NewSubscriptionService(db)
	imageService := service.NewImageService(service.NewS3ImageStore(s3Cfg))

	rateLimiter := middleware.NewRecipeWriteRateLimiter(redisClient)

	engine := router.SetupRouter(router.Handlers{
		Auth:       api.NewAuthHandler(authService),
		User:       api.NewUserHandler(db, subscriptionService, authService),
		Tag:        api.NewTagHandler(db),
		Ingredient: api.NewIngredientHandler(db),
		Recipe: api.NewRecipeHandler(
			recipeService,
			cartService,
			imageService,
			subscriptionService,
			authService,
			rateLimiter,
		),
	})

	srv := server.New(cfg.ServerHost+":"+cfg.ServerPort, engine)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Log.Fatalw("server error", "error", err)
		}
	case sig := <-quit:
		logger.Log.Infow("received signal", "signal", sig.String())
	}

	logger.Log.Info("shutting down server")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Log.Fatalw("server shutdown error", "error", err)
	}
	logger.Log.Info("server stopped")
}
