package router

import (
	"github.com/gin-gonic/gin"

	"github.com/foodgram-app/backend/internal/api"
	"github.com/foodgram-app/backend/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth       *api.AuthHandler
	User       *api.UserHandler
	Tag        *api.TagHandler
	Ingredient *api.IngredientHandler
	Recipe     *api.RecipeHandler
}

// SetupRouter configures the application routes under /api/v1.
func SetupRouter(h Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	h.Auth.RegisterRoutes(v1)
	h.User.RegisterRoutes(v1)
	h.Tag.RegisterRoutes(v1)
	h.Ingredient.RegisterRoutes(v1)
	h.Recipe.RegisterRoutes(v1)

	return router
}
