package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram-app/backend/internal/middleware"
	"github.com/foodgram-app/backend/internal/models"
	"github.com/foodgram-app/backend/internal/service"
)

// UserHandler exposes user listing and subscription routes.
type UserHandler struct {
	db            *gorm.DB
	subscriptions *service.SubscriptionService
	authService   *service.AuthService
}

func NewUserHandler(db *gorm.DB, subscriptions *service.SubscriptionService, authService *service.AuthService) *UserHandler {
	return &UserHandler{
		db:            db,
		subscriptions: subscriptions,
		authService:   authService,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")

	authRequired := middleware.AuthMiddleware(h.authService)
	authOptional := middleware.OptionalAuthMiddleware(h.authService)

	users.GET("", authOptional, h.ListUsers)
	users.GET("/me", authRequired, h.Me)
	users.GET("/subscriptions", authRequired, h.ListSubscriptions)
	users.GET("/:id", authOptional, h.GetUser)
	users.POST("/:id/subscribe", authRequired, h.Subscribe)
	users.DELETE("/:id/subscribe", authRequired, h.Unsubscribe)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	page, limit, err := parsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var total int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Count(&total).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	var users []models.User
	err = h.db.WithContext(c.Request.Context()).
		Order("username").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var actingUser *uuid.UUID
	if userID, ok := middleware.CurrentUserID(c); ok {
		actingUser = &userID
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	subscribed, err := h.subscriptions.SubscribedSet(c.Request.Context(), actingUser, ids)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	results := make([]UserResponse, 0, len(users))
	for i := range users {
		results = append(results, toUserResponse(&users[i], subscribed[users[i].ID]))
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var actingUser *uuid.UUID
	if id, ok := middleware.CurrentUserID(c); ok {
		actingUser = &id
	}
	isSubscribed, err := h.subscriptions.IsSubscribed(c.Request.Context(), actingUser, user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(&user, isSubscribed))
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(&user, false))
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	authorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.subscriptions.Subscribe(c.Request.Context(), userID, authorID); err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "you are already subscribed to this user"})
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"detail": "successfully subscribed"})
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	authorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.subscriptions.Unsubscribe(c.Request.Context(), userID, authorID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "you are not subscribed to this user"})
			return
		}
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubscriptionResponse is a followed author with a recipe preview.
type SubscriptionResponse struct {
	UserResponse
	Recipes      []ShortRecipeResponse `json:"recipes"`
	RecipesCount int64                 `json:"recipes_count"`
}

func (h *UserHandler) ListSubscriptions(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	recipesLimit := 0
	if raw := c.Query("recipes_limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipes_limit"})
			return
		}
		recipesLimit = n
	}

	authors, err := h.subscriptions.ListSubscriptions(c.Request.Context(), userID, recipesLimit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	results := make([]SubscriptionResponse, 0, len(authors))
	for i := range authors {
		a := &authors[i]
		entry := SubscriptionResponse{
			UserResponse: toUserResponse(&a.User, true),
			Recipes:      make([]ShortRecipeResponse, 0, len(a.Recipes)),
			RecipesCount: a.RecipesCount,
		}
		for j := range a.Recipes {
			entry.Recipes = append(entry.Recipes, toShortRecipeResponse(&a.Recipes[j]))
		}
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

var (
	errInvalidPage  = errors.New("invalid page")
	errInvalidLimit = errors.New("invalid limit")
)

func parsePagination(c *gin.Context) (page, limit int, err error) {
	page, limit = 1, 10
	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errInvalidPage
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			return 0, 0, errInvalidLimit
		}
	}
	return page, limit, nil
}
