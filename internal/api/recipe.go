package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foodgram-app/backend/internal/middleware"
	"github.com/foodgram-app/backend/internal/models"
	"github.com/foodgram-app/backend/internal/service"
)

// RecipeHandler exposes recipe CRUD, favorite and shopping-cart routes.
type RecipeHandler struct {
	recipes       *service.RecipeService
	cart          *service.ShoppingCartService
	images        *service.ImageService
	subscriptions *service.SubscriptionService
	authService   *service.AuthService
	rateLimiter   *middleware.RateLimiter
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	cart *service.ShoppingCartService,
	images *service.ImageService,
	subscriptions *service.SubscriptionService,
	authService *service.AuthService,
	rateLimiter *middleware.RateLimiter,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:       recipes,
		cart:          cart,
		images:        images,
		subscriptions: subscriptions,
		authService:   authService,
		rateLimiter:   rateLimiter,
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")

	authRequired := middleware.AuthMiddleware(h.authService)
	authOptional := middleware.OptionalAuthMiddleware(h.authService)

	recipes.GET("", authOptional, h.ListRecipes)
	recipes.GET("/download_shopping_cart", authRequired, h.DownloadShoppingCart)
	recipes.GET("/:id", authOptional, h.GetRecipe)

	write := recipes.Group("", authRequired)
	if h.rateLimiter != nil {
		write.Use(h.rateLimiter.RateLimitMiddleware())
	}
	write.POST("", h.CreateRecipe)
	write.PATCH("/:id", h.UpdateRecipe)

	recipes.DELETE("/:id", authRequired, h.DeleteRecipe)
	recipes.POST("/:id/favorite", authRequired, h.FavoriteRecipe)
	recipes.DELETE("/:id/favorite", authRequired, h.UnfavoriteRecipe)
	recipes.POST("/:id/shopping_cart", authRequired, h.AddToCart)
	recipes.DELETE("/:id/shopping_cart", authRequired, h.RemoveFromCart)
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	filter, err := parseRecipeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var actingUser *uuid.UUID
	if userID, ok := middleware.CurrentUserID(c); ok {
		actingUser = &userID
	}

	recipes, total, err := h.recipes.List(c.Request.Context(), filter, actingUser)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	recipeIDs := make([]uuid.UUID, 0, len(recipes))
	authorIDs := make([]uuid.UUID, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	favorited, inCart, err := h.recipes.MembershipFlags(c.Request.Context(), actingUser, recipeIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	subscribed, err := h.subscriptions.SubscribedSet(c.Request.Context(), actingUser, authorIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	results := make([]RecipeResponse, 0, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		resp := toRecipeResponse(r, favorited[r.ID], inCart[r.ID])
		resp.Author.IsSubscribed = subscribed[r.AuthorID]
		results = append(results, resp)
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	recipe, err := h.recipes.Get(c.Request.Context(), recipeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var actingUser *uuid.UUID
	if userID, ok := middleware.CurrentUserID(c); ok {
		actingUser = &userID
	}

	favorited, inCart, err := h.recipes.MembershipFlags(c.Request.Context(), actingUser, []uuid.UUID{recipe.ID})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	subscribed, err := h.subscriptions.SubscribedSet(c.Request.Context(), actingUser, []uuid.UUID{recipe.AuthorID})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := toRecipeResponse(recipe, favorited[recipe.ID], inCart[recipe.ID])
	resp.Author.IsSubscribed = subscribed[recipe.AuthorID]
	c.JSON(http.StatusOK, resp)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	payload, err := bindRecipePayload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if len(payload.upload) == 0 && payload.req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image: an image is required"})
		return
	}

	input := buildBaseInput(payload.req)

	// Validate before touching storage so a rejected request leaves no
	// orphaned blob behind.
	if err := h.recipes.ValidateInput(c.Request.Context(), input); err != nil {
		respondServiceError(c, err)
		return
	}

	switch {
	case len(payload.upload) > 0:
		input.ImageURL, err = h.images.StoreUpload(c.Request.Context(), payload.upload)
	case service.IsDataURI(payload.req.Image):
		input.ImageURL, err = h.images.StoreDataURI(c.Request.Context(), payload.req.Image)
	default:
		// New recipes never reference pre-existing URLs.
		err = &service.ValidationError{Field: "image", Message: "expected an uploaded file or a base64 data URI"}
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	recipe, err := h.recipes.Create(c.Request.Context(), userID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recipe": toRecipeResponse(recipe, false, false)})
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	payload, err := bindRecipePayload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	// Ownership and validation come first so a forbidden or malformed
	// request never stores an image.
	current, err := h.recipes.AuthorizeEdit(c.Request.Context(), recipeID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	input := buildBaseInput(payload.req)
	if err := h.recipes.ValidateInput(c.Request.Context(), input); err != nil {
		respondServiceError(c, err)
		return
	}

	switch {
	case len(payload.upload) > 0:
		input.ImageURL, err = h.images.StoreUpload(c.Request.Context(), payload.upload)
	case payload.req.Image == "" || payload.req.Image == current.ImageURL:
		// No new image, keep the stored one.
	case service.IsDataURI(payload.req.Image):
		input.ImageURL, err = h.images.StoreDataURI(c.Request.Context(), payload.req.Image)
	default:
		err = &service.ValidationError{Field: "image", Message: "expected an uploaded file, a base64 data URI, or the recipe's current image URL"}
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	recipe, err := h.recipes.Update(c.Request.Context(), recipeID, userID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	favorited, inCart, err := h.recipes.MembershipFlags(c.Request.Context(), &userID, []uuid.UUID{recipe.ID})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": toRecipeResponse(recipe, favorited[recipe.ID], inCart[recipe.ID])})
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.recipes.Delete(c.Request.Context(), recipeID, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) FavoriteRecipe(c *gin.Context) {
	h.addMembership(c, "favorites", h.recipes.AddFavorite)
}

func (h *RecipeHandler) UnfavoriteRecipe(c *gin.Context) {
	h.removeMembership(c, "favorites", h.recipes.RemoveFavorite)
}

func (h *RecipeHandler) AddToCart(c *gin.Context) {
	h.addMembership(c, "shopping cart", h.recipes.AddToCart)
}

func (h *RecipeHandler) RemoveFromCart(c *gin.Context) {
	h.removeMembership(c, "shopping cart", h.recipes.RemoveFromCart)
}

func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	format := c.DefaultQuery("format", "txt")
	generator, err := service.NewFileGenerator(format)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ingredients, err := h.cart.Aggregate(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	file, err := generator.Generate(ingredients)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// addMembership handles the shared shape of favorite and cart adds:
// 201 with the short recipe, 400 when the pair already exists.
func (h *RecipeHandler) addMembership(c *gin.Context, what string, add func(ctx context.Context, userID, recipeID uuid.UUID) (*models.Recipe, error)) {
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	recipe, err := add(c.Request.Context(), userID, recipeID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("recipe is already in %s", what)})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toShortRecipeResponse(recipe))
}

// removeMembership mirrors the original's delete semantics: removing a
// pair that is not there is a 400, not a 404.
func (h *RecipeHandler) removeMembership(c *gin.Context, what string, remove func(ctx context.Context, userID, recipeID uuid.UUID) error) {
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := remove(c.Request.Context(), userID, recipeID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("recipe is not in %s", what)})
			return
		}
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// recipePayload is a bound create/update request plus the raw bytes of
// an uploaded image file, when the client sent multipart form data.
type recipePayload struct {
	req    RecipeRequest
	upload []byte
}

// bindRecipePayload accepts either a JSON body or a multipart form with
// a "data" JSON field and an optional "image" file part.
func bindRecipePayload(c *gin.Context) (recipePayload, error) {
	var payload recipePayload

	if c.ContentType() != "multipart/form-data" {
		if err := c.ShouldBindJSON(&payload.req); err != nil {
			return payload, err
		}
		return payload, nil
	}

	data := c.PostForm("data")
	if data == "" {
		return payload, errors.New("multipart request is missing the data field")
	}
	if err := json.Unmarshal([]byte(data), &payload.req); err != nil {
		return payload, err
	}

	header, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return payload, nil
		}
		return payload, err
	}
	file, err := header.Open()
	if err != nil {
		return payload, err
	}
	defer file.Close()
	payload.upload, err = io.ReadAll(file)
	if err != nil {
		return payload, err
	}
	return payload, nil
}

func buildBaseInput(req RecipeRequest) service.RecipeInput {
	input := service.RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		TagIDs:      req.Tags,
	}
	for _, ing := range req.Ingredients {
		input.Ingredients = append(input.Ingredients, service.IngredientInput{
			IngredientID: ing.ID,
			Amount:       ing.Amount,
		})
	}
	return input
}

func parseRecipeFilter(c *gin.Context) (service.RecipeFilter, error) {
	var filter service.RecipeFilter

	if author := c.Query("author"); author != "" {
		id, err := uuid.Parse(author)
		if err != nil {
			return filter, errors.New("invalid author id")
		}
		filter.AuthorID = &id
	}

	filter.TagSlugs = c.QueryArray("tags")

	var err error
	if filter.IsFavorited, err = parseBoolParam(c, "is_favorited"); err != nil {
		return filter, err
	}
	if filter.IsInCart, err = parseBoolParam(c, "is_in_shopping_cart"); err != nil {
		return filter, err
	}

	if page := c.Query("page"); page != "" {
		filter.Page, err = strconv.Atoi(page)
		if err != nil || filter.Page < 1 {
			return filter, errors.New("invalid page")
		}
	}
	if limit := c.Query("limit"); limit != "" {
		filter.Limit, err = strconv.Atoi(limit)
		if err != nil || filter.Limit < 1 {
			return filter, errors.New("invalid limit")
		}
	}

	return filter, nil
}

func parseBoolParam(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &v, nil
}
