package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram-app/backend/internal/models"
)

// IngredientInput is one (ingredient, amount) pair of a recipe.
type IngredientInput struct {
	IngredientID uuid.UUID
	Amount       float64
}

// RecipeInput carries everything needed to compose a recipe. TagIDs and
// Ingredients fully describe the association sets; on update they
// replace whatever was there before.
type RecipeInput struct {
	Name        string
	Text        string
	CookingTime int
	ImageURL    string
	TagIDs      []uuid.UUID
	Ingredients []IngredientInput
}

// RecipeFilter narrows recipe listings. IsFavorited/IsInCart carry
// three states: nil (no filtering), true (only matching), false
// (exclude matching). The false branch excludes rather than ignores.
// Both are ignored for anonymous callers.
type RecipeFilter struct {
	AuthorID    *uuid.UUID
	TagSlugs    []string
	IsFavorited *bool
	IsInCart    *bool
	Page        int
	Limit       int
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// RecipeService composes recipes and their association sets.
type RecipeService struct {
	db *gorm.DB
}

func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// Create validates the input, stores the recipe and its tag and
// ingredient links in one transaction, and returns it fully loaded.
// The author always comes from the authenticated caller.
func (s *RecipeService) Create(ctx context.Context, authorID uuid.UUID, in RecipeInput) (*models.Recipe, error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        in.Name,
		Text:        in.Text,
		ImageURL:    in.ImageURL,
		CookingTime: in.CookingTime,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&recipe).Error; err != nil {
			return err
		}
		return s.insertAssociations(tx, recipe.ID, in)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, recipe.ID)
}

// ValidateInput checks a composition payload without persisting
// anything. Handlers run it before side effects like image uploads so
// a rejected request leaves no stored blob behind.
func (s *RecipeService) ValidateInput(ctx context.Context, in RecipeInput) error {
	return s.validate(ctx, in)
}

// AuthorizeEdit loads the recipe and confirms the actor owns it.
func (s *RecipeService) AuthorizeEdit(ctx context.Context, recipeID, actorID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if recipe.AuthorID != actorID {
		return nil, ErrNotOwner
	}
	return &recipe, nil
}

// Update replaces the recipe's fields and both association sets. The
// old sets are deleted and the new ones inserted inside one
// transaction, so readers never observe a partial replacement.
func (s *RecipeService) Update(ctx context.Context, recipeID, actorID uuid.UUID, in RecipeInput) (*models.Recipe, error) {
	recipePtr, err := s.AuthorizeEdit(ctx, recipeID, actorID)
	if err != nil {
		return nil, err
	}
	recipe := *recipePtr

	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":         in.Name,
			"text":         in.Text,
			"cooking_time": in.CookingTime,
		}
		if in.ImageURL != "" {
			updates["image_url"] = in.ImageURL
		}
		if err := tx.Model(&recipe).Updates(updates).Error; err != nil {
			return err
		}

		// Replace-all semantics: the new sets fully supersede the old.
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeTag{}).Error; err != nil {
			return err
		}
		return s.insertAssociations(tx, recipe.ID, in)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, recipe.ID)
}

// Delete removes a recipe and, through the cascade, its joins.
func (s *RecipeService) Delete(ctx context.Context, recipeID, actorID uuid.UUID) error {
	recipe, err := s.AuthorizeEdit(ctx, recipeID, actorID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, join := range []interface{}{
			&models.RecipeIngredient{}, &models.RecipeTag{},
			&models.Favorite{}, &models.ShoppingCartItem{},
		} {
			if err := tx.Where("recipe_id = ?", recipe.ID).Delete(join).Error; err != nil {
				return err
			}
		}
		return tx.Delete(recipe).Error
	})
}

// Get loads a recipe with its author, tags and ingredient amounts.
func (s *RecipeService) Get(ctx context.Context, recipeID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags.Tag").
		Preload("Ingredients.Ingredient").
		First(&recipe, "id = ?", recipeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

// List returns a page of recipes, newest first, plus the total count
// before pagination. actingUser may be nil for anonymous callers.
func (s *RecipeService) List(ctx context.Context, filter RecipeFilter, actingUser *uuid.UUID) ([]models.Recipe, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Recipe{})

	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", *filter.AuthorID)
	}

	if slugs := dedupeStrings(filter.TagSlugs); len(slugs) > 0 {
		// OR semantics: any of the given tags matches.
		query = query.Where("recipes.id IN (?)",
			s.db.Model(&models.RecipeTag{}).
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", slugs))
	}

	if actingUser != nil {
		if filter.IsFavorited != nil {
			sub := s.db.Model(&models.Favorite{}).
				Select("recipe_id").Where("user_id = ?", *actingUser)
			if *filter.IsFavorited {
				query = query.Where("recipes.id IN (?)", sub)
			} else {
				query = query.Where("recipes.id NOT IN (?)", sub)
			}
		}
		if filter.IsInCart != nil {
			sub := s.db.Model(&models.ShoppingCartItem{}).
				Select("recipe_id").Where("user_id = ?", *actingUser)
			if *filter.IsInCart {
				query = query.Where("recipes.id IN (?)", sub)
			} else {
				query = query.Where("recipes.id NOT IN (?)", sub)
			}
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	var recipes []models.Recipe
	err := query.
		Preload("Author").
		Preload("Tags.Tag").
		Preload("Ingredients.Ingredient").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, err
	}

	return recipes, total, nil
}

// MembershipFlags reports, for each given recipe, whether the user has
// favorited it and whether it sits in their cart. Two bulk queries,
// never per-recipe lookups. A nil user gets all-false maps.
func (s *RecipeService) MembershipFlags(ctx context.Context, userID *uuid.UUID, recipeIDs []uuid.UUID) (favorited, inCart map[uuid.UUID]bool, err error) {
	favorited = make(map[uuid.UUID]bool, len(recipeIDs))
	inCart = make(map[uuid.UUID]bool, len(recipeIDs))
	if userID == nil || len(recipeIDs) == 0 {
		return favorited, inCart, nil
	}

	var favIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND recipe_id IN ?", *userID, recipeIDs).
		Pluck("recipe_id", &favIDs).Error; err != nil {
		return nil, nil, err
	}
	for _, id := range favIDs {
		favorited[id] = true
	}

	var cartIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.ShoppingCartItem{}).
		Where("user_id = ? AND recipe_id IN ?", *userID, recipeIDs).
		Pluck("recipe_id", &cartIDs).Error; err != nil {
		return nil, nil, err
	}
	for _, id := range cartIDs {
		inCart[id] = true
	}

	return favorited, inCart, nil
}

// AddFavorite marks a recipe as favorited. A duplicate add surfaces as
// ErrAlreadyExists, including under concurrent inserts, because the
// unique pair constraint decides.
func (s *RecipeService) AddFavorite(ctx context.Context, userID, recipeID uuid.UUID) (*models.Recipe, error) {
	return s.addJoin(ctx, recipeID, &models.Favorite{UserID: userID, RecipeID: recipeID})
}

// RemoveFavorite deletes the favorite row; ErrNotFound if it was not there.
func (s *RecipeService) RemoveFavorite(ctx context.Context, userID, recipeID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToCart queues a recipe for shopping-list aggregation.
func (s *RecipeService) AddToCart(ctx context.Context, userID, recipeID uuid.UUID) (*models.Recipe, error) {
	return s.addJoin(ctx, recipeID, &models.ShoppingCartItem{UserID: userID, RecipeID: recipeID})
}

// RemoveFromCart deletes the cart row; ErrNotFound if it was not there.
func (s *RecipeService) RemoveFromCart(ctx context.Context, userID, recipeID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&models.ShoppingCartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RecipeService) addJoin(ctx context.Context, recipeID uuid.UUID, row interface{}) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return &recipe, nil
}

// validate enforces the composition constraints: non-empty duplicate-
// free tag and ingredient sets, positive amounts and cooking time, and
// existence of every referenced id.
func (s *RecipeService) validate(ctx context.Context, in RecipeInput) error {
	if in.Name == "" {
		return newValidationError("name", "name is required")
	}
	if in.Text == "" {
		return newValidationError("text", "text is required")
	}
	if in.CookingTime <= 0 {
		return newValidationError("cooking_time", "cooking time must be a positive number of minutes")
	}

	if len(in.TagIDs) == 0 {
		return newValidationError("tags", "at least one tag is required")
	}
	seenTags := make(map[uuid.UUID]struct{}, len(in.TagIDs))
	for _, id := range in.TagIDs {
		if _, dup := seenTags[id]; dup {
			return newValidationError("tags", "tags must be unique")
		}
		seenTags[id] = struct{}{}
	}

	if len(in.Ingredients) == 0 {
		return newValidationError("ingredients", "at least one ingredient is required")
	}
	seenIngredients := make(map[uuid.UUID]struct{}, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		if _, dup := seenIngredients[ing.IngredientID]; dup {
			return newValidationError("ingredients", "ingredients must be unique")
		}
		seenIngredients[ing.IngredientID] = struct{}{}
		if ing.Amount <= 0 {
			return newValidationError("ingredients", "ingredient amounts must be positive")
		}
	}

	var tagCount int64
	if err := s.db.WithContext(ctx).Model(&models.Tag{}).Where("id IN ?", in.TagIDs).Count(&tagCount).Error; err != nil {
		return err
	}
	if int(tagCount) != len(in.TagIDs) {
		return fmt.Errorf("%w: one or more tags do not exist", ErrNotFound)
	}

	ingredientIDs := make([]uuid.UUID, 0, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		ingredientIDs = append(ingredientIDs, ing.IngredientID)
	}
	var ingredientCount int64
	if err := s.db.WithContext(ctx).Model(&models.Ingredient{}).Where("id IN ?", ingredientIDs).Count(&ingredientCount).Error; err != nil {
		return err
	}
	if int(ingredientCount) != len(ingredientIDs) {
		return fmt.Errorf("%w: one or more ingredients do not exist", ErrNotFound)
	}

	return nil
}

func (s *RecipeService) insertAssociations(tx *gorm.DB, recipeID uuid.UUID, in RecipeInput) error {
	ingredientRows := make([]models.RecipeIngredient, 0, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		ingredientRows = append(ingredientRows, models.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: ing.IngredientID,
			Amount:       ing.Amount,
		})
	}
	if err := tx.Create(&ingredientRows).Error; err != nil {
		return err
	}

	tagRows := make([]models.RecipeTag, 0, len(in.TagIDs))
	for _, tagID := range in.TagIDs {
		tagRows = append(tagRows, models.RecipeTag{RecipeID: recipeID, TagID: tagID})
	}
	return tx.Create(&tagRows).Error
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
