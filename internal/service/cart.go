package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram-app/backend/internal/logger"
	"github.com/foodgram-app/backend/internal/models"
)

// AggregatedIngredient is one line of a shopping list: an ingredient
// with its amounts summed across every recipe in the cart.
type AggregatedIngredient struct {
	IngredientID    uuid.UUID `json:"ingredient_id"`
	Name            string    `json:"name"`
	MeasurementUnit string    `json:"measurement_unit"`
	TotalAmount     float64   `json:"total_amount"`
}

// ShoppingCartService aggregates cart contents into a shopping list.
type ShoppingCartService struct {
	db *gorm.DB
}

func NewShoppingCartService(db *gorm.DB) *ShoppingCartService {
	return &ShoppingCartService{db: db}
}

// Aggregate sums ingredient amounts over every recipe in the user's
// cart as one grouped query. Grouping is by ingredient id, not name:
// two catalog entries sharing a name stay separate lines, and the
// collision is logged as a data-quality warning rather than merged.
// An empty cart yields an empty slice.
func (s *ShoppingCartService) Aggregate(ctx context.Context, userID uuid.UUID) ([]AggregatedIngredient, error) {
	cartRecipes := s.db.Model(&models.ShoppingCartItem{}).
		Select("recipe_id").Where("user_id = ?", userID)

	var rows []AggregatedIngredient
	err := s.db.WithContext(ctx).
		Model(&models.RecipeIngredient{}).
		Select("ingredients.id AS ingredient_id, ingredients.name, ingredients.measurement_unit, SUM(recipe_ingredients.amount) AS total_amount").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("recipe_ingredients.recipe_id IN (?)", cartRecipes).
		Group("ingredients.id, ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	warnOnNameCollisions(rows)
	return rows, nil
}

func warnOnNameCollisions(rows []AggregatedIngredient) {
	byName := make(map[string]int, len(rows))
	for _, row := range rows {
		byName[row.Name]++
	}
	for name, n := range byName {
		if n > 1 {
			logger.Log.Warnw("shopping list contains distinct ingredients with the same name",
				"name", name, "entries", n)
		}
	}
}
