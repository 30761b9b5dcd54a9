package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodgram-app/backend/internal/models"
	"github.com/foodgram-app/backend/internal/service"
)

func TestCreateRecipe(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	breakfast := createTag(t, db, "Breakfast", "breakfast")
	dinner := createTag(t, db, "Dinner", "dinner")
	potato := createIngredient(t, db, "Potato", "g")
	salt := createIngredient(t, db, "Salt", "g")

	recipe, err := svc.Create(ctx, author.ID, service.RecipeInput{
		Name:        "Mashed potatoes",
		Text:        "Boil, then mash.",
		CookingTime: 30,
		ImageURL:    "https://img.example.com/mash.jpg",
		TagIDs:      []uuid.UUID{breakfast.ID, dinner.ID},
		Ingredients: []service.IngredientInput{
			{IngredientID: potato.ID, Amount: 500},
			{IngredientID: salt.ID, Amount: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Mashed potatoes", recipe.Name)
	assert.Equal(t, author.ID, recipe.AuthorID)
	assert.Equal(t, author.Username, recipe.Author.Username)
	assert.Equal(t, 30, recipe.CookingTime)

	require.Len(t, recipe.Tags, 2)
	require.Len(t, recipe.Ingredients, 2)

	amounts := map[uuid.UUID]float64{}
	for _, ing := range recipe.Ingredients {
		amounts[ing.IngredientID] = ing.Amount
		assert.NotEmpty(t, ing.Ingredient.Name)
	}
	assert.Equal(t, 500.0, amounts[potato.ID])
	assert.Equal(t, 5.0, amounts[salt.ID])
}

func TestCreateRecipeValidation(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	tag := createTag(t, db, "Lunch", "lunch")
	ingredient := createIngredient(t, db, "Rice", "g")

	valid := service.RecipeInput{
		Name:        "Plain rice",
		Text:        "Just rice.",
		CookingTime: 20,
		TagIDs:      []uuid.UUID{tag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 200}},
	}

	cases := []struct {
		name   string
		mutate func(in *service.RecipeInput)
		field  string
	}{
		{"missing name", func(in *service.RecipeInput) { in.Name = "" }, "name"},
		{"missing text", func(in *service.RecipeInput) { in.Text = "" }, "text"},
		{"zero cooking time", func(in *service.RecipeInput) { in.CookingTime = 0 }, "cooking_time"},
		{"no tags", func(in *service.RecipeInput) { in.TagIDs = nil }, "tags"},
		{"duplicate tags", func(in *service.RecipeInput) { in.TagIDs = []uuid.UUID{tag.ID, tag.ID} }, "tags"},
		{"no ingredients", func(in *service.RecipeInput) { in.Ingredients = nil }, "ingredients"},
		{"duplicate ingredients", func(in *service.RecipeInput) {
			in.Ingredients = append(in.Ingredients, service.IngredientInput{IngredientID: ingredient.ID, Amount: 1})
		}, "ingredients"},
		{"non-positive amount", func(in *service.RecipeInput) { in.Ingredients[0].Amount = 0 }, "ingredients"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			in.TagIDs = append([]uuid.UUID(nil), valid.TagIDs...)
			in.Ingredients = append([]service.IngredientInput(nil), valid.Ingredients...)
			tc.mutate(&in)

			_, err := svc.Create(ctx, author.ID, in)
			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	t.Run("unknown tag id", func(t *testing.T) {
		in := valid
		in.TagIDs = []uuid.UUID{uuid.New()}
		_, err := svc.Create(ctx, author.ID, in)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("unknown ingredient id", func(t *testing.T) {
		in := valid
		in.Ingredients = []service.IngredientInput{{IngredientID: uuid.New(), Amount: 10}}
		_, err := svc.Create(ctx, author.ID, in)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestUpdateRecipeReplacesAssociations(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	oldTag := createTag(t, db, "Old", "old")
	newTag := createTag(t, db, "New", "new")
	oldIng := createIngredient(t, db, "Butter", "g")
	newIng := createIngredient(t, db, "Oil", "ml")

	recipe, err := svc.Create(ctx, author.ID, service.RecipeInput{
		Name:        "Before",
		Text:        "Original text.",
		CookingTime: 10,
		ImageURL:    "https://img.example.com/before.jpg",
		TagIDs:      []uuid.UUID{oldTag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: oldIng.ID, Amount: 50}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, recipe.ID, author.ID, service.RecipeInput{
		Name:        "After",
		Text:        "New text.",
		CookingTime: 15,
		TagIDs:      []uuid.UUID{newTag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: newIng.ID, Amount: 30}},
	})
	require.NoError(t, err)

	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, 15, updated.CookingTime)
	// Image untouched when the update carries none.
	assert.Equal(t, "https://img.example.com/before.jpg", updated.ImageURL)

	require.Len(t, updated.Tags, 1)
	assert.Equal(t, newTag.ID, updated.Tags[0].TagID)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, newIng.ID, updated.Ingredients[0].IngredientID)
	assert.Equal(t, 30.0, updated.Ingredients[0].Amount)

	// No residue from the old sets in the join tables.
	var ingRows, tagRows int64
	require.NoError(t, db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", recipe.ID).Count(&ingRows).Error)
	require.NoError(t, db.Model(&models.RecipeTag{}).Where("recipe_id = ?", recipe.ID).Count(&tagRows).Error)
	assert.EqualValues(t, 1, ingRows)
	assert.EqualValues(t, 1, tagRows)
}

func TestUpdateRecipeOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	intruder := createUser(t, db, "intruder")
	tag := createTag(t, db, "Soup", "soup")
	ingredient := createIngredient(t, db, "Water", "ml")

	in := service.RecipeInput{
		Name:        "Broth",
		Text:        "Simmer.",
		CookingTime: 60,
		TagIDs:      []uuid.UUID{tag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 1000}},
	}
	recipe, err := svc.Create(ctx, author.ID, in)
	require.NoError(t, err)

	_, err = svc.Update(ctx, recipe.ID, intruder.ID, in)
	assert.ErrorIs(t, err, service.ErrNotOwner)

	err = svc.Delete(ctx, recipe.ID, intruder.ID)
	assert.ErrorIs(t, err, service.ErrNotOwner)
}

func TestDeleteRecipeRemovesJoins(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	fan := createUser(t, db, "fan")
	tag := createTag(t, db, "Snack", "snack")
	ingredient := createIngredient(t, db, "Bread", "g")

	recipe, err := svc.Create(ctx, author.ID, service.RecipeInput{
		Name:        "Toast",
		Text:        "Toast it.",
		CookingTime: 5,
		TagIDs:      []uuid.UUID{tag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 100}},
	})
	require.NoError(t, err)

	_, err = svc.AddFavorite(ctx, fan.ID, recipe.ID)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, fan.ID, recipe.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, recipe.ID, author.ID))

	_, err = svc.Get(ctx, recipe.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	for _, join := range []interface{}{
		&models.RecipeIngredient{}, &models.RecipeTag{},
		&models.Favorite{}, &models.ShoppingCartItem{},
	} {
		var n int64
		require.NoError(t, db.Model(join).Where("recipe_id = ?", recipe.ID).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestFavoriteMembership(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	fan := createUser(t, db, "fan")
	tag := createTag(t, db, "Dessert", "dessert")
	ingredient := createIngredient(t, db, "Sugar", "g")

	recipe, err := svc.Create(ctx, author.ID, service.RecipeInput{
		Name:        "Caramel",
		Text:        "Melt sugar.",
		CookingTime: 10,
		TagIDs:      []uuid.UUID{tag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 200}},
	})
	require.NoError(t, err)

	got, err := svc.AddFavorite(ctx, fan.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, got.ID)

	// Second add hits the unique pair constraint.
	_, err = svc.AddFavorite(ctx, fan.ID, recipe.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyExists)

	var n int64
	require.NoError(t, db.Model(&models.Favorite{}).
		Where("user_id = ? AND recipe_id = ?", fan.ID, recipe.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	require.NoError(t, svc.RemoveFavorite(ctx, fan.ID, recipe.ID))
	assert.ErrorIs(t, svc.RemoveFavorite(ctx, fan.ID, recipe.ID), service.ErrNotFound)

	_, err = svc.AddFavorite(ctx, fan.ID, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAddFavoriteConcurrentDuplicates(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	fan := createUser(t, db, "fan")
	tag := createTag(t, db, "Dessert", "dessert")
	ingredient := createIngredient(t, db, "Sugar", "g")

	recipe, err := svc.Create(ctx, author.ID, service.RecipeInput{
		Name:        "Caramel",
		Text:        "Melt sugar.",
		CookingTime: 10,
		TagIDs:      []uuid.UUID{tag.ID},
		Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 200}},
	})
	require.NoError(t, err)

	// Two racing adds: the unique pair constraint lets exactly one
	// through, the other surfaces as a duplicate.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddFavorite(ctx, fan.ID, recipe.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, duplicated int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, service.ErrAlreadyExists):
			duplicated++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, duplicated)

	var count int64
	require.NoError(t, db.Model(&models.Favorite{}).
		Where("user_id = ? AND recipe_id = ?", fan.ID, recipe.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMembershipFlags(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	author := createUser(t, db, "chef")
	fan := createUser(t, db, "fan")
	tag := createTag(t, db, "Any", "any")
	ingredient := createIngredient(t, db, "Egg", "pcs")

	makeRecipe := func(name string) *models.Recipe {
		r, err := svc.Create(ctx, author.ID, service.RecipeInput{
			Name:        name,
			Text:        "Cook.",
			CookingTime: 5,
			TagIDs:      []uuid.UUID{tag.ID},
			Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 2}},
		})
		require.NoError(t, err)
		return r
	}
	first := makeRecipe("First")
	second := makeRecipe("Second")

	_, err := svc.AddFavorite(ctx, fan.ID, first.ID)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, fan.ID, second.ID)
	require.NoError(t, err)

	favorited, inCart, err := svc.MembershipFlags(ctx, &fan.ID, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.True(t, favorited[first.ID])
	assert.False(t, favorited[second.ID])
	assert.False(t, inCart[first.ID])
	assert.True(t, inCart[second.ID])

	// Anonymous callers get all-false maps.
	favorited, inCart, err = svc.MembershipFlags(ctx, nil, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.Empty(t, favorited)
	assert.Empty(t, inCart)
}

func TestListRecipesFilters(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewRecipeService(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	breakfast := createTag(t, db, "Breakfast", "breakfast")
	dinner := createTag(t, db, "Dinner", "dinner")
	ingredient := createIngredient(t, db, "Flour", "g")

	create := func(author *models.User, name string, tags ...uuid.UUID) *models.Recipe {
		r, err := svc.Create(ctx, author.ID, service.RecipeInput{
			Name:        name,
			Text:        "Mix and bake.",
			CookingTime: 40,
			TagIDs:      tags,
			Ingredients: []service.IngredientInput{{IngredientID: ingredient.ID, Amount: 300}},
		})
		require.NoError(t, err)
		return r
	}

	pancakes := create(alice, "Pancakes", breakfast.ID)
	stew := create(bob, "Stew", dinner.ID)
	create(bob, "Pie", breakfast.ID, dinner.ID)

	names := func(recipes []models.Recipe) []string {
		out := make([]string, 0, len(recipes))
		for _, r := range recipes {
			out = append(out, r.Name)
		}
		return out
	}

	t.Run("no filter", func(t *testing.T) {
		recipes, total, err := svc.List(ctx, service.RecipeFilter{}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, recipes, 3)
	})

	t.Run("by author", func(t *testing.T) {
		recipes, total, err := svc.List(ctx, service.RecipeFilter{AuthorID: &bob.ID}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.ElementsMatch(t, []string{"Stew", "Pie"}, names(recipes))
	})

	t.Run("by tags is OR", func(t *testing.T) {
		recipes, total, err := svc.List(ctx, service.RecipeFilter{
			TagSlugs: []string{"breakfast", "dinner"},
		}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, recipes, 3)
	})

	t.Run("by single tag", func(t *testing.T) {
		recipes, _, err := svc.List(ctx, service.RecipeFilter{TagSlugs: []string{"breakfast"}}, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Pancakes", "Pie"}, names(recipes))
	})

	t.Run("favorited filter", func(t *testing.T) {
		_, err := svc.AddFavorite(ctx, alice.ID, stew.ID)
		require.NoError(t, err)

		yes, no := true, false
		recipes, _, err := svc.List(ctx, service.RecipeFilter{IsFavorited: &yes}, &alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Stew"}, names(recipes))

		// false excludes the matching recipes.
		recipes, _, err = svc.List(ctx, service.RecipeFilter{IsFavorited: &no}, &alice.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Pancakes", "Pie"}, names(recipes))

		// Anonymous callers get the filter ignored, not an error.
		recipes, total, err := svc.List(ctx, service.RecipeFilter{IsFavorited: &yes}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, recipes, 3)
	})

	t.Run("cart filter", func(t *testing.T) {
		_, err := svc.AddToCart(ctx, alice.ID, pancakes.ID)
		require.NoError(t, err)

		yes := true
		recipes, _, err := svc.List(ctx, service.RecipeFilter{IsInCart: &yes}, &alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Pancakes"}, names(recipes))
	})

	t.Run("pagination", func(t *testing.T) {
		recipes, total, err := svc.List(ctx, service.RecipeFilter{Page: 2, Limit: 2}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, recipes, 1)
	})
}
