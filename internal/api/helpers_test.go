package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foodgram-app/backend/internal/api"
	"github.com/foodgram-app/backend/internal/database"
	"github.com/foodgram-app/backend/internal/models"
	"github.com/foodgram-app/backend/internal/router"
	"github.com/foodgram-app/backend/internal/service"
)

type fakeImageStore struct {
	uploads int
}

func (f *fakeImageStore) Upload(_ context.Context, _ []byte, key, _ string) (string, error) {
	f.uploads++
	return "https://images.example.com/" + key, nil
}

func setupAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	engine, db, _ := setupAPIFull(t)
	return engine, db
}

func setupAPIFull(t *testing.T) (*gin.Engine, *gorm.DB, *fakeImageStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	authService := service.NewAuthService(db, nil, "test-secret")
	recipeService := service.NewRecipeService(db)
	cartService := service.NewShoppingCartService(db)
	subscriptionService := service.NewSubscriptionService(db)
	store := &fakeImageStore{}
	imageService := service.NewImageService(store)

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
			nil,
		),
	})

	return engine, db, store
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// doMultipartRequest sends a recipe payload as a multipart form with a
// JSON "data" field and an optional "image" file part.
func doMultipartRequest(t *testing.T, engine *gin.Engine, method, path, token string, data interface{}, file []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, form.WriteField("data", string(payload)))
	if file != nil {
		part, err := form.CreateFormFile("image", "image.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, form.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// registerUser registers through the API and returns the token and user id.
func registerUser(t *testing.T, engine *gin.Engine, username string) (token, userID string) {
	t.Helper()

	w := doRequest(t, engine, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "Test",
		"last_name":  "User",
		"password":   "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	token, _ = body["token"].(string)
	require.NotEmpty(t, token)
	user, _ := body["user"].(map[string]interface{})
	userID, _ = user["id"].(string)
	require.NotEmpty(t, userID)
	return token, userID
}

var seedColorSeq int

func seedTag(t *testing.T, db *gorm.DB, name, slug string) *models.Tag {
	t.Helper()
	seedColorSeq++
	tag := &models.Tag{Name: name, Color: fmt.Sprintf("#%06X", seedColorSeq), Slug: slug}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ingredient := &models.Ingredient{Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(ingredient).Error)
	return ingredient
}
