package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsersEndpoint(t *testing.T) {
	engine, _ := setupAPI(t)
	token, _ := registerUser(t, engine, "alice")
	_, bobID := registerUser(t, engine, "bob")

	w := doRequest(t, engine, http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 2, body["count"])

	// Subscribed flag is relative to the caller.
	w = doRequest(t, engine, http.MethodPost, "/api/v1/users/"+bobID+"/subscribe", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, entry := range decodeBody(t, w)["results"].([]interface{}) {
		user := entry.(map[string]interface{})
		if user["id"] == bobID {
			assert.Equal(t, true, user["is_subscribed"])
		} else {
			assert.Equal(t, false, user["is_subscribed"])
		}
	}

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUserEndpoint(t *testing.T) {
	engine, _ := setupAPI(t)
	_, aliceID := registerUser(t, engine, "alice")

	w := doRequest(t, engine, http.MethodGet, "/api/v1/users/"+aliceID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, false, body["is_subscribed"])

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/00000000-0000-0000-0000-000000000001", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeEndpoints(t *testing.T) {
	engine, _ := setupAPI(t)
	token, selfID := registerUser(t, engine, "alice")
	_, bobID := registerUser(t, engine, "bob")

	w := doRequest(t, engine, http.MethodPost, "/api/v1/users/"+bobID+"/subscribe", token, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Duplicate.
	w = doRequest(t, engine, http.MethodPost, "/api/v1/users/"+bobID+"/subscribe", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Self-subscription.
	w = doRequest(t, engine, http.MethodPost, "/api/v1/users/"+selfID+"/subscribe", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown author.
	w = doRequest(t, engine, http.MethodPost, "/api/v1/users/00000000-0000-0000-0000-000000000001/subscribe", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, engine, http.MethodDelete, "/api/v1/users/"+bobID+"/subscribe", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Not subscribed anymore.
	w = doRequest(t, engine, http.MethodDelete, "/api/v1/users/"+bobID+"/subscribe", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionsEndpoint(t *testing.T) {
	engine, db := setupAPI(t)
	followerToken, _ := registerUser(t, engine, "follower")
	chefToken, chefID := registerUser(t, engine, "chef")

	for _, name := range []string{"Omelette", "Scramble", "Benedict"} {
		createRecipe(t, engine, db, chefToken, name)
	}

	w := doRequest(t, engine, http.MethodPost, "/api/v1/users/"+chefID+"/subscribe", followerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/subscriptions?recipes_limit=2", followerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	results := decodeBody(t, w)["results"].([]interface{})
	require.Len(t, results, 1)
	author := results[0].(map[string]interface{})
	assert.Equal(t, "chef", author["username"])
	assert.Equal(t, true, author["is_subscribed"])
	assert.EqualValues(t, 3, author["recipes_count"])
	assert.Len(t, author["recipes"].([]interface{}), 2)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/subscriptions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/users/subscriptions?recipes_limit=-1", followerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
