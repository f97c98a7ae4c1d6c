package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemBody(title string, priceCents int64) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Lightly worn",
		"price_cents": priceCents,
		"size":        "M",
		"condition":   "good",
		"category":    "jackets",
		"photo_url":   "https://example.com/p.jpg",
	}
}

func TestCreateItem(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newUser(t, "seller@example.com", "USER")

	rec := env.do(t, http.MethodPost, "/items", token, itemBody("Denim Jacket", 4500))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	item := resp["item"].(map[string]any)
	assert.Equal(t, "Denim Jacket", item["title"])
	assert.Equal(t, "available", item["status"], "new listings always start available")
	assert.NotEmpty(t, item["id"])
}

func TestCreateItemRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/items", "", itemBody("Denim Jacket", 4500))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newUser(t, "seller@example.com", "USER")

	body := itemBody("Denim Jacket", 0)
	rec := env.do(t, http.MethodPost, "/items", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "price must be positive")

	body = itemBody("", 4500)
	rec = env.do(t, http.MethodPost, "/items", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "title required")
}

func TestGetItemPublic(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.newUser(t, "seller@example.com", "USER")
	it := env.newItem(t, owner.ID, 4500)

	// No token needed for reads.
	rec := env.do(t, http.MethodGet, "/items/"+it.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, it.ID, resp["item"].(map[string]any)["id"])

	rec = env.do(t, http.MethodGet, "/items/"+it.ID+"x", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.newUser(t, "seller@example.com", "USER")
	env.newItem(t, owner.ID, 4500)
	env.newItem(t, owner.ID, 1200)

	rec := env.do(t, http.MethodGet, "/items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Len(t, resp["items"], 2)
	assert.EqualValues(t, 2, resp["pagination"].(map[string]any)["total"])
}

func TestUpdateItemOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.newUser(t, "seller@example.com", "USER")
	_, otherToken := env.newUser(t, "other@example.com", "USER")
	it := env.newItem(t, owner.ID, 4500)

	body := itemBody("Denim Jacket (reduced)", 3000)

	rec := env.do(t, http.MethodPut, "/items/"+it.ID, otherToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the owner may edit")

	rec = env.do(t, http.MethodPut, "/items/"+it.ID, ownerToken, body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	item := resp["item"].(map[string]any)
	assert.Equal(t, "Denim Jacket (reduced)", item["title"])
	assert.EqualValues(t, 3000, item["price_cents"])
}

func TestDeleteItemOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.newUser(t, "seller@example.com", "USER")
	_, otherToken := env.newUser(t, "other@example.com", "USER")
	it := env.newItem(t, owner.ID, 4500)

	rec := env.do(t, http.MethodDelete, "/items/"+it.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/items/"+it.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/items/"+it.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMyItems(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.newUser(t, "seller@example.com", "USER")
	other, _ := env.newUser(t, "other@example.com", "USER")
	env.newItem(t, owner.ID, 4500)
	env.newItem(t, other.ID, 900)

	rec := env.do(t, http.MethodGet, "/items/mine", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	require.Len(t, resp["items"], 1)
}
