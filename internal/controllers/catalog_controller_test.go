package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAPIError(t *testing.T, body []byte) models.APIError {
	t.Helper()
	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	return apiErr
}

func TestCreatePizzaValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "missing name",
			body:    `{"sizes":{"small":8.99,"medium":10.99,"large":12.99}}`,
			message: "Pizza name is required",
		},
		{
			name:    "missing required size",
			body:    `{"name":"Quattro Formaggi","sizes":{"small":8.99,"medium":10.99}}`,
			message: `Pizza sizes must include "large"`,
		},
		{
			// A single negative size keeps the reported size deterministic.
			name:    "negative price",
			body:    `{"name":"Quattro Formaggi","sizes":{"small":-1,"medium":10.99,"large":12.99}}`,
			message: `Negative price for size "small"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(http.MethodPost, "/api/v1/admin/pizzas", tt.body, adminHeader())
			require.Equal(t, http.StatusBadRequest, w.Code)

			apiErr := decodeAPIError(t, w.Body.Bytes())
			assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}

	t.Run("valid pizza", func(t *testing.T) {
		body := `{"name":"Quattro Formaggi","sizes":{"small":8.99,"medium":10.99,"large":12.99},"is_available":true}`
		w := env.request(http.MethodPost, "/api/v1/admin/pizzas", body, adminHeader())
		require.Equal(t, http.StatusCreated, w.Code)

		var created models.Pizza
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
	})
}

func TestUpdateAndDeletePizza(t *testing.T) {
	env := newTestEnv(t)
	body := `{"name":"Margherita","sizes":{"small":9.99,"medium":13.49,"large":15.99},"is_available":true}`

	t.Run("update unknown pizza", func(t *testing.T) {
		w := env.request(http.MethodPut, "/api/v1/admin/pizzas/missing", body, adminHeader())
		require.Equal(t, http.StatusNotFound, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, models.ErrNotFound, apiErr.Code)
		assert.Equal(t, "Pizza not found", apiErr.Message)
	})

	t.Run("update reprices", func(t *testing.T) {
		w := env.request(http.MethodPut, "/api/v1/admin/pizzas/"+env.margherita.ID, body, adminHeader())
		require.Equal(t, http.StatusOK, w.Code)

		var reloaded models.Pizza
		require.NoError(t, env.db.First(&reloaded, "id = ?", env.margherita.ID).Error)
		assert.InDelta(t, 13.49, reloaded.Sizes["medium"], 0.001)
	})

	t.Run("delete", func(t *testing.T) {
		w := env.request(http.MethodDelete, "/api/v1/admin/pizzas/"+env.margherita.ID, "", adminHeader())
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Pizza deleted successfully"}`, w.Body.String())

		w = env.request(http.MethodDelete, "/api/v1/admin/pizzas/"+env.margherita.ID, "", adminHeader())
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestToppingCategoryReference(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown category rejected", func(t *testing.T) {
		body := `{"name":"Bacon","price":2.00,"category_id":"ghost"}`
		w := env.request(http.MethodPost, "/api/v1/admin/toppings", body, adminHeader())
		require.Equal(t, http.StatusBadRequest, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, "Unknown topping category", apiErr.Message)
		assert.Equal(t, "ghost", apiErr.Details["category_id"])
	})

	t.Run("negative price rejected", func(t *testing.T) {
		w := env.request(http.MethodPost, "/api/v1/admin/toppings", `{"name":"Bacon","price":-1}`, adminHeader())
		require.Equal(t, http.StatusBadRequest, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, "Topping price must be non-negative", apiErr.Message)
	})

	t.Run("valid topping", func(t *testing.T) {
		body := fmt.Sprintf(`{"name":"Bacon","price":2.00,"category_id":%q,"is_available":true}`, env.meats.ID)
		w := env.request(http.MethodPost, "/api/v1/admin/toppings", body, adminHeader())
		require.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestCategoryConflictAndDelete(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(http.MethodPost, "/api/v1/admin/categories", `{"name":"Cheeses"}`, adminHeader())
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		w := env.request(http.MethodPost, "/api/v1/admin/categories", `{"name":"Cheeses"}`, adminHeader())
		require.Equal(t, http.StatusConflict, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, models.ErrConflict, apiErr.Code)
		assert.Equal(t, `Category "Cheeses" already exists`, apiErr.Message)
	})

	t.Run("delete detaches toppings", func(t *testing.T) {
		w := env.request(http.MethodDelete, "/api/v1/admin/categories/"+env.meats.ID, "", adminHeader())
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Category deleted successfully"}`, w.Body.String())

		var reloaded models.Topping
		require.NoError(t, env.db.First(&reloaded, "id = ?", env.pepperoni.ID).Error)
		assert.Nil(t, reloaded.CategoryID, "topping survives without a category")
	})
}

func TestLocationLifecycle(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing city rejected", func(t *testing.T) {
		w := env.request(http.MethodPost, "/api/v1/admin/locations", `{"name":"Brooklyn Spot"}`, adminHeader())
		require.Equal(t, http.StatusBadRequest, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, "Location city is required", apiErr.Message)
	})

	w := env.request(http.MethodPost, "/api/v1/admin/locations",
		`{"name":"Brooklyn Spot","address":"123 Bedford Ave","city":"New York","is_active":true}`, adminHeader())
	require.Equal(t, http.StatusCreated, w.Code)

	var location models.StoreLocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &location))

	offer := fmt.Sprintf(`{"title":"Brooklyn Special","discount_type":"percentage","discount_value":15,"location_id":%q,"valid_from":"2026-01-01T00:00:00Z"}`, location.ID)
	w = env.request(http.MethodPost, "/api/v1/admin/offers", offer, adminHeader())
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("delete removes bound offers", func(t *testing.T) {
		w := env.request(http.MethodDelete, "/api/v1/admin/locations/"+location.ID, "", adminHeader())
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Location deleted successfully"}`, w.Body.String())

		var count int64
		require.NoError(t, env.db.Model(&models.Offer{}).Where("location_id = ?", location.ID).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestOfferValidation(t *testing.T) {
	env := newTestEnv(t)

	post := func(t *testing.T, body string) models.APIError {
		t.Helper()
		w := env.request(http.MethodPost, "/api/v1/admin/offers", body, adminHeader())
		require.Equal(t, http.StatusBadRequest, w.Code)
		return decodeAPIError(t, w.Body.Bytes())
	}

	t.Run("unknown location", func(t *testing.T) {
		apiErr := post(t, `{"title":"Ghost Deal","discount_type":"percentage","discount_value":10,"location_id":"ghost","valid_from":"2026-01-01T00:00:00Z"}`)
		assert.Equal(t, "Unknown store location", apiErr.Message)
		assert.Equal(t, "ghost", apiErr.Details["location_id"])
	})

	t.Run("unknown discount type", func(t *testing.T) {
		apiErr := post(t, `{"title":"Raffle","discount_type":"raffle","discount_value":10,"valid_from":"2026-01-01T00:00:00Z"}`)
		assert.Equal(t, `Unknown discount type "raffle"`, apiErr.Message)
	})

	t.Run("inverted validity window", func(t *testing.T) {
		apiErr := post(t, `{"title":"Time Travel","discount_type":"fixed","discount_value":5,"valid_from":"2026-03-01T00:00:00Z","valid_until":"2026-02-01T00:00:00Z"}`)
		assert.Equal(t, "Offer validity window ends before it starts", apiErr.Message)
	})
}

func TestMalformedAdminBodyRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(http.MethodPost, "/api/v1/admin/pizzas", `{"name":`, adminHeader())
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeAPIError(t, w.Body.Bytes())
	assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "Invalid request body: ")
}
