package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateClientReturnsSecretOnce(t *testing.T) {
	env := newTestEnv(t)

	body := `{"client_id":"agent-1","name":"Test Agent","user_id":"user-9"}`
	w := env.request(http.MethodPost, "/api/v1/admin/clients", body, adminHeader())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "agent-1", resp["client_id"])
	assert.Equal(t, "Test Agent", resp["name"])
	assert.Equal(t, "pizza:read pizza:write", resp["scopes"])
	assert.Equal(t, "client_credentials", resp["grant_types"])

	secret, ok := resp["client_secret"].(string)
	require.True(t, ok)
	require.NotEmpty(t, secret)

	// Only the hash is persisted; the plaintext never comes back again.
	var stored models.OAuthClient
	require.NoError(t, env.db.First(&stored, "id = ?", "agent-1").Error)
	assert.NotEqual(t, secret, stored.Secret)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Secret), []byte(secret)))
}

func TestCreateClientValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing name", func(t *testing.T) {
		w := env.request(http.MethodPost, "/api/v1/admin/clients", `{"client_id":"agent-2"}`, adminHeader())
		require.Equal(t, http.StatusBadRequest, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
		assert.Contains(t, apiErr.Message, "Invalid request body: ")
	})

	t.Run("duplicate client id", func(t *testing.T) {
		body := `{"client_id":"agent-3","name":"First"}`
		w := env.request(http.MethodPost, "/api/v1/admin/clients", body, adminHeader())
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.request(http.MethodPost, "/api/v1/admin/clients", body, adminHeader())
		require.Equal(t, http.StatusConflict, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, models.ErrConflict, apiErr.Code)
		assert.Equal(t, "Client already exists", apiErr.Message)
	})
}

func TestGetAndListClientsHideSecrets(t *testing.T) {
	env := newTestEnv(t)

	body := `{"client_id":"agent-4","name":"Reader","scopes":"pizza:read"}`
	w := env.request(http.MethodPost, "/api/v1/admin/clients", body, adminHeader())
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("get by id", func(t *testing.T) {
		w := env.request(http.MethodGet, "/api/v1/admin/clients/agent-4", "", adminHeader())
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "agent-4", resp["client_id"])
		assert.Equal(t, "pizza:read", resp["scopes"])
		assert.NotContains(t, w.Body.String(), "client_secret")
		assert.NotContains(t, w.Body.String(), "secret")
	})

	t.Run("get unknown", func(t *testing.T) {
		w := env.request(http.MethodGet, "/api/v1/admin/clients/ghost", "", adminHeader())
		require.Equal(t, http.StatusNotFound, w.Code)

		apiErr := decodeAPIError(t, w.Body.Bytes())
		assert.Equal(t, models.ErrNotFound, apiErr.Code)
		assert.Equal(t, "Client not found", apiErr.Message)
	})

	t.Run("list", func(t *testing.T) {
		w := env.request(http.MethodGet, "/api/v1/admin/clients", "", adminHeader())
		require.Equal(t, http.StatusOK, w.Code)

		var resp []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.NotContains(t, w.Body.String(), "client_secret")
	})
}

func TestDeleteClient(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(http.MethodPost, "/api/v1/admin/clients", `{"client_id":"agent-5","name":"Doomed"}`, adminHeader())
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.request(http.MethodDelete, "/api/v1/admin/clients/agent-5", "", adminHeader())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.request(http.MethodDelete, "/api/v1/admin/clients/agent-5", "", adminHeader())
	require.Equal(t, http.StatusNotFound, w.Code)
}
