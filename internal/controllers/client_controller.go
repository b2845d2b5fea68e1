package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClientController manages registered clients of the development token
// issuer.
type ClientController struct {
	clientService services.ClientService
}

// NewClientController creates a new instance of ClientController
func NewClientController(clientService services.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

// clientResponse is the wire shape of a registered client. The stored
// secret hash never leaves the database.
type clientResponse struct {
	ClientID   string    `json:"client_id"`
	Name       string    `json:"name,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Scopes     string    `json:"scopes,omitempty"`
	GrantTypes string    `json:"grant_types,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toClientResponse(client *models.OAuthClient) clientResponse {
	return clientResponse{
		ClientID:   client.ID,
		Name:       client.Name,
		UserID:     client.UserID,
		Scopes:     client.Scopes,
		GrantTypes: client.GrantTypes,
		CreatedAt:  client.CreatedAt,
	}
}

// CreateClient godoc
// @Summary Register an OAuth2 client
// @Description Register a client for the token issuer. The secret is generated server-side and returned exactly once.
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body object{client_id=string,name=string,user_id=string,scopes=string} true "Client details"
// @Success 201 {object} map[string]interface{} "Client created with client_id and client_secret"
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var req struct {
		ClientID string `json:"client_id"`
		Name     string `json:"name" binding:"required"`
		UserID   string `json:"user_id"`
		Scopes   string `json:"scopes"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if req.ClientID == "" {
		req.ClientID = uuid.New().String()
	}
	if req.Scopes == "" {
		req.Scopes = strings.Join([]string{auth.ScopeRead, auth.ScopeWrite}, " ")
	}

	// The plaintext secret exists only in this response.
	secret := uuid.New().String()
	client := &models.OAuthClient{
		ID:         req.ClientID,
		Secret:     secret,
		Name:       req.Name,
		UserID:     req.UserID,
		Scopes:     req.Scopes,
		GrantTypes: "client_credentials",
	}

	if err := cc.clientService.CreateClient(c.Request.Context(), client); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"client_id":     client.ID,
		"client_secret": secret,
		"name":          client.Name,
		"scopes":        client.Scopes,
		"grant_types":   client.GrantTypes,
	})
}

// GetClient godoc
// @Summary Get an OAuth2 client
// @Description Get a registered client by ID (without its secret)
// @Tags OAuth2 Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} controllers.clientResponse
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/clients/{id} [get]
func (cc *ClientController) GetClient(c *gin.Context) {
	client, err := cc.clientService.GetClientByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}

// ListClients godoc
// @Summary List OAuth2 clients
// @Description List every registered client (without secrets)
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {array} controllers.clientResponse
// @Failure 500 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	clients, err := cc.clientService.ListClients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]clientResponse, len(clients))
	for i := range clients {
		out[i] = toClientResponse(&clients[i])
	}
	c.JSON(http.StatusOK, out)
}

// DeleteClient godoc
// @Summary Delete an OAuth2 client
// @Description Remove a registered client; outstanding tokens keep working until they expire
// @Tags OAuth2 Clients
// @Param id path string true "Client ID"
// @Success 204 "Client deleted successfully"
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/clients/{id} [delete]
func (cc *ClientController) DeleteClient(c *gin.Context) {
	if err := cc.clientService.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
