package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
	"github.com/gin-gonic/gin"
)

// CatalogController handles the administrative REST surface for catalog
// entities. Every mutation commits through the catalog store, which bumps
// the version counter the cache checks on its next read.
type CatalogController interface {
	CreatePizza(c *gin.Context)
	UpdatePizza(c *gin.Context)
	DeletePizza(c *gin.Context)

	CreateTopping(c *gin.Context)
	UpdateTopping(c *gin.Context)
	DeleteTopping(c *gin.Context)

	CreateCategory(c *gin.Context)
	UpdateCategory(c *gin.Context)
	DeleteCategory(c *gin.Context)

	CreateLocation(c *gin.Context)
	UpdateLocation(c *gin.Context)
	DeleteLocation(c *gin.Context)

	CreateOffer(c *gin.Context)
	UpdateOffer(c *gin.Context)
	DeleteOffer(c *gin.Context)
}

type catalogController struct {
	store services.CatalogStore
}

// NewCatalogController creates a new instance of CatalogController
func NewCatalogController(store services.CatalogStore) *catalogController {
	return &catalogController{store: store}
}

// respondError writes a structured error with its mapped HTTP status.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := models.AsAPIError(err); ok {
		c.JSON(apiErr.HTTPStatus(), apiErr)
		return
	}
	log.WithError(err).Error("Unhandled controller error")
	c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Internal server error"))
}

// bindJSON decodes the request body, reporting a validation error on
// malformed payloads.
func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request body: "+err.Error()))
		return false
	}
	return true
}

// CreatePizza godoc
// @Summary Create a pizza
// @Description Add a new pizza to the menu with per-size pricing
// @Tags admin
// @Accept json
// @Produce json
// @Param pizza body models.Pizza true "Pizza to create"
// @Success 201 {object} models.Pizza
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/pizzas [post]
func (ctrl *catalogController) CreatePizza(c *gin.Context) {
	var pizza models.Pizza
	if !bindJSON(c, &pizza) {
		return
	}
	if err := ctrl.store.CreatePizza(c.Request.Context(), &pizza); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pizza)
}

// UpdatePizza godoc
// @Summary Update a pizza
// @Description Update an existing pizza by ID
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Pizza ID"
// @Param pizza body models.Pizza true "New pizza values"
// @Success 200 {object} models.Pizza
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/pizzas/{id} [put]
func (ctrl *catalogController) UpdatePizza(c *gin.Context) {
	var pizza models.Pizza
	if !bindJSON(c, &pizza) {
		return
	}
	if err := ctrl.store.UpdatePizza(c.Request.Context(), c.Param("id"), &pizza); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pizza)
}

// DeletePizza godoc
// @Summary Delete a pizza
// @Description Remove a pizza from the menu. Existing order lines keep their denormalized pizza name and price.
// @Tags admin
// @Produce json
// @Param id path string true "Pizza ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/pizzas/{id} [delete]
func (ctrl *catalogController) DeletePizza(c *gin.Context) {
	if err := ctrl.store.DeletePizza(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pizza deleted successfully"})
}

// CreateTopping godoc
// @Summary Create a topping
// @Description Add a new topping, optionally attached to a category
// @Tags admin
// @Accept json
// @Produce json
// @Param topping body models.Topping true "Topping to create"
// @Success 201 {object} models.Topping
// @Failure 400 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/toppings [post]
func (ctrl *catalogController) CreateTopping(c *gin.Context) {
	var topping models.Topping
	if !bindJSON(c, &topping) {
		return
	}
	if err := ctrl.store.CreateTopping(c.Request.Context(), &topping); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topping)
}

// UpdateTopping godoc
// @Summary Update a topping
// @Description Update an existing topping by ID
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Topping ID"
// @Param topping body models.Topping true "New topping values"
// @Success 200 {object} models.Topping
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/toppings/{id} [put]
func (ctrl *catalogController) UpdateTopping(c *gin.Context) {
	var topping models.Topping
	if !bindJSON(c, &topping) {
		return
	}
	if err := ctrl.store.UpdateTopping(c.Request.Context(), c.Param("id"), &topping); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topping)
}

// DeleteTopping godoc
// @Summary Delete a topping
// @Description Remove a topping from the menu
// @Tags admin
// @Produce json
// @Param id path string true "Topping ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/toppings/{id} [delete]
func (ctrl *catalogController) DeleteTopping(c *gin.Context) {
	if err := ctrl.store.DeleteTopping(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Topping deleted successfully"})
}

// CreateCategory godoc
// @Summary Create a topping category
// @Description Add a new topping category
// @Tags admin
// @Accept json
// @Produce json
// @Param category body models.ToppingCategory true "Category to create"
// @Success 201 {object} models.ToppingCategory
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/categories [post]
func (ctrl *catalogController) CreateCategory(c *gin.Context) {
	var category models.ToppingCategory
	if !bindJSON(c, &category) {
		return
	}
	if err := ctrl.store.CreateCategory(c.Request.Context(), &category); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// UpdateCategory godoc
// @Summary Update a topping category
// @Description Update an existing topping category by ID
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param category body models.ToppingCategory true "New category values"
// @Success 200 {object} models.ToppingCategory
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/categories/{id} [put]
func (ctrl *catalogController) UpdateCategory(c *gin.Context) {
	var category models.ToppingCategory
	if !bindJSON(c, &category) {
		return
	}
	if err := ctrl.store.UpdateCategory(c.Request.Context(), c.Param("id"), &category); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// DeleteCategory godoc
// @Summary Delete a topping category
// @Description Remove a category. Toppings that referenced it keep existing without a category.
// @Tags admin
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/categories/{id} [delete]
func (ctrl *catalogController) DeleteCategory(c *gin.Context) {
	if err := ctrl.store.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// CreateLocation godoc
// @Summary Create a store location
// @Description Add a new store location
// @Tags admin
// @Accept json
// @Produce json
// @Param location body models.StoreLocation true "Location to create"
// @Success 201 {object} models.StoreLocation
// @Failure 400 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/locations [post]
func (ctrl *catalogController) CreateLocation(c *gin.Context) {
	var location models.StoreLocation
	if !bindJSON(c, &location) {
		return
	}
	if err := ctrl.store.CreateLocation(c.Request.Context(), &location); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, location)
}

// UpdateLocation godoc
// @Summary Update a store location
// @Description Update the mutable fields of a location (hours, phone, active flag, address details)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Location ID"
// @Param location body models.StoreLocation true "New location values"
// @Success 200 {object} models.StoreLocation
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/locations/{id} [put]
func (ctrl *catalogController) UpdateLocation(c *gin.Context) {
	var location models.StoreLocation
	if !bindJSON(c, &location) {
		return
	}
	if err := ctrl.store.UpdateLocation(c.Request.Context(), c.Param("id"), &location); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, location)
}

// DeleteLocation godoc
// @Summary Delete a store location
// @Description Remove a location together with its offers
// @Tags admin
// @Produce json
// @Param id path string true "Location ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/locations/{id} [delete]
func (ctrl *catalogController) DeleteLocation(c *gin.Context) {
	if err := ctrl.store.DeleteLocation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Location deleted successfully"})
}

// CreateOffer godoc
// @Summary Create an offer
// @Description Add a new promotion, optionally bound to a location
// @Tags admin
// @Accept json
// @Produce json
// @Param offer body models.Offer true "Offer to create"
// @Success 201 {object} models.Offer
// @Failure 400 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/offers [post]
func (ctrl *catalogController) CreateOffer(c *gin.Context) {
	var offer models.Offer
	if !bindJSON(c, &offer) {
		return
	}
	if err := ctrl.store.CreateOffer(c.Request.Context(), &offer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

// UpdateOffer godoc
// @Summary Update an offer
// @Description Update an existing offer by ID
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param offer body models.Offer true "New offer values"
// @Success 200 {object} models.Offer
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/offers/{id} [put]
func (ctrl *catalogController) UpdateOffer(c *gin.Context) {
	var offer models.Offer
	if !bindJSON(c, &offer) {
		return
	}
	if err := ctrl.store.UpdateOffer(c.Request.Context(), c.Param("id"), &offer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

// DeleteOffer godoc
// @Summary Delete an offer
// @Description Remove a promotion
// @Tags admin
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /api/v1/admin/offers/{id} [delete]
func (ctrl *catalogController) DeleteOffer(c *gin.Context) {
	if err := ctrl.store.DeleteOffer(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Offer deleted successfully"})
}
