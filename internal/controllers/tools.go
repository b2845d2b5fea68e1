package controllers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/mcp"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
)

// toolHandler runs one tool call. The returned payload is marshalled into a
// text content block; an error becomes an in-band failed result.
type toolHandler func(ctx context.Context, caller *auth.AuthContext, args map[string]interface{}) (interface{}, error)

// toolDefinition couples a tool's wire description with its access level
// and its handler.
type toolDefinition struct {
	Tool    mcp.Tool
	Level   auth.Level
	Handler toolHandler
}

// toolDefinitions builds the tool registry. Wire names, argument names and
// response shapes are part of the published contract and must not change.
func (ctrl *mcpController) toolDefinitions() []toolDefinition {
	return []toolDefinition{
		{
			Tool: mcp.Tool{
				Name:        "get_pizzas",
				Description: "Get a list of all pizzas in the menu with their names, descriptions, sizes with prices, and availability status.",
				InputSchema: objectSchema(nil),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetPizzas,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_pizza_by_id",
				Description: "Get a specific pizza by its ID, including available sizes with prices and availability status.",
				InputSchema: objectSchema(map[string]interface{}{
					"id": stringProp("The unique identifier of the pizza to retrieve"),
				}, "id"),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetPizzaByID,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_toppings",
				Description: "Get a list of all toppings in the menu, optionally filtered by category name (e.g. 'meats', 'vegetables', 'cheeses').",
				InputSchema: objectSchema(map[string]interface{}{
					"category": stringProp("Optional category name to filter toppings"),
				}),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetToppings,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_topping_by_id",
				Description: "Get a specific topping by its ID, including its category, price and availability status.",
				InputSchema: objectSchema(map[string]interface{}{
					"id": stringProp("The unique identifier of the topping to retrieve"),
				}, "id"),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetToppingByID,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_topping_categories",
				Description: "Get a list of all topping categories with their names and descriptions.",
				InputSchema: objectSchema(nil),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetToppingCategories,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_popular_toppings",
				Description: "Get the most frequently ordered toppings, ranked by how many order lines included them.",
				InputSchema: objectSchema(map[string]interface{}{
					"limit": intProp("Maximum number of toppings to return (default: 10)"),
				}),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetPopularToppings,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_orders",
				Description: "Get a list of orders, optionally filtered by user ID, status (comma-separated list allowed, e.g. 'pending,confirmed') and recency (e.g. '60m', '2h', '1d').",
				InputSchema: objectSchema(map[string]interface{}{
					"userId": stringProp("Filter orders by user ID"),
					"status": stringProp("Filter by order status; comma-separated list allowed"),
					"since":  stringProp("Only orders created in the last X minutes, hours or days (e.g. '60m', '2h', '1d')"),
				}),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetOrders,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_order_by_id",
				Description: "Get a specific order by its ID, including all items, status, total price and timestamps.",
				InputSchema: objectSchema(map[string]interface{}{
					"id": stringProp("The unique identifier of the order to retrieve"),
				}, "id"),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetOrderByID,
		},
		{
			Tool: mcp.Tool{
				Name:        "place_order",
				Description: "Place a new pizza order. Each item carries pizza_id (required), size (default: medium), quantity (default: 1) and an optional list of topping IDs. Returns the created order with its authoritative total price.",
				InputSchema: objectSchema(map[string]interface{}{
					"userId": stringProp("ID of the user placing the order"),
					"items": map[string]interface{}{
						"type":        "array",
						"description": "Order lines",
						"items": objectSchema(map[string]interface{}{
							"pizza_id": stringProp("ID of the pizza"),
							"size":     stringProp("Pizza size (small, medium, large, ...). Default: medium"),
							"quantity": intProp("Number of pizzas. Default: 1"),
							"toppings": map[string]interface{}{
								"type":        "array",
								"description": "Additional topping IDs",
								"items":       map[string]interface{}{"type": "string"},
							},
						}, "pizza_id"),
					},
					"nickname": stringProp("Optional nickname for the order (e.g. \"John's Birthday Party\")"),
				}, "userId", "items"),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handlePlaceOrder,
		},
		{
			Tool: mcp.Tool{
				Name:        "delete_order_by_id",
				Description: "Cancel an order that has not been started yet. The order must still be pending and userId must match the order owner.",
				InputSchema: objectSchema(map[string]interface{}{
					"id":     stringProp("ID of the order to cancel"),
					"userId": stringProp("ID of the user that placed the order"),
				}, "id", "userId"),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleDeleteOrderByID,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_store_locations",
				Description: "Get a list of store locations with addresses, coordinates, phone numbers and operating hours, optionally filtered by city.",
				InputSchema: objectSchema(map[string]interface{}{
					"city": stringProp("Optional city name to filter locations"),
				}),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetStoreLocations,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_active_offers",
				Description: "Get currently active offers and discounts, including promo codes and validity periods. With location_id, global offers and that location's own are returned.",
				InputSchema: objectSchema(map[string]interface{}{
					"location_id": stringProp("Optional location ID for location-specific offers"),
				}),
			},
			Level:   auth.LevelAuthenticated,
			Handler: ctrl.handleGetActiveOffers,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_auth_info",
				Description: "Get information about the current authentication status. Useful for debugging and verifying token validation.",
				InputSchema: objectSchema(nil),
			},
			Level:   auth.LevelPublic,
			Handler: ctrl.handleGetAuthInfo,
		},
		{
			Tool: mcp.Tool{
				Name:        "notify_menu_update",
				Description: "Send capability-change notifications to connected clients: 'tools', 'resources', 'prompts' or 'all' (default).",
				InputSchema: objectSchema(map[string]interface{}{
					"notification_type": stringProp("Type of notification to send: tools, resources, prompts or all"),
				}),
			},
			Level:   auth.LevelAdministrative,
			Handler: ctrl.handleNotifyMenuUpdate,
		},
		{
			Tool: mcp.Tool{
				Name:        "refresh_menu_cache",
				Description: "Reload the menu data from the database, notify connected clients and report the refreshed catalog summary.",
				InputSchema: objectSchema(nil),
			},
			Level:   auth.LevelAdministrative,
			Handler: ctrl.handleRefreshMenuCache,
		},
	}
}

// objectSchema builds a JSON schema for an object with the given
// properties. Nil properties mean a tool without arguments.
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// stringArg reads an optional string argument; absence and null read as "".
func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// requiredStringArg reads a mandatory string argument.
func requiredStringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", models.NewValidationError(fmt.Sprintf("Missing required argument: %s", key))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", models.NewValidationError(fmt.Sprintf("Argument '%s' must be a non-empty string", key))
	}
	return s, nil
}

// intArg reads an optional integer argument. JSON numbers decode as
// float64, so that is the representation accepted.
func intArg(args map[string]interface{}, key string, fallback int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	n, ok := v.(float64)
	if !ok || n != float64(int(n)) {
		return 0, models.NewValidationError(fmt.Sprintf("Argument '%s' must be an integer", key))
	}
	return int(n), nil
}

// parseOrderItems re-marshals the raw items argument into typed order
// lines. The JSON round-trip keeps coercion identical to the rest of the
// wire surface.
func parseOrderItems(v interface{}) ([]services.OrderItemInput, error) {
	if v == nil {
		return nil, models.NewValidationError("Order must contain at least one item")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, models.NewValidationError("Invalid items payload")
	}
	var items []services.OrderItemInput
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, models.NewValidationError("Invalid items payload: " + err.Error())
	}
	return items, nil
}
