package database

import (
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"gorm.io/gorm"
)

// SeedIfEmpty populates the catalog with the initial menu when the pizzas
// table is empty. Seeding runs in a single transaction so an interrupted
// start never leaves a partial menu behind.
func SeedIfEmpty(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Pizza{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Info("Database already seeded with initial data")
		return nil
	}

	log.Info("Database is empty, seeding initial data")
	err := db.Transaction(func(tx *gorm.DB) error {
		categoryIDs, err := seedToppingCategories(tx)
		if err != nil {
			return err
		}
		if err := seedToppings(tx, categoryIDs); err != nil {
			return err
		}
		if err := seedPizzas(tx); err != nil {
			return err
		}
		locationID, err := seedStoreLocations(tx)
		if err != nil {
			return err
		}
		if err := seedOffers(tx, locationID); err != nil {
			return err
		}
		return seedUsers(tx)
	})
	if err != nil {
		return err
	}
	log.Info("Database seeded successfully")
	return nil
}

func seedToppingCategories(tx *gorm.DB) (map[string]string, error) {
	categories := []models.ToppingCategory{
		{Name: "Meats", Description: "Premium meat toppings"},
		{Name: "Vegetables", Description: "Fresh vegetable toppings"},
		{Name: "Cheeses", Description: "Artisan cheese selections"},
		{Name: "Sauces", Description: "Signature sauces"},
		{Name: "Premium", Description: "Premium specialty toppings"},
	}
	ids := make(map[string]string, len(categories))
	for i := range categories {
		if err := tx.Create(&categories[i]).Error; err != nil {
			return nil, err
		}
		ids[categories[i].Name] = categories[i].ID
	}
	return ids, nil
}

func seedToppings(tx *gorm.DB, categoryIDs map[string]string) error {
	entries := []struct {
		name     string
		category string
		price    float64
	}{
		{"Pepperoni", "Meats", 1.50},
		{"Italian Sausage", "Meats", 1.75},
		{"Bacon", "Meats", 2.00},
		{"Ham", "Meats", 1.50},
		{"Grilled Chicken", "Meats", 2.25},
		{"Mushrooms", "Vegetables", 1.00},
		{"Green Peppers", "Vegetables", 0.75},
		{"Red Onions", "Vegetables", 0.75},
		{"Black Olives", "Vegetables", 1.00},
		{"Jalapeños", "Vegetables", 0.75},
		{"Pineapple", "Vegetables", 1.00},
		{"Spinach", "Vegetables", 1.00},
		{"Extra Mozzarella", "Cheeses", 1.50},
		{"Parmesan", "Cheeses", 1.25},
		{"Feta Cheese", "Cheeses", 1.50},
		{"Extra Marinara", "Sauces", 0.50},
		{"BBQ Sauce", "Sauces", 0.75},
		{"Pesto", "Sauces", 1.25},
		{"Truffle Oil", "Premium", 3.00},
		{"Prosciutto", "Premium", 3.50},
		{"Fresh Basil", "Premium", 1.00},
	}
	for _, e := range entries {
		categoryID := categoryIDs[e.category]
		topping := models.Topping{
			Name:        e.name,
			CategoryID:  &categoryID,
			Price:       e.price,
			IsAvailable: true,
		}
		if err := tx.Create(&topping).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedPizzas(tx *gorm.DB) error {
	pizzas := []models.Pizza{
		{
			Name:            "Margherita",
			Description:     "Classic tomato sauce, fresh mozzarella, and basil",
			Sizes:           map[string]float64{"small": 9.99, "medium": 12.99, "large": 15.99, "extra-large": 18.99},
			IsAvailable:     true,
			PopularityScore: 95,
		},
		{
			Name:            "Pepperoni",
			Description:     "Loaded with premium pepperoni and melted mozzarella",
			Sizes:           map[string]float64{"small": 10.99, "medium": 13.99, "large": 16.99, "extra-large": 19.99},
			IsAvailable:     true,
			PopularityScore: 100,
		},
		{
			Name:            "Hawaiian",
			Description:     "Ham, pineapple, and mozzarella - a tropical delight",
			Sizes:           map[string]float64{"small": 11.99, "medium": 14.99, "large": 17.99, "extra-large": 20.99},
			IsAvailable:     true,
			PopularityScore: 75,
		},
		{
			Name:            "Supreme",
			Description:     "Pepperoni, sausage, mushrooms, peppers, onions, and olives",
			Sizes:           map[string]float64{"small": 12.99, "medium": 15.99, "large": 18.99, "extra-large": 21.99},
			IsAvailable:     true,
			PopularityScore: 90,
		},
		{
			Name:            "BBQ Chicken",
			Description:     "Grilled chicken, BBQ sauce, red onions, and cilantro",
			Sizes:           map[string]float64{"small": 12.99, "medium": 15.99, "large": 18.99, "extra-large": 21.99},
			IsAvailable:     true,
			PopularityScore: 85,
		},
		{
			Name:            "Meat Lovers",
			Description:     "Pepperoni, sausage, bacon, ham, and meatballs",
			Sizes:           map[string]float64{"small": 13.99, "medium": 16.99, "large": 19.99, "extra-large": 22.99},
			IsAvailable:     true,
			PopularityScore: 88,
		},
		{
			Name:            "Veggie Delight",
			Description:     "Mushrooms, peppers, onions, tomatoes, olives, and spinach",
			Sizes:           map[string]float64{"small": 11.99, "medium": 14.99, "large": 17.99, "extra-large": 20.99},
			IsAvailable:     true,
			PopularityScore: 70,
		},
		{
			Name:            "Four Cheese",
			Description:     "Mozzarella, parmesan, ricotta, and gorgonzola",
			Sizes:           map[string]float64{"small": 11.99, "medium": 14.99, "large": 17.99, "extra-large": 20.99},
			IsAvailable:     true,
			PopularityScore: 80,
		},
	}
	for i := range pizzas {
		if err := tx.Create(&pizzas[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedStoreLocations(tx *gorm.DB) (string, error) {
	weekHours := func(weekday, friday, saturday, sunday string) map[string]string {
		return map[string]string{
			"monday": weekday, "tuesday": weekday, "wednesday": weekday,
			"thursday": weekday, "friday": friday, "saturday": saturday, "sunday": sunday,
		}
	}
	locations := []models.StoreLocation{
		{
			Name: "ABC Pizza - Times Square", Address: "1500 Broadway",
			City: "New York", State: "NY", ZipCode: "10036", Country: "USA",
			Latitude: floatPtr(40.7580), Longitude: floatPtr(-73.9855),
			Phone: "(212) 555-0100",
			Hours: weekHours("10:00-23:00", "10:00-24:00", "10:00-24:00", "11:00-22:00"),
			IsActive: true,
		},
		{
			Name: "ABC Pizza - Brooklyn Heights", Address: "120 Montague Street",
			City: "New York", State: "NY", ZipCode: "11201", Country: "USA",
			Latitude: floatPtr(40.6934), Longitude: floatPtr(-73.9917),
			Phone: "(718) 555-0101",
			Hours: weekHours("11:00-22:00", "11:00-23:00", "11:00-23:00", "12:00-21:00"),
			IsActive: true,
		},
		{
			Name: "ABC Pizza - Downtown LA", Address: "800 S Figueroa St",
			City: "Los Angeles", State: "CA", ZipCode: "90017", Country: "USA",
			Latitude: floatPtr(34.0472), Longitude: floatPtr(-118.2618),
			Phone: "(213) 555-0102",
			Hours: weekHours("10:00-22:00", "10:00-23:00", "10:00-23:00", "11:00-21:00"),
			IsActive: true,
		},
		{
			Name: "ABC Pizza - Chicago Loop", Address: "233 S Wacker Dr",
			City: "Chicago", State: "IL", ZipCode: "60606", Country: "USA",
			Latitude: floatPtr(41.8789), Longitude: floatPtr(-87.6359),
			Phone: "(312) 555-0104",
			Hours: weekHours("10:00-22:00", "10:00-23:00", "10:00-23:00", "11:00-21:00"),
			IsActive: true,
		},
	}
	for i := range locations {
		if err := tx.Create(&locations[i]).Error; err != nil {
			return "", err
		}
	}
	// First location backs the city-specific offer
	return locations[0].ID, nil
}

func seedOffers(tx *gorm.DB, locationID string) error {
	now := time.Now().UTC()
	offers := []models.Offer{
		{
			Title:         "Welcome Offer - 20% Off First Order",
			Description:   "New customers get 20% off their first pizza order!",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: 20.0,
			Code:          strPtr("WELCOME20"),
			ValidFrom:     now,
			ValidUntil:    timePtr(now.AddDate(1, 0, 0)),
			IsActive:      true,
		},
		{
			Title:          "Family Deal - $10 Off Orders Over $50",
			Description:    "Get $10 off when you order $50 or more",
			DiscountType:   models.DiscountFixed,
			DiscountValue:  10.0,
			MinOrderAmount: 50.0,
			Code:           strPtr("FAMILY10"),
			ValidFrom:      now,
			ValidUntil:     timePtr(now.AddDate(0, 3, 0)),
			IsActive:       true,
		},
		{
			Title:         "Weekend Special - Buy One Get One Free",
			Description:   "Order one large pizza, get the second one free! Valid on weekends only.",
			DiscountType:  models.DiscountBuyOneGetOne,
			DiscountValue: 100.0,
			Code:          strPtr("BOGO"),
			ValidFrom:     now,
			ValidUntil:    timePtr(now.AddDate(0, 1, 0)),
			IsActive:      true,
		},
		{
			LocationID:    &locationID,
			Title:         "New York Special - 15% Off",
			Description:   "Exclusive offer for our New York customers!",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: 15.0,
			Code:          strPtr("NEWYORK15"),
			ValidFrom:     now,
			ValidUntil:    timePtr(now.AddDate(0, 2, 0)),
			IsActive:      true,
		},
	}
	for i := range offers {
		if err := tx.Create(&offers[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedUsers(tx *gorm.DB) error {
	users := []models.User{
		{ID: "U123", Name: "John Doe", Email: "john@example.com", LocationCity: "New York"},
		{ID: "U456", Name: "Jane Smith", Email: "jane@example.com", LocationCity: "Los Angeles"},
		{ID: "U789", Name: "Bob Johnson", Email: "bob@example.com", LocationCity: "Chicago"},
	}
	for i := range users {
		if err := tx.Create(&users[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func strPtr(s string) *string        { return &s }
func floatPtr(f float64) *float64    { return &f }
func timePtr(t time.Time) *time.Time { return &t }
