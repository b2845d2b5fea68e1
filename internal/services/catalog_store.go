package services

import (
	"context"
	"sync/atomic"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"gorm.io/gorm"
)

// CatalogStore is the persistence boundary for the catalog: pizzas,
// toppings, topping categories, store locations and offers. Load* methods
// return unfiltered entity sets for the cache to project; mutations run in
// their own transaction and bump the version counter so installed cache
// snapshots can detect staleness.
type CatalogStore interface {
	// Version returns the current mutation counter. It increases after
	// every committed catalog mutation and never decreases.
	Version() int64

	LoadPizzas(ctx context.Context) ([]models.Pizza, error)
	LoadToppings(ctx context.Context) ([]models.Topping, error)
	LoadCategories(ctx context.Context) ([]models.ToppingCategory, error)
	LoadLocations(ctx context.Context) ([]models.StoreLocation, error)
	LoadOffers(ctx context.Context) ([]models.Offer, error)
	// ToppingOrderCounts returns, per topping ID, the number of order lines
	// that included it.
	ToppingOrderCounts(ctx context.Context) (map[string]int64, error)

	CreatePizza(ctx context.Context, pizza *models.Pizza) error
	UpdatePizza(ctx context.Context, id string, pizza *models.Pizza) error
	DeletePizza(ctx context.Context, id string) error

	CreateTopping(ctx context.Context, topping *models.Topping) error
	UpdateTopping(ctx context.Context, id string, topping *models.Topping) error
	DeleteTopping(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, category *models.ToppingCategory) error
	UpdateCategory(ctx context.Context, id string, category *models.ToppingCategory) error
	// DeleteCategory nulls the category reference of every topping that
	// pointed at it before removing the row.
	DeleteCategory(ctx context.Context, id string) error

	CreateLocation(ctx context.Context, location *models.StoreLocation) error
	UpdateLocation(ctx context.Context, id string, location *models.StoreLocation) error
	// DeleteLocation removes the location together with its offers.
	DeleteLocation(ctx context.Context, id string) error

	CreateOffer(ctx context.Context, offer *models.Offer) error
	UpdateOffer(ctx context.Context, id string, offer *models.Offer) error
	DeleteOffer(ctx context.Context, id string) error
}

// gormCatalogStore is the gorm implementation of CatalogStore
type gormCatalogStore struct {
	db      *gorm.DB
	version atomic.Int64
}

// NewCatalogStore creates a new instance of CatalogStore
func NewCatalogStore(db *gorm.DB) CatalogStore {
	return &gormCatalogStore{db: db}
}

func (s *gormCatalogStore) Version() int64 {
	return s.version.Load()
}

// bump records one committed mutation.
func (s *gormCatalogStore) bump() {
	s.version.Add(1)
}

func (s *gormCatalogStore) LoadPizzas(ctx context.Context) ([]models.Pizza, error) {
	var pizzas []models.Pizza
	if err := s.db.WithContext(ctx).Find(&pizzas).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return pizzas, nil
}

func (s *gormCatalogStore) LoadToppings(ctx context.Context) ([]models.Topping, error) {
	var toppings []models.Topping
	if err := s.db.WithContext(ctx).Find(&toppings).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return toppings, nil
}

func (s *gormCatalogStore) LoadCategories(ctx context.Context) ([]models.ToppingCategory, error) {
	var categories []models.ToppingCategory
	if err := s.db.WithContext(ctx).Find(&categories).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return categories, nil
}

func (s *gormCatalogStore) LoadLocations(ctx context.Context) ([]models.StoreLocation, error) {
	var locations []models.StoreLocation
	if err := s.db.WithContext(ctx).Find(&locations).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return locations, nil
}

func (s *gormCatalogStore) LoadOffers(ctx context.Context) ([]models.Offer, error) {
	var offers []models.Offer
	if err := s.db.WithContext(ctx).Find(&offers).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return offers, nil
}

// ToppingOrderCounts walks the order line topping lists in Go instead of a
// JSON containment join, which keeps the query identical on sqlite and
// postgres.
func (s *gormCatalogStore) ToppingOrderCounts(ctx context.Context) (map[string]int64, error) {
	var items []models.OrderItem
	if err := s.db.WithContext(ctx).Select("toppings").Find(&items).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	counts := make(map[string]int64)
	for _, item := range items {
		for _, toppingID := range item.Toppings {
			counts[toppingID]++
		}
	}
	return counts, nil
}

// storeError normalizes a storage failure: already-typed errors pass
// through, a deadline becomes Timeout, anything else StoreUnavailable.
func storeError(ctx context.Context, err error) error {
	if apiErr, ok := models.AsAPIError(err); ok {
		return apiErr
	}
	if ctx.Err() == context.DeadlineExceeded {
		return models.NewAPIError(models.ErrTimeout, "Storage operation timed out")
	}
	return models.NewAPIError(models.ErrStoreUnavailable, "Storage unavailable: "+err.Error())
}
