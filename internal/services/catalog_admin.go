package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"gorm.io/gorm"
)

// Administrative catalog mutations. Every mutation validates its input,
// runs in one transaction and bumps the store version on commit so cache
// snapshots built before it are recognizably stale.

func (s *gormCatalogStore) CreatePizza(ctx context.Context, pizza *models.Pizza) error {
	if err := validatePizza(pizza); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(pizza).Error; err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) UpdatePizza(ctx context.Context, id string, pizza *models.Pizza) error {
	if err := validatePizza(pizza); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Pizza
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Pizza", id)
			}
			return err
		}
		pizza.ID = id
		return tx.Save(pizza).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) DeletePizza(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Pizza{}, "id = ?", id)
	if res.Error != nil {
		return storeError(ctx, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Pizza", id)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) CreateTopping(ctx context.Context, topping *models.Topping) error {
	if err := validateTopping(topping); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategoryRef(tx, topping.CategoryID); err != nil {
			return err
		}
		return tx.Create(topping).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) UpdateTopping(ctx context.Context, id string, topping *models.Topping) error {
	if err := validateTopping(topping); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Topping
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Topping", id)
			}
			return err
		}
		if err := checkCategoryRef(tx, topping.CategoryID); err != nil {
			return err
		}
		topping.ID = id
		return tx.Save(topping).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) DeleteTopping(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Topping{}, "id = ?", id)
	if res.Error != nil {
		return storeError(ctx, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Topping", id)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) CreateCategory(ctx context.Context, category *models.ToppingCategory) error {
	if category.Name == "" {
		return models.NewValidationError("Category name is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ToppingCategory{}).Where("name = ?", category.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.NewAPIError(models.ErrConflict, fmt.Sprintf("Category %q already exists", category.Name))
		}
		return tx.Create(category).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) UpdateCategory(ctx context.Context, id string, category *models.ToppingCategory) error {
	if category.Name == "" {
		return models.NewValidationError("Category name is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ToppingCategory
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Category", id)
			}
			return err
		}
		var count int64
		if err := tx.Model(&models.ToppingCategory{}).Where("name = ? AND id <> ?", category.Name, id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.NewAPIError(models.ErrConflict, fmt.Sprintf("Category %q already exists", category.Name))
		}
		category.ID = id
		return tx.Save(category).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

// DeleteCategory nulls out topping references inside the same transaction.
// The SET NULL action is executed explicitly so sqlite behaves like
// postgres regardless of foreign key enforcement.
func (s *gormCatalogStore) DeleteCategory(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ToppingCategory
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Category", id)
			}
			return err
		}
		if err := tx.Model(&models.Topping{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ToppingCategory{}, "id = ?", id).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) CreateLocation(ctx context.Context, location *models.StoreLocation) error {
	if err := validateLocation(location); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(location).Error; err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) UpdateLocation(ctx context.Context, id string, location *models.StoreLocation) error {
	if err := validateLocation(location); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.StoreLocation
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Location", id)
			}
			return err
		}
		location.ID = id
		return tx.Save(location).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

// DeleteLocation removes dependent offers inside the same transaction; the
// cascade is explicit for the same driver-parity reason as DeleteCategory.
func (s *gormCatalogStore) DeleteLocation(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.StoreLocation
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Location", id)
			}
			return err
		}
		if err := tx.Delete(&models.Offer{}, "location_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.StoreLocation{}, "id = ?", id).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) CreateOffer(ctx context.Context, offer *models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkLocationRef(tx, offer.LocationID); err != nil {
			return err
		}
		return tx.Create(offer).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) UpdateOffer(ctx context.Context, id string, offer *models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Offer
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Offer", id)
			}
			return err
		}
		if err := checkLocationRef(tx, offer.LocationID); err != nil {
			return err
		}
		offer.ID = id
		return tx.Save(offer).Error
	})
	if err != nil {
		return storeError(ctx, err)
	}
	s.bump()
	return nil
}

func (s *gormCatalogStore) DeleteOffer(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Offer{}, "id = ?", id)
	if res.Error != nil {
		return storeError(ctx, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Offer", id)
	}
	s.bump()
	return nil
}

func validatePizza(pizza *models.Pizza) error {
	if pizza.Name == "" {
		return models.NewValidationError("Pizza name is required")
	}
	for _, size := range models.RequiredSizes {
		if _, ok := pizza.Sizes[size]; !ok {
			return models.NewValidationError(fmt.Sprintf("Pizza sizes must include %q", size),
				map[string]interface{}{"missing_size": size})
		}
	}
	for size, price := range pizza.Sizes {
		if price < 0 {
			return models.NewValidationError(fmt.Sprintf("Negative price for size %q", size),
				map[string]interface{}{"size": size})
		}
	}
	if pizza.PopularityScore < 0 {
		return models.NewValidationError("Popularity score must be non-negative")
	}
	return nil
}

func validateTopping(topping *models.Topping) error {
	if topping.Name == "" {
		return models.NewValidationError("Topping name is required")
	}
	if topping.Price < 0 {
		return models.NewValidationError("Topping price must be non-negative")
	}
	return nil
}

func validateLocation(location *models.StoreLocation) error {
	if location.Name == "" {
		return models.NewValidationError("Location name is required")
	}
	if location.City == "" {
		return models.NewValidationError("Location city is required")
	}
	return nil
}

func validateOffer(offer *models.Offer) error {
	if offer.Title == "" {
		return models.NewValidationError("Offer title is required")
	}
	if !offer.DiscountType.Valid() {
		return models.NewValidationError(fmt.Sprintf("Unknown discount type %q", offer.DiscountType))
	}
	if offer.DiscountValue < 0 {
		return models.NewValidationError("Discount value must be non-negative")
	}
	if offer.MinOrderAmount < 0 {
		return models.NewValidationError("Minimum order amount must be non-negative")
	}
	if offer.ValidUntil != nil && !offer.ValidFrom.IsZero() && offer.ValidUntil.Before(offer.ValidFrom) {
		return models.NewValidationError("Offer validity window ends before it starts")
	}
	return nil
}

func checkCategoryRef(tx *gorm.DB, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.ToppingCategory{}).Where("id = ?", *categoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewValidationError("Unknown topping category", map[string]interface{}{"category_id": *categoryID})
	}
	return nil
}

func checkLocationRef(tx *gorm.DB, locationID *string) error {
	if locationID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.StoreLocation{}).Where("id = ?", *locationID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewValidationError("Unknown store location", map[string]interface{}{"location_id": *locationID})
	}
	return nil
}
