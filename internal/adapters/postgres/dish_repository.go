package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetByID retrieves a dish by its ID
func (r *dishRepository) GetByID(ctx context.Context, id string) (*core.Dish, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
	}

	var model DishModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get dish: %w", err)
	}
	return model.ToDomain(), nil
}

// List retrieves dishes ordered by category and name
func (r *dishRepository) List(ctx context.Context, onlyAvailable bool) ([]*core.Dish, error) {
	query := r.db.WithContext(ctx).Order("category, name")
	if onlyAvailable {
		query = query.Where("available = ?", true)
	}

	var models []DishModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list dishes: %w", err)
	}

	dishes := make([]*core.Dish, len(models))
	for i := range models {
		dishes[i] = models[i].ToDomain()
	}
	return dishes, nil
}

// Create stores a new dish and assigns its ID
func (r *dishRepository) Create(ctx context.Context, dish *core.Dish) error {
	if dish.ID == "" {
		dish.ID = uuid.New().String()
	}
	model := DishModelFromDomain(dish)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create dish: %w", err)
	}
	dish.UpdatedAt = model.UpdatedAt
	return nil
}

// Update overwrites the editable fields of a dish
func (r *dishRepository) Update(ctx context.Context, dish *core.Dish) error {
	model := DishModelFromDomain(dish)
	result := r.db.WithContext(ctx).Model(&DishModel{}).
		Where("id = ?", dish.ID).
		Updates(map[string]interface{}{
			"name":        model.Name,
			"description": model.Description,
			"price":       model.Price,
			"category":    model.Category,
			"available":   model.Available,
			"image_url":   model.ImageURL,
			"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update dish: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dish %s: %w", dish.ID, core.ErrNotFound)
	}
	return nil
}

// Delete hard-deletes a dish; order items keep their snapshots
func (r *dishRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
	}

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&DishModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete dish: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
	}
	return nil
}
