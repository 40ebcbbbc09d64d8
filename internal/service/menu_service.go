package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MenuService handles the dish catalog
type MenuService struct {
	dishes    core.DishRepository
	images    core.ObjectStore
	publisher events.Publisher
	now       func() time.Time
	log       *zap.Logger
}

// DishInput is the admin form for creating or editing a dish
type DishInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Available   bool            `json:"available"`
	ImageURL    string          `json:"image_url"`
}

// MenuCategory groups available dishes for the customer menu
type MenuCategory struct {
	Category string       `json:"category"`
	Dishes   []*core.Dish `json:"dishes"`
}

// NewMenuService creates a new menu service
func NewMenuService(dishes core.DishRepository, images core.ObjectStore, publisher events.Publisher, log *zap.Logger) *MenuService {
	return &MenuService{
		dishes:    dishes,
		images:    images,
		publisher: publisher,
		now:       time.Now,
		log:       logger.Component(log, "menu_service"),
	}
}

// AvailableMenu returns available dishes grouped by category, categories and names ascending
func (s *MenuService) AvailableMenu(ctx context.Context) ([]MenuCategory, error) {
	dishes, err := s.dishes.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}

	sort.SliceStable(dishes, func(i, j int) bool {
		if dishes[i].Category != dishes[j].Category {
			return dishes[i].Category < dishes[j].Category
		}
		return dishes[i].Name < dishes[j].Name
	})

	menu := make([]MenuCategory, 0)
	for _, dish := range dishes {
		if n := len(menu); n > 0 && menu[n-1].Category == dish.Category {
			menu[n-1].Dishes = append(menu[n-1].Dishes, dish)
			continue
		}
		menu = append(menu, MenuCategory{Category: dish.Category, Dishes: []*core.Dish{dish}})
	}
	return menu, nil
}

// ListDishes returns the full catalog for the admin view
func (s *MenuService) ListDishes(ctx context.Context) ([]*core.Dish, error) {
	return s.dishes.List(ctx, false)
}

// GetDish retrieves a dish by id
func (s *MenuService) GetDish(ctx context.Context, id string) (*core.Dish, error) {
	return s.dishes.GetByID(ctx, id)
}

// CreateDish validates and stores a new dish. An image is required.
func (s *MenuService) CreateDish(ctx context.Context, input DishInput) (*core.Dish, error) {
	input = normalizeDishInput(input)
	if err := validateDishInput(input); err != nil {
		return nil, err
	}
	if input.ImageURL == "" {
		return nil, fmt.Errorf("%w: image is required for a new dish", core.ErrValidation)
	}

	dish := &core.Dish{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Available:   input.Available,
		ImageURL:    input.ImageURL,
		UpdatedAt:   s.now(),
	}
	if err := s.dishes.Create(ctx, dish); err != nil {
		return nil, fmt.Errorf("failed to create dish: %w", err)
	}

	s.log.Info("dish created", zap.String("dish_id", dish.ID), zap.String("name", dish.Name))
	return dish, nil
}

// UpdateDish edits an existing dish. The image is replaced only when a new one is given.
func (s *MenuService) UpdateDish(ctx context.Context, id string, input DishInput) (*core.Dish, error) {
	input = normalizeDishInput(input)
	if err := validateDishInput(input); err != nil {
		return nil, err
	}

	dish, err := s.dishes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dish.Name = input.Name
	dish.Description = input.Description
	dish.Price = input.Price
	dish.Category = input.Category
	dish.Available = input.Available
	if input.ImageURL != "" {
		dish.ImageURL = input.ImageURL
	}
	dish.UpdatedAt = s.now()

	if err := s.dishes.Update(ctx, dish); err != nil {
		return nil, fmt.Errorf("failed to update dish: %w", err)
	}

	s.log.Info("dish updated", zap.String("dish_id", dish.ID))
	return dish, nil
}

// DeleteDish removes a dish. Past orders keep their own name and price snapshots.
func (s *MenuService) DeleteDish(ctx context.Context, id string) error {
	if err := s.dishes.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("dish deleted", zap.String("dish_id", id))
	return nil
}

// UploadImage stores a dish picture under menu/<unix-millis>_<name> and returns its public URL.
// Progress is published to the admin feed as it is written.
func (s *MenuService) UploadImage(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: file name is required", core.ErrValidation)
	}
	if size <= 0 {
		return "", fmt.Errorf("%w: file is empty", core.ErrValidation)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %q is not an image", core.ErrValidation, contentType)
	}

	objectPath := fmt.Sprintf("menu/%d_%s", s.now().UnixMilli(), name)
	url, err := s.images.Put(ctx, objectPath, r, size, contentType, func(p core.UploadProgress) {
		if s.publisher == nil {
			return
		}
		if err := s.publisher.Publish(ctx, events.NewUploadProgress(p)); err != nil {
			s.log.Debug("failed to publish upload progress", zap.Error(err))
		}
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.log.Info("image uploaded", zap.String("path", objectPath), zap.Int64("bytes", size))
	return url, nil
}

func normalizeDishInput(in DishInput) DishInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Price = in.Price.Round(2)
	return in
}

func validateDishInput(in DishInput) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", core.ErrValidation)
	case in.Category == "":
		return fmt.Errorf("%w: category is required", core.ErrValidation)
	case !in.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than 0", core.ErrValidation)
	}
	return nil
}
