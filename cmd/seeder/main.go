package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/dumu-tech/restaurant-orders/internal/config"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MenuItem represents a dish in the seed data JSON
type MenuItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
}

// MenuData holds the dishes to be seeded
var MenuData = []byte(`[
  { "name": "Beef Empanada", "description": "Hand-cut beef, onion and olives", "price": 3.50, "category": "Starters" },
  { "name": "Cheese Empanada", "description": "Mozzarella and oregano", "price": 3.20, "category": "Starters" },
  { "name": "Garlic Prawns", "description": "Sizzling in olive oil and chilli", "price": 9.80, "category": "Starters" },
  { "name": "Caesar Salad", "description": "Romaine, croutons, parmesan", "price": 7.50, "category": "Salads" },
  { "name": "Caprese Salad", "description": "Tomato, mozzarella, basil", "price": 7.90, "category": "Salads" },
  { "name": "Grilled Ribeye", "description": "300g with chimichurri", "price": 24.00, "category": "Mains" },
  { "name": "Chicken Milanese", "description": "Breaded breast with fries", "price": 14.50, "category": "Mains" },
  { "name": "Mushroom Risotto", "description": "Arborio rice, porcini, parmesan", "price": 13.90, "category": "Mains" },
  { "name": "Margherita Pizza", "description": "Tomato, mozzarella, basil", "price": 11.00, "category": "Pizza" },
  { "name": "Pepperoni Pizza", "description": "Tomato, mozzarella, pepperoni", "price": 12.50, "category": "Pizza" },
  { "name": "Flan", "description": "Caramel custard with dulce de leche", "price": 5.00, "category": "Desserts" },
  { "name": "Chocolate Lava Cake", "description": "Served with vanilla ice cream", "price": 6.50, "category": "Desserts" },
  { "name": "Lemonade", "description": "Fresh mint and ginger", "price": 3.00, "category": "Drinks" },
  { "name": "Sparkling Water", "description": "500ml", "price": 2.00, "category": "Drinks" }
]`)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	var menuItems []MenuItem
	if err := json.Unmarshal(MenuData, &menuItems); err != nil {
		log.Fatal("failed to parse menu data", zap.Error(err))
	}

	if len(menuItems) == 0 {
		log.Info("menu data is empty, nothing to seed")
		return
	}

	// Placeholder picture for seeded dishes; admins replace it through the dashboard
	imageURL := os.Getenv("SEED_IMAGE_URL")

	ctx := context.Background()
	inserted := 0
	updated := 0

	// Upsert dishes (update if exists by name, insert if not)
	for _, item := range menuItems {
		var existingID string
		result := db.WithContext(ctx).Table("dishes").
			Select("id").
			Where("name = ?", item.Name).
			Limit(1).
			Scan(&existingID)

		if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
			log.Fatal("failed to check existing dish", zap.String("name", item.Name), zap.Error(result.Error))
		}

		if existingID != "" {
			if err := db.WithContext(ctx).Table("dishes").
				Where("id = ?", existingID).
				Updates(map[string]interface{}{
					"description": item.Description,
					"price":       item.Price.Round(2),
					"category":    item.Category,
					"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
				}).Error; err != nil {
				log.Fatal("failed to update dish", zap.String("name", item.Name), zap.Error(err))
			}
			updated++
			continue
		}

		dish := map[string]interface{}{
			"id":          uuid.New().String(),
			"name":        item.Name,
			"description": item.Description,
			"price":       item.Price.Round(2),
			"category":    item.Category,
			"available":   true,
		}
		if imageURL != "" {
			dish["image_url"] = imageURL
		}
		if err := db.WithContext(ctx).Table("dishes").Create(dish).Error; err != nil {
			log.Fatal("failed to insert dish", zap.String("name", item.Name), zap.Error(err))
		}
		inserted++
	}

	log.Info("seeder completed",
		zap.Int("processed", len(menuItems)),
		zap.Int("inserted", inserted),
		zap.Int("updated", updated))
}
