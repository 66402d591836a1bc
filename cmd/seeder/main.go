// cmd/seeder/main.go
// 向库存表写入演示商品，幂等：重复运行只刷新库存数量。
package main

import (
	"context"

	"orderflow/internal/pkg/config"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/inventory/domain"
	"orderflow/internal/service/inventory/infrastructure"
)

var products = []domain.Product{
	{ProductID: "prod_1", Name: "Mechanical Keyboard", Stock: 100},
	{ProductID: "prod_2", Name: "Wireless Mouse", Stock: 250},
	{ProductID: "prod_3", Name: "4K Monitor", Stock: 40},
	{ProductID: "prod_4", Name: "USB-C Dock", Stock: 75},
	{ProductID: "prod_lux", Name: "Workstation Bundle", Stock: 10},
}

func main() {
	logger.Init("seeder")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to load config")
	}

	db, err := database.Open(cfg.MySQL.DSN)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to open database")
	}
	repo, err := infrastructure.NewGormProductRepository(db)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to migrate products table")
	}

	for i := range products {
		if err := repo.Upsert(ctx, &products[i]); err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Str("product_id", products[i].ProductID).Msg("Seed failed")
		}
		logger.Ctx(ctx).Info().
			Str("product_id", products[i].ProductID).
			Int("stock", products[i].Stock).
			Msg("Product seeded")
	}
	logger.Ctx(ctx).Info().Int("count", len(products)).Msg("✅ Seeding complete")
}
