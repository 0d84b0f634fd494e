package main

import (
	"context"
	"log"
	"time"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"
	"go-pos-engine/pkg/database"
	"go-pos-engine/pkg/jwt"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// seedOptions are read from SEED_* variables.
type seedOptions struct {
	TenantID uuid.UUID     `envconfig:"TENANT_ID"`
	Role     string        `envconfig:"ROLE" default:"owner"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

var demoProducts = []struct {
	sku, name, unit, price string
	stock                  int
}{
	{"MLK-500", "Fresh Milk 500ml", "packet", "60", 120},
	{"BRD-400", "White Bread 400g", "loaf", "65", 40},
	{"SGR-1KG", "Sugar 1kg", "pack", "180", 75},
	{"UGL-2KG", "Maize Flour 2kg", "pack", "210", 60},
	{"AIR-100", "Airtime 100", "item", "100", 500},
}

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	var opts seedOptions
	if err := envconfig.Process("SEED", &opts); err != nil {
		log.Fatalf("seed options: %v", err)
	}

	logger, err := logging.NewLogger("seed-catalog", cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	if !cfg.EnvFileLoaded {
		logger.Warn("no .env file found, relying on system environment variables")
	}

	// 2. Setup Database
	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	if opts.TenantID == uuid.Nil {
		opts.TenantID = uuid.New()
	}
	userID := uuid.New()

	// 3. Seed products
	products := repository.NewProductRepo(db)
	ctx := context.Background()
	for _, d := range demoProducts {
		p := &model.Product{
			TenantID: opts.TenantID,
			SKU:      d.sku,
			Name:     d.name,
			Stock:    d.stock,
			Unit:     d.unit,
			Price:    decimal.RequireFromString(d.price),
		}
		p.CreatedBy = userID.String()
		if err := products.Create(ctx, p); err != nil {
			logger.Fatal("failed to seed product", zap.String("sku", d.sku), zap.Error(err))
		}
		logger.Info("product seeded", zap.String("id", p.ID.String()), zap.String("sku", p.SKU), zap.Int("stock", p.Stock))
	}

	// 4. Issue a development token for the tenant
	role := opts.Role
	if role != access.RoleOwner && role != access.RoleManager && role != access.RoleCashier {
		logger.Fatal("unknown role", zap.String("role", role))
	}
	token, err := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer).GenerateToken(userID, opts.TenantID, "Seed User", role, opts.TokenTTL)
	if err != nil {
		logger.Fatal("failed to sign token", zap.Error(err))
	}

	logger.Info("catalog seeded",
		zap.String("tenant_id", opts.TenantID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", role),
		zap.String("token", token),
	)
}
