package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/db"
	"github.com/xenking/medcart/internal/domain/auth"
	"github.com/xenking/medcart/internal/domain/catalog"
	"github.com/xenking/medcart/internal/domain/coupon"
	"github.com/xenking/medcart/internal/handler"
	"github.com/xenking/medcart/internal/repository"
)

type medicineJSON struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Price                decimal.Decimal     `json:"price"`
	MRP                  decimal.NullDecimal `json:"mrp"`
	Category             string              `json:"category"`
	Manufacturer         string              `json:"manufacturer"`
	RequiresPrescription bool                `json:"requiresPrescription"`
	ImageURL             string              `json:"imageUrl"`
	InStock              *bool               `json:"inStock"`
}

type options struct {
	databaseURL   string
	medicinesFile string
	userKey       string
	adminKey      string
	pepper        string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.medicinesFile, "medicines-file", "", "path to medicines JSON file (embedded catalog when empty)")
	flag.StringVar(&opts.userKey, "api-key", "", "shopper access token to seed (or MEDCART_SEED_API_KEY env)")
	flag.StringVar(&opts.adminKey, "admin-key", "", "back-office access token to seed (or MEDCART_SEED_ADMIN_KEY env)")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for token hashing (or MEDCART_API_KEY_PEPPER env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.userKey == "" {
		opts.userKey = os.Getenv("MEDCART_SEED_API_KEY")
	}
	if opts.userKey == "" {
		slog.Error("API key is required: set --api-key or MEDCART_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.adminKey == "" {
		opts.adminKey = os.Getenv("MEDCART_SEED_ADMIN_KEY")
	}
	if opts.pepper == "" {
		opts.pepper = os.Getenv("MEDCART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMedicines(ctx, pool, opts.medicinesFile); err != nil {
		return errors.Wrap(err, "seed medicines")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKeys(ctx, pool, opts); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedMedicines(ctx context.Context, pool *pgxpool.Pool, path string) error {
	data := db.Medicines
	if path != "" {
		slog.Info("reading medicines file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return errors.Wrap(err, "read medicines file")
		}
	}

	var medicines []medicineJSON
	if err := json.Unmarshal(data, &medicines); err != nil {
		return errors.Wrap(err, "parse medicines JSON")
	}

	slog.Info("upserting medicines", slog.Int("count", len(medicines)))

	repo := repository.NewMedicineRepository(pool)
	for _, m := range medicines {
		inStock := m.InStock == nil || *m.InStock
		if err := repo.Upsert(ctx, catalog.Medicine{
			ID:                   m.ID,
			Name:                 m.Name,
			Price:                m.Price,
			MRP:                  m.MRP,
			Category:             m.Category,
			Manufacturer:         m.Manufacturer,
			RequiresPrescription: m.RequiresPrescription,
			ImageURL:             m.ImageURL,
			InStock:              inStock,
		}); err != nil {
			return errors.Wrapf(err, "upsert medicine %s", m.ID)
		}

		slog.Info("upserted medicine", slog.String("id", m.ID), slog.String("name", m.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding storefront coupons")

	repo := repository.NewCouponRepository(pool)
	for _, rule := range coupon.DefaultRules() {
		if err := repo.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rule.Code)
		}

		slog.Info("upserted coupon", slog.String("code", rule.Code), slog.String("description", rule.Description))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, opts options) error {
	slog.Info("seeding access tokens")

	pepper := []byte(opts.pepper)
	keys := []auth.APIKeyInfo{{
		ID:      "default",
		KeyHash: handler.HashToken(pepper, opts.userKey),
		Name:    "Default shopper",
		UserID:  "demo-user",
		Email:   "demo@medcart.local",
		Phone:   "+910000000000",
		Scopes:  []string{auth.ScopeShop},
	}}
	if opts.adminKey != "" {
		keys = append(keys, auth.APIKeyInfo{
			ID:      "admin",
			KeyHash: handler.HashToken(pepper, opts.adminKey),
			Name:    "Back office",
			UserID:  "back-office",
			Scopes:  []string{auth.ScopeShop, auth.ScopeOrdersAdmin},
		})
	}

	repo := repository.NewAPIKeyRepository(pool)
	for _, k := range keys {
		if err := repo.Upsert(ctx, k); err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.ID)
		}

		slog.Info("upserted API key", slog.String("id", k.ID), slog.String("name", k.Name))
	}

	return nil
}
