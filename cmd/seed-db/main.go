package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/fulfillment/internal/domain/auth"
	"github.com/xenking/fulfillment/internal/domain/offer"
	"github.com/xenking/fulfillment/internal/domain/product"
	"github.com/xenking/fulfillment/internal/domain/user"
	"github.com/xenking/fulfillment/internal/repository"
)

type productJSON struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
	userEmail    string
	userPassword string
	offerDays    int
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or FULFILLMENT_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FULFILLMENT_API_KEY_PEPPER env)")
	flag.StringVar(&opts.userEmail, "user-email", "demo@example.com", "email of the demo user")
	flag.StringVar(&opts.userPassword, "user-password", "", "password of the demo user (or FULFILLMENT_SEED_USER_PASSWORD env)")
	flag.IntVar(&opts.offerDays, "offer-days", 365, "validity of the seeded offers in days")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.apiKey = orEnv(opts.apiKey, "FULFILLMENT_SEED_API_KEY")
	opts.apiKeyPepper = orEnv(opts.apiKeyPepper, "FULFILLMENT_API_KEY_PEPPER")
	opts.userPassword = orEnv(opts.userPassword, "FULFILLMENT_SEED_USER_PASSWORD")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or FULFILLMENT_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.userPassword == "" {
		slog.Error("demo user password is required: set --user-password or FULFILLMENT_SEED_USER_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
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

	// Everything is seeded atomically so a failed run leaves no partial catalog.
	return repository.NewTransactor(pool).InTx(ctx, func(ctx context.Context) error {
		if err := seedProducts(ctx, repository.NewProductRepository(pool), opts.productsFile); err != nil {
			return errors.Wrap(err, "seed products")
		}
		if err := seedOffers(ctx, repository.NewOfferRepository(pool), opts.offerDays, time.Now()); err != nil {
			return errors.Wrap(err, "seed offers")
		}
		if err := seedUser(ctx, repository.NewUserRepository(pool), opts.userEmail, opts.userPassword); err != nil {
			return errors.Wrap(err, "seed user")
		}
		if err := seedAPIKey(ctx, pool, opts.apiKey, opts.apiKeyPepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
		return nil
	})
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, raw := range products {
		p, err := product.New(raw.ID, raw.Name, raw.Price, product.Category(raw.Category))
		if err != nil {
			return errors.Wrapf(err, "product %d", raw.ID)
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}

		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedOffers(ctx context.Context, repo *repository.OfferRepository, days int, now time.Time) error {
	slog.Info("seeding offers")

	seeds := []struct {
		id    int64
		typ   offer.DiscountType
		value decimal.Decimal
	}{
		{id: 1, typ: offer.DiscountPercentage, value: decimal.NewFromInt(10)},
		{id: 2, typ: offer.DiscountAmount, value: decimal.RequireFromString("5.00")},
	}

	for _, s := range seeds {
		o, err := offer.NewExpiringIn(s.id, s.typ, s.value, days, now)
		if err != nil {
			return errors.Wrapf(err, "offer %d", s.id)
		}
		if err := repo.Upsert(ctx, o); err != nil {
			return errors.Wrapf(err, "upsert offer %d", o.ID)
		}

		slog.Info("upserted offer",
			slog.Int64("id", o.ID),
			slog.String("discount_type", string(o.DiscountType)),
			slog.String("discount_value", o.DiscountValue.String()),
			slog.Time("end_date", o.EndDate),
		)
	}

	return nil
}

func seedUser(ctx context.Context, repo *repository.UserRepository, email, password string) error {
	slog.Info("seeding demo user", slog.String("email", email))

	// Validate the plain password before it is replaced by its hash.
	u, err := user.New(uuid.New(), "Demo User", email, 30, user.GenderOther, "+10000000000", password)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	u.Password = string(hash)

	id, err := repo.Upsert(ctx, u)
	if err != nil {
		return errors.Wrap(err, "upsert demo user")
	}

	slog.Info("upserted demo user", slog.String("id", id.String()), slog.String("email", email))

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	const name = "Default test key"
	id, err := repository.NewAPIKeyRepository(pool).Upsert(ctx, auth.HashKey(apiKey, []byte(pepper)), name, auth.DefaultScopes)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", id), slog.String("name", name))

	return nil
}
