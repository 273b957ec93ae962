package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/checkout"
	"github.com/auroramart/storefront/internal/config"
	"github.com/auroramart/storefront/internal/currency"
	"github.com/auroramart/storefront/internal/notify"
	"github.com/auroramart/storefront/internal/recommend"
	"github.com/auroramart/storefront/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to ping redis: %v", err)
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			t.Logf("Failed to close redis client: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return rdb, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

func newTestEngine(db *sql.DB, carts *cart.Store) *checkout.Engine {
	return checkout.NewEngine(db, carts,
		currency.NewConverter(currency.DefaultRates()),
		recommend.None{},
		notify.Noop{},
		config.PricingConfig{
			ShippingFlatFee: mustDecimal("5.00"),
			TaxPercent:      mustDecimal("8"),
		})
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedCustomer(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	customer, err := store.CreateCustomer(context.Background(), db, store.CreateCustomerRequest{
		Username: username,
		Email:    username + "@example.com",
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer.CustomerID
}

func seedCategory(t *testing.T, db *sql.DB, name, parentID string) string {
	t.Helper()
	category, err := store.CreateCategory(context.Background(), db, name, parentID)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return category.CategoryID
}

func seedProduct(t *testing.T, db *sql.DB, sku, categoryID, price string, stock int) {
	t.Helper()
	_, err := store.CreateProduct(context.Background(), db, store.CreateProductRequest{
		SKU:            sku,
		Name:           "Product " + sku,
		UnitPrice:      mustDecimal(price),
		QuantityOnHand: stock,
		CategoryID:     categoryID,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
}

func seedCoupon(t *testing.T, db *sql.DB, req store.CreateCouponRequest) string {
	t.Helper()
	if req.ValidFrom.IsZero() {
		req.ValidFrom = time.Now().AddDate(0, 0, -1)
	}
	if req.ValidUntil.IsZero() {
		req.ValidUntil = time.Now().AddDate(0, 0, 30)
	}
	coupon, err := store.CreateCoupon(context.Background(), db, req)
	if err != nil {
		t.Fatalf("seed coupon %s: %v", req.Code, err)
	}
	return coupon.CouponID
}

type cartLine struct {
	SKU   string
	Price string
	Qty   int
}

func fillCart(t *testing.T, carts *cart.Store, sessionID string, lines ...cartLine) {
	t.Helper()
	c := cart.New()
	for _, line := range lines {
		if err := c.Add(line.SKU, line.Qty, mustDecimal(line.Price), "Product "+line.SKU, ""); err != nil {
			t.Fatalf("add %s to cart: %v", line.SKU, err)
		}
	}
	if err := carts.Save(context.Background(), sessionID, c); err != nil {
		t.Fatalf("save cart: %v", err)
	}
}
