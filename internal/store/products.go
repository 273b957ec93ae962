package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
)

type CreateProductRequest struct {
	SKU             string
	Name            string
	Description     string
	UnitPrice       decimal.Decimal
	Rating          float64
	QuantityOnHand  int
	ReorderQuantity int
	ImageURL        string
	CategoryID      string
	SubcategoryID   string
}

func CreateProduct(ctx context.Context, db *sql.DB, req CreateProductRequest) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, unit_price, rating, quantity_on_hand,
		                      reorder_quantity, image_url, category_id, subcategory_id,
		                      created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NOW(), NOW())
		RETURNING sku, name, description, unit_price, rating, quantity_on_hand,
		          reorder_quantity, image_url, COALESCE(category_id, ''), COALESCE(subcategory_id, ''),
		          created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		req.SKU, req.Name, req.Description, req.UnitPrice, req.Rating,
		req.QuantityOnHand, req.ReorderQuantity, req.ImageURL,
		req.CategoryID, req.SubcategoryID).Scan(
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.UnitPrice,
		&product.Rating,
		&product.QuantityOnHand,
		&product.ReorderQuantity,
		&product.ImageURL,
		&product.CategoryID,
		&product.SubcategoryID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, sku string) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT sku, name, description, unit_price, rating, quantity_on_hand,
		       reorder_quantity, image_url, COALESCE(category_id, ''), COALESCE(subcategory_id, ''),
		       created_at, updated_at
		FROM products
		WHERE sku = $1`

	err := db.QueryRowContext(ctx, query, sku).Scan(
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.UnitPrice,
		&product.Rating,
		&product.QuantityOnHand,
		&product.ReorderQuantity,
		&product.ImageURL,
		&product.CategoryID,
		&product.SubcategoryID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// ProductCategory returns the category the SKU belongs to, preferring the
// subcategory when one is set. Empty string means uncategorized.
func ProductCategory(ctx context.Context, db *sql.DB, sku string) (string, error) {
	var categoryID string

	query := `
		SELECT COALESCE(subcategory_id, category_id, '')
		FROM products
		WHERE sku = $1`

	err := db.QueryRowContext(ctx, query, sku).Scan(&categoryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", database.ErrProductNotFound
		}
		return "", fmt.Errorf("get product category: %w", err)
	}

	return categoryID, nil
}

// LockProduct reads a product row under FOR UPDATE inside the caller's
// transaction, serializing concurrent checkouts touching the same SKU.
func LockProduct(ctx context.Context, tx *sql.Tx, sku string) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT sku, name, unit_price, quantity_on_hand
		FROM products
		WHERE sku = $1
		FOR UPDATE`

	err := tx.QueryRowContext(ctx, query, sku).Scan(
		&product.SKU,
		&product.Name,
		&product.UnitPrice,
		&product.QuantityOnHand,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %s: %w", sku, err)
	}

	return product, nil
}

// DecrementStock reduces quantity_on_hand by the purchased quantity, clamping
// at zero rather than rejecting oversold lines.
func DecrementStock(ctx context.Context, tx *sql.Tx, sku string, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET quantity_on_hand = GREATEST(quantity_on_hand - $1, 0),
		     updated_at = NOW()
		 WHERE sku = $2`,
		quantity, sku)
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", sku, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

func ListProducts(ctx context.Context, db *sql.DB, categoryID string, limit int) ([]models.Product, error) {
	query := `
		SELECT sku, name, description, unit_price, rating, quantity_on_hand,
		       reorder_quantity, image_url, COALESCE(category_id, ''), COALESCE(subcategory_id, ''),
		       created_at, updated_at
		FROM products
		WHERE ($1 = '' OR category_id = $1 OR subcategory_id = $1)
		ORDER BY name
		LIMIT $2`

	rows, err := db.QueryContext(ctx, query, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.UnitPrice,
			&product.Rating,
			&product.QuantityOnHand,
			&product.ReorderQuantity,
			&product.ImageURL,
			&product.CategoryID,
			&product.SubcategoryID,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}
