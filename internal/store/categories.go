package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
)

func CreateCategory(ctx context.Context, db *sql.DB, name, parentID string) (*models.Category, error) {
	category := &models.Category{}

	query := `
		INSERT INTO categories (category_id, name, parent_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())
		RETURNING category_id, name, COALESCE(parent_id, ''), created_at`

	err := db.QueryRowContext(ctx, query, models.NewCategoryID(), name, parentID).Scan(
		&category.CategoryID,
		&category.Name,
		&category.ParentID,
		&category.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func GetCategory(ctx context.Context, db *sql.DB, categoryID string) (*models.Category, error) {
	category := &models.Category{}

	query := `
		SELECT category_id, name, COALESCE(parent_id, ''), created_at
		FROM categories
		WHERE category_id = $1`

	err := db.QueryRowContext(ctx, query, categoryID).Scan(
		&category.CategoryID,
		&category.Name,
		&category.ParentID,
		&category.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

// ParentCategory returns the parent of a category, or empty string for a root
// category.
func ParentCategory(ctx context.Context, db *sql.DB, categoryID string) (string, error) {
	var parentID string

	query := `
		SELECT COALESCE(parent_id, '')
		FROM categories
		WHERE category_id = $1`

	err := db.QueryRowContext(ctx, query, categoryID).Scan(&parentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", database.ErrCategoryNotFound
		}
		return "", fmt.Errorf("get parent category: %w", err)
	}

	return parentID, nil
}

// CategoryByName resolves a category by its display name. Used when matching
// a customer's preferred category, which is stored as a name.
func CategoryByName(ctx context.Context, db *sql.DB, name string) (*models.Category, error) {
	category := &models.Category{}

	query := `
		SELECT category_id, name, COALESCE(parent_id, ''), created_at
		FROM categories
		WHERE name = $1`

	err := db.QueryRowContext(ctx, query, name).Scan(
		&category.CategoryID,
		&category.Name,
		&category.ParentID,
		&category.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category by name: %w", err)
	}

	return category, nil
}
