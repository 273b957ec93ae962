package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/models"
)

type CreateCustomerRequest struct {
	Username          string
	Email             string
	Age               int
	MonthlyIncomeSGD  decimal.Decimal
	PreferredCategory string
}

func CreateCustomer(ctx context.Context, db *sql.DB, req CreateCustomerRequest) (*models.Customer, error) {
	customer := &models.Customer{}

	if req.PreferredCategory == "" {
		req.PreferredCategory = "General"
	}

	query := `
		INSERT INTO customers (customer_id, username, email, age, monthly_income_sgd, preferred_category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING customer_id, username, email, age, monthly_income_sgd, preferred_category, created_at`

	err := db.QueryRowContext(ctx, query,
		models.NewCustomerID(), req.Username, req.Email, req.Age,
		req.MonthlyIncomeSGD, req.PreferredCategory).Scan(
		&customer.CustomerID,
		&customer.Username,
		&customer.Email,
		&customer.Age,
		&customer.MonthlyIncomeSGD,
		&customer.PreferredCategory,
		&customer.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, db *sql.DB, customerID string) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `
		SELECT customer_id, username, email, age, monthly_income_sgd, preferred_category, created_at
		FROM customers
		WHERE customer_id = $1`

	err := db.QueryRowContext(ctx, query, customerID).Scan(
		&customer.CustomerID,
		&customer.Username,
		&customer.Email,
		&customer.Age,
		&customer.MonthlyIncomeSGD,
		&customer.PreferredCategory,
		&customer.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}
