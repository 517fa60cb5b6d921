package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// CustomerRepository handles database operations for customers.
type CustomerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a customer record.
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	now := time.Now()
	customer.CreateTime = now
	customer.ChangeTime = now
	if customer.Status == "" {
		customer.Status = "active"
	}
	query := `
		INSERT INTO customers (first_name, last_name, email, status, create_time, change_time)
		VALUES ($1,$2,$3,$4,$5,$6)`
	args := []any{customer.FirstName, customer.LastName, customer.Email, customer.Status, now, now}

	if r.db.SupportsReturning() {
		return r.db.QueryRowContext(ctx, query+` RETURNING id`, args...).Scan(&customer.ID)
	}
	res, err := r.db.ExecContext(ctx, r.db.ConvertPlaceholders(query), args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	customer.ID = id
	return nil
}

// FindByEmail looks up a customer by address, nil when absent.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	query := r.db.ConvertPlaceholders(`
		SELECT id, first_name, last_name, email, status, create_time, change_time
		FROM customers WHERE email = $1`)
	var c models.Customer
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Status, &c.CreateTime, &c.ChangeTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID fetches a customer.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	query := r.db.ConvertPlaceholders(`
		SELECT id, first_name, last_name, email, status, create_time, change_time
		FROM customers WHERE id = $1`)
	var c models.Customer
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Status, &c.CreateTime, &c.ChangeTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
