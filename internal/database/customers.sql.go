package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createCustomer = `
INSERT INTO customers (store_id, name, phone, email)
VALUES ($1, $2, $3, $4)
RETURNING id, store_id, name, phone, email, created_at
`

type CreateCustomerParams struct {
	StoreID uuid.UUID
	Name    string
	Phone   pgtype.Text
	Email   pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, createCustomer, arg.StoreID, arg.Name, arg.Phone, arg.Email)
	var c Customer
	err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	return c, err
}

const getCustomer = `
SELECT id, store_id, name, phone, email, created_at
FROM customers
WHERE id = $1 AND store_id = $2
`

type GetCustomerParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetCustomer(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, arg.ID, arg.StoreID)
	var c Customer
	err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	return c, err
}

const listCustomers = `
SELECT id, store_id, name, phone, email, created_at
FROM customers
WHERE store_id = $1
ORDER BY name
`

func (q *Queries) ListCustomers(ctx context.Context, storeID uuid.UUID) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateCustomer = `
UPDATE customers
SET name = $3, phone = $4, email = $5
WHERE id = $1 AND store_id = $2
RETURNING id, store_id, name, phone, email, created_at
`

type UpdateCustomerParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
	Name    string
	Phone   pgtype.Text
	Email   pgtype.Text
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, updateCustomer, arg.ID, arg.StoreID, arg.Name, arg.Phone, arg.Email)
	var c Customer
	err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	return c, err
}

const deleteCustomer = `
DELETE FROM customers
WHERE id = $1 AND store_id = $2
`

type DeleteCustomerParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) DeleteCustomer(ctx context.Context, arg DeleteCustomerParams) error {
	_, err := q.db.Exec(ctx, deleteCustomer, arg.ID, arg.StoreID)
	return err
}
