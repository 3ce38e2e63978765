package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, store_id, name, category, price_cents, cost_cents, stock_quantity,
min_stock, destino_preparo, prep_time_minutes, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Category, &p.PriceCents, &p.CostCents,
		&p.StockQuantity, &p.MinStock, &p.DestinoPreparo, &p.PrepTimeMinutes,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const createProduct = `
INSERT INTO products (store_id, name, category, price_cents, cost_cents, stock_quantity,
	min_stock, destino_preparo, prep_time_minutes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + productColumns

type CreateProductParams struct {
	StoreID         uuid.UUID
	Name            string
	Category        pgtype.Text
	PriceCents      int64
	CostCents       int64
	StockQuantity   int32
	MinStock        int32
	DestinoPreparo  string
	PrepTimeMinutes int32
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.StoreID, arg.Name, arg.Category, arg.PriceCents, arg.CostCents,
		arg.StockQuantity, arg.MinStock, arg.DestinoPreparo, arg.PrepTimeMinutes)
	return scanProduct(row)
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND store_id = $2
`

type GetProductParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, arg.ID, arg.StoreID))
}

const getProductForSale = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND store_id = $2 AND active
FOR UPDATE
`

// GetProductForSale locks the product row so price snapshot and stock
// decrement observe the same version within the sale transaction.
func (q *Queries) GetProductForSale(ctx context.Context, arg GetProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForSale, arg.ID, arg.StoreID))
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE store_id = $1 AND ($2::boolean IS FALSE OR active)
ORDER BY name
`

type ListProductsParams struct {
	StoreID    uuid.UUID
	OnlyActive bool
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.StoreID, arg.OnlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const listLowStockProducts = `
SELECT ` + productColumns + `
FROM products
WHERE store_id = $1 AND active AND stock_quantity <= min_stock
ORDER BY stock_quantity
`

func (q *Queries) ListLowStockProducts(ctx context.Context, storeID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listLowStockProducts, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updateProduct = `
UPDATE products
SET name = $3, category = $4, price_cents = $5, cost_cents = $6, stock_quantity = $7,
	min_stock = $8, destino_preparo = $9, prep_time_minutes = $10, updated_at = now()
WHERE id = $1 AND store_id = $2
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	Name            string
	Category        pgtype.Text
	PriceCents      int64
	CostCents       int64
	StockQuantity   int32
	MinStock        int32
	DestinoPreparo  string
	PrepTimeMinutes int32
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.StoreID, arg.Name, arg.Category, arg.PriceCents, arg.CostCents,
		arg.StockQuantity, arg.MinStock, arg.DestinoPreparo, arg.PrepTimeMinutes)
	return scanProduct(row)
}

const deactivateProduct = `
UPDATE products
SET active = FALSE, updated_at = now()
WHERE id = $1 AND store_id = $2 AND active
RETURNING ` + productColumns

type DeactivateProductParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) DeactivateProduct(ctx context.Context, arg DeactivateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, deactivateProduct, arg.ID, arg.StoreID))
}

const decrementStockGuarded = `
UPDATE products
SET stock_quantity = stock_quantity - $3, updated_at = now()
WHERE id = $1 AND store_id = $2 AND stock_quantity >= $3
RETURNING ` + productColumns

type DecrementStockParams struct {
	ID       uuid.UUID
	StoreID  uuid.UUID
	Quantity int32
}

// DecrementStockGuarded fails with pgx.ErrNoRows when stock is insufficient;
// callers run it inside the sale transaction so a miss aborts the whole sale.
func (q *Queries) DecrementStockGuarded(ctx context.Context, arg DecrementStockParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, decrementStockGuarded, arg.ID, arg.StoreID, arg.Quantity))
}

const decrementStockClamped = `
UPDATE products
SET stock_quantity = GREATEST(stock_quantity - $3, 0), updated_at = now()
WHERE id = $1 AND store_id = $2
RETURNING ` + productColumns

// DecrementStockClamped never lets stock go below zero; used by stores that
// allow selling without tracked stock.
func (q *Queries) DecrementStockClamped(ctx context.Context, arg DecrementStockParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, decrementStockClamped, arg.ID, arg.StoreID, arg.Quantity))
}
