package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStore = `
INSERT INTO stores (name, cnpj, address, block_sale_without_stock)
VALUES ($1, $2, $3, $4)
RETURNING id, owner_id, name, cnpj, address, block_sale_without_stock, created_at
`

type CreateStoreParams struct {
	Name                  string
	CNPJ                  pgtype.Text
	Address               pgtype.Text
	BlockSaleWithoutStock bool
}

func (q *Queries) CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error) {
	row := q.db.QueryRow(ctx, createStore, arg.Name, arg.CNPJ, arg.Address, arg.BlockSaleWithoutStock)
	var s Store
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.CNPJ, &s.Address, &s.BlockSaleWithoutStock, &s.CreatedAt)
	return s, err
}

const getStore = `
SELECT id, owner_id, name, cnpj, address, block_sale_without_stock, created_at
FROM stores
WHERE id = $1
`

func (q *Queries) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	row := q.db.QueryRow(ctx, getStore, id)
	var s Store
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.CNPJ, &s.Address, &s.BlockSaleWithoutStock, &s.CreatedAt)
	return s, err
}

const setStoreOwner = `
UPDATE stores SET owner_id = $2 WHERE id = $1
RETURNING id, owner_id, name, cnpj, address, block_sale_without_stock, created_at
`

type SetStoreOwnerParams struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
}

func (q *Queries) SetStoreOwner(ctx context.Context, arg SetStoreOwnerParams) (Store, error) {
	row := q.db.QueryRow(ctx, setStoreOwner, arg.ID, arg.OwnerID)
	var s Store
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.CNPJ, &s.Address, &s.BlockSaleWithoutStock, &s.CreatedAt)
	return s, err
}

const updateStoreSettings = `
UPDATE stores
SET name = $2, cnpj = $3, address = $4, block_sale_without_stock = $5
WHERE id = $1
RETURNING id, owner_id, name, cnpj, address, block_sale_without_stock, created_at
`

type UpdateStoreSettingsParams struct {
	ID                    uuid.UUID
	Name                  string
	CNPJ                  pgtype.Text
	Address               pgtype.Text
	BlockSaleWithoutStock bool
}

func (q *Queries) UpdateStoreSettings(ctx context.Context, arg UpdateStoreSettingsParams) (Store, error) {
	row := q.db.QueryRow(ctx, updateStoreSettings,
		arg.ID, arg.Name, arg.CNPJ, arg.Address, arg.BlockSaleWithoutStock)
	var s Store
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.CNPJ, &s.Address, &s.BlockSaleWithoutStock, &s.CreatedAt)
	return s, err
}
