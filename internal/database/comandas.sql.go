package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const comandaColumns = `id, store_id, numero, mesa, cliente_nome, status, created_at, closed_at`

func scanComanda(row interface{ Scan(...interface{}) error }) (Comanda, error) {
	var c Comanda
	err := row.Scan(&c.ID, &c.StoreID, &c.Numero, &c.Mesa, &c.ClienteNome, &c.Status, &c.CreatedAt, &c.ClosedAt)
	return c, err
}

const comandaItemColumns = `id, comanda_id, product_id, product_name_snapshot, quantity,
unit_price_cents, subtotal_cents, status, destino_preparo, created_at, updated_at`

func scanComandaItem(row interface{ Scan(...interface{}) error }) (ComandaItem, error) {
	var it ComandaItem
	err := row.Scan(&it.ID, &it.ComandaID, &it.ProductID, &it.ProductNameSnapshot, &it.Quantity,
		&it.UnitPriceCents, &it.SubtotalCents, &it.Status, &it.DestinoPreparo, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

const getOpenComandaByNumero = `
SELECT ` + comandaColumns + `
FROM comandas
WHERE store_id = $1 AND numero = $2 AND status = 'aberta'
`

type GetOpenComandaByNumeroParams struct {
	StoreID uuid.UUID
	Numero  int32
}

func (q *Queries) GetOpenComandaByNumero(ctx context.Context, arg GetOpenComandaByNumeroParams) (Comanda, error) {
	return scanComanda(q.db.QueryRow(ctx, getOpenComandaByNumero, arg.StoreID, arg.Numero))
}

const createComanda = `
INSERT INTO comandas (store_id, numero, mesa, cliente_nome)
VALUES ($1, $2, $3, $4)
RETURNING ` + comandaColumns

type CreateComandaParams struct {
	StoreID     uuid.UUID
	Numero      int32
	Mesa        pgtype.Text
	ClienteNome pgtype.Text
}

func (q *Queries) CreateComanda(ctx context.Context, arg CreateComandaParams) (Comanda, error) {
	return scanComanda(q.db.QueryRow(ctx, createComanda, arg.StoreID, arg.Numero, arg.Mesa, arg.ClienteNome))
}

const getComanda = `
SELECT ` + comandaColumns + `
FROM comandas
WHERE id = $1 AND store_id = $2
`

type GetComandaParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetComanda(ctx context.Context, arg GetComandaParams) (Comanda, error) {
	return scanComanda(q.db.QueryRow(ctx, getComanda, arg.ID, arg.StoreID))
}

const getComandaForUpdate = `
SELECT ` + comandaColumns + `
FROM comandas
WHERE id = $1 AND store_id = $2
FOR UPDATE
`

// GetComandaForUpdate serializes concurrent item additions and closes on the
// same comanda row.
func (q *Queries) GetComandaForUpdate(ctx context.Context, arg GetComandaParams) (Comanda, error) {
	return scanComanda(q.db.QueryRow(ctx, getComandaForUpdate, arg.ID, arg.StoreID))
}

const listOpenComandas = `
SELECT ` + comandaColumns + `
FROM comandas
WHERE store_id = $1 AND status = 'aberta'
ORDER BY numero
`

func (q *Queries) ListOpenComandas(ctx context.Context, storeID uuid.UUID) ([]Comanda, error) {
	rows, err := q.db.Query(ctx, listOpenComandas, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Comanda
	for rows.Next() {
		c, err := scanComanda(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const closeComanda = `
UPDATE comandas
SET status = 'fechada', closed_at = now()
WHERE id = $1 AND store_id = $2 AND status = 'aberta'
RETURNING ` + comandaColumns

// CloseComanda returns pgx.ErrNoRows if the comanda was already closed; the
// one-way aberta -> fechada transition is enforced here, not by the caller.
func (q *Queries) CloseComanda(ctx context.Context, arg GetComandaParams) (Comanda, error) {
	return scanComanda(q.db.QueryRow(ctx, closeComanda, arg.ID, arg.StoreID))
}

const createComandaItem = `
INSERT INTO comanda_items (comanda_id, product_id, product_name_snapshot, quantity,
	unit_price_cents, subtotal_cents, destino_preparo)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + comandaItemColumns

type CreateComandaItemParams struct {
	ComandaID           uuid.UUID
	ProductID           uuid.UUID
	ProductNameSnapshot string
	Quantity            int32
	UnitPriceCents      int64
	SubtotalCents       int64
	DestinoPreparo      string
}

func (q *Queries) CreateComandaItem(ctx context.Context, arg CreateComandaItemParams) (ComandaItem, error) {
	row := q.db.QueryRow(ctx, createComandaItem,
		arg.ComandaID, arg.ProductID, arg.ProductNameSnapshot, arg.Quantity,
		arg.UnitPriceCents, arg.SubtotalCents, arg.DestinoPreparo)
	return scanComandaItem(row)
}

const listComandaItems = `
SELECT ` + comandaItemColumns + `
FROM comanda_items
WHERE comanda_id = $1
ORDER BY created_at
`

func (q *Queries) ListComandaItems(ctx context.Context, comandaID uuid.UUID) ([]ComandaItem, error) {
	rows, err := q.db.Query(ctx, listComandaItems, comandaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ComandaItem
	for rows.Next() {
		it, err := scanComandaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const getComandaItem = `
SELECT ci.id, ci.comanda_id, ci.product_id, ci.product_name_snapshot, ci.quantity,
	ci.unit_price_cents, ci.subtotal_cents, ci.status, ci.destino_preparo, ci.created_at, ci.updated_at
FROM comanda_items ci
JOIN comandas c ON c.id = ci.comanda_id
WHERE ci.id = $1 AND c.store_id = $2
`

type GetComandaItemParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetComandaItem(ctx context.Context, arg GetComandaItemParams) (ComandaItem, error) {
	return scanComandaItem(q.db.QueryRow(ctx, getComandaItem, arg.ID, arg.StoreID))
}

const advanceComandaItemStatus = `
UPDATE comanda_items ci
SET status = $3, updated_at = now()
FROM comandas c
WHERE ci.id = $1 AND c.id = ci.comanda_id AND c.store_id = $2 AND ci.status = ANY($4::text[])
RETURNING ci.id, ci.comanda_id, ci.product_id, ci.product_name_snapshot, ci.quantity,
	ci.unit_price_cents, ci.subtotal_cents, ci.status, ci.destino_preparo, ci.created_at, ci.updated_at
`

type AdvanceComandaItemStatusParams struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	Status      string
	AllowedPrev []string
}

// AdvanceComandaItemStatus performs the monotonic transition atomically:
// no row comes back when the item already left one of the allowed states.
func (q *Queries) AdvanceComandaItemStatus(ctx context.Context, arg AdvanceComandaItemStatusParams) (ComandaItem, error) {
	row := q.db.QueryRow(ctx, advanceComandaItemStatus, arg.ID, arg.StoreID, arg.Status, arg.AllowedPrev)
	return scanComandaItem(row)
}

// ProductionItemRow is the KDS/BDS projection: a pending preparation item
// joined with its comanda and product timing target.
type ProductionItemRow struct {
	ID                  uuid.UUID
	ComandaID           uuid.UUID
	ComandaNumero       int32
	Mesa                pgtype.Text
	ProductID           uuid.UUID
	ProductNameSnapshot string
	Quantity            int32
	Status              string
	DestinoPreparo      string
	PrepTimeMinutes     int32
	CreatedAt           time.Time
}

const listProductionItems = `
SELECT ci.id, ci.comanda_id, c.numero, c.mesa, ci.product_id, ci.product_name_snapshot,
	ci.quantity, ci.status, ci.destino_preparo, p.prep_time_minutes, ci.created_at
FROM comanda_items ci
JOIN comandas c ON c.id = ci.comanda_id
JOIN products p ON p.id = ci.product_id
WHERE c.store_id = $1
	AND c.status = 'aberta'
	AND ci.destino_preparo = $2
	AND ci.status IN ('pending', 'queued', 'in_progress')
ORDER BY ci.created_at
`

type ListProductionItemsParams struct {
	StoreID uuid.UUID
	Destino string
}

func (q *Queries) ListProductionItems(ctx context.Context, arg ListProductionItemsParams) ([]ProductionItemRow, error) {
	rows, err := q.db.Query(ctx, listProductionItems, arg.StoreID, arg.Destino)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductionItemRow
	for rows.Next() {
		var it ProductionItemRow
		if err := rows.Scan(&it.ID, &it.ComandaID, &it.ComandaNumero, &it.Mesa, &it.ProductID,
			&it.ProductNameSnapshot, &it.Quantity, &it.Status, &it.DestinoPreparo,
			&it.PrepTimeMinutes, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
