package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleColumns = `id, store_id, comanda_id, customer_id, total_cents, payment_method,
amount_paid_cents, change_cents, created_by, created_at`

func scanSale(row interface{ Scan(...interface{}) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.StoreID, &s.ComandaID, &s.CustomerID, &s.TotalCents, &s.PaymentMethod,
		&s.AmountPaidCents, &s.ChangeCents, &s.CreatedBy, &s.CreatedAt)
	return s, err
}

const createSale = `
INSERT INTO sales (store_id, comanda_id, customer_id, total_cents, payment_method,
	amount_paid_cents, change_cents, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + saleColumns

type CreateSaleParams struct {
	StoreID         uuid.UUID
	ComandaID       pgtype.UUID
	CustomerID      pgtype.UUID
	TotalCents      int64
	PaymentMethod   string
	AmountPaidCents pgtype.Int8
	ChangeCents     pgtype.Int8
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx, createSale,
		arg.StoreID, arg.ComandaID, arg.CustomerID, arg.TotalCents, arg.PaymentMethod,
		arg.AmountPaidCents, arg.ChangeCents, arg.CreatedBy)
	return scanSale(row)
}

const createSaleItem = `
INSERT INTO sale_items (sale_id, product_id, product_name_snapshot, quantity,
	unit_price_cents, subtotal_cents, status, destino_preparo)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, sale_id, product_id, product_name_snapshot, quantity,
	unit_price_cents, subtotal_cents, status, destino_preparo
`

type CreateSaleItemParams struct {
	SaleID              uuid.UUID
	ProductID           uuid.UUID
	ProductNameSnapshot string
	Quantity            int32
	UnitPriceCents      int64
	SubtotalCents       int64
	Status              string
	DestinoPreparo      string
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	row := q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID, arg.ProductID, arg.ProductNameSnapshot, arg.Quantity,
		arg.UnitPriceCents, arg.SubtotalCents, arg.Status, arg.DestinoPreparo)
	var it SaleItem
	err := row.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductNameSnapshot, &it.Quantity,
		&it.UnitPriceCents, &it.SubtotalCents, &it.Status, &it.DestinoPreparo)
	return it, err
}

const getSale = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1 AND store_id = $2
`

type GetSaleParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetSale(ctx context.Context, arg GetSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSale, arg.ID, arg.StoreID))
}

const listSaleItems = `
SELECT id, sale_id, product_id, product_name_snapshot, quantity,
	unit_price_cents, subtotal_cents, status, destino_preparo
FROM sale_items
WHERE sale_id = $1
ORDER BY id
`

func (q *Queries) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItems, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductNameSnapshot, &it.Quantity,
			&it.UnitPriceCents, &it.SubtotalCents, &it.Status, &it.DestinoPreparo); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const listSales = `
SELECT ` + saleColumns + `
FROM sales
WHERE store_id = $1
	AND ($2::timestamptz IS NULL OR created_at >= $2)
	AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListSalesParams struct {
	StoreID   uuid.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListSales(ctx context.Context, arg ListSalesParams) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listSales, arg.StoreID, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const sumCashSalesSince = `
SELECT COALESCE(SUM(total_cents), 0)
FROM sales
WHERE store_id = $1 AND payment_method = 'cash' AND created_at >= $2
`

type SumCashSalesSinceParams struct {
	StoreID uuid.UUID
	Since   time.Time
}

func (q *Queries) SumCashSalesSince(ctx context.Context, arg SumCashSalesSinceParams) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx, sumCashSalesSince, arg.StoreID, arg.Since).Scan(&sum)
	return sum, err
}

// DailySummaryRow aggregates one payment method for the daily report.
type DailySummaryRow struct {
	PaymentMethod string
	SaleCount     int64
	TotalCents    int64
}

const dailySummary = `
SELECT payment_method, COUNT(*), COALESCE(SUM(total_cents), 0)
FROM sales
WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
GROUP BY payment_method
ORDER BY payment_method
`

type DailySummaryParams struct {
	StoreID uuid.UUID
	Start   time.Time
	End     time.Time
}

func (q *Queries) DailySummary(ctx context.Context, arg DailySummaryParams) ([]DailySummaryRow, error) {
	rows, err := q.db.Query(ctx, dailySummary, arg.StoreID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailySummaryRow
	for rows.Next() {
		var r DailySummaryRow
		if err := rows.Scan(&r.PaymentMethod, &r.SaleCount, &r.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
