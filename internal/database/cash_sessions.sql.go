package database

import (
	"context"

	"github.com/google/uuid"
)

const cashSessionColumns = `id, store_id, opened_by, opening_cents, opened_at,
closing_cents, closed_by, closed_at`

func scanCashSession(row interface{ Scan(...interface{}) error }) (CashSession, error) {
	var s CashSession
	err := row.Scan(&s.ID, &s.StoreID, &s.OpenedBy, &s.OpeningCents, &s.OpenedAt,
		&s.ClosingCents, &s.ClosedBy, &s.ClosedAt)
	return s, err
}

const createCashSession = `
INSERT INTO cash_sessions (store_id, opened_by, opening_cents)
VALUES ($1, $2, $3)
RETURNING ` + cashSessionColumns

type CreateCashSessionParams struct {
	StoreID      uuid.UUID
	OpenedBy     uuid.UUID
	OpeningCents int64
}

// CreateCashSession relies on the partial unique index (one open session per
// store); a 23505 means another session is still open.
func (q *Queries) CreateCashSession(ctx context.Context, arg CreateCashSessionParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, createCashSession, arg.StoreID, arg.OpenedBy, arg.OpeningCents))
}

const getOpenCashSession = `
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE store_id = $1 AND closed_at IS NULL
`

func (q *Queries) GetOpenCashSession(ctx context.Context, storeID uuid.UUID) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getOpenCashSession, storeID))
}

const getCashSession = `
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE id = $1 AND store_id = $2
`

type GetCashSessionParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) GetCashSession(ctx context.Context, arg GetCashSessionParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getCashSession, arg.ID, arg.StoreID))
}

const closeCashSession = `
UPDATE cash_sessions
SET closing_cents = $3, closed_by = $4, closed_at = now()
WHERE id = $1 AND store_id = $2 AND closed_at IS NULL
RETURNING ` + cashSessionColumns

type CloseCashSessionParams struct {
	ID           uuid.UUID
	StoreID      uuid.UUID
	ClosingCents int64
	ClosedBy     uuid.UUID
}

// CloseCashSession returns pgx.ErrNoRows if the session is already closed;
// sessions cannot be reopened.
func (q *Queries) CloseCashSession(ctx context.Context, arg CloseCashSessionParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, closeCashSession,
		arg.ID, arg.StoreID, arg.ClosingCents, arg.ClosedBy))
}

const listCashSessions = `
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE store_id = $1
ORDER BY opened_at DESC
LIMIT $2 OFFSET $3
`

type ListCashSessionsParams struct {
	StoreID uuid.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListCashSessions(ctx context.Context, arg ListCashSessionsParams) ([]CashSession, error) {
	rows, err := q.db.Query(ctx, listCashSessions, arg.StoreID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CashSession
	for rows.Next() {
		s, err := scanCashSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
