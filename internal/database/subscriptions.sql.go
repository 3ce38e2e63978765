package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getSubscriptionByStore = `
SELECT id, store_id, plan, active, expires_at, created_at
FROM subscriptions
WHERE store_id = $1
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetSubscriptionByStore(ctx context.Context, storeID uuid.UUID) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByStore, storeID)
	var s Subscription
	err := row.Scan(&s.ID, &s.StoreID, &s.Plan, &s.Active, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const createSubscription = `
INSERT INTO subscriptions (store_id, plan, active, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, store_id, plan, active, expires_at, created_at
`

type CreateSubscriptionParams struct {
	StoreID   uuid.UUID
	Plan      string
	Active    bool
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, createSubscription, arg.StoreID, arg.Plan, arg.Active, arg.ExpiresAt)
	var s Subscription
	err := row.Scan(&s.ID, &s.StoreID, &s.Plan, &s.Active, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}
