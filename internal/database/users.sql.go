package database

import (
	"context"

	"github.com/google/uuid"
)

const createUser = `
INSERT INTO users (store_id, email, hashed_password, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, store_id, email, hashed_password, full_name, role, active, created_at
`

type CreateUserParams struct {
	StoreID        uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.StoreID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role)
	var u User
	err := row.Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `
SELECT id, store_id, email, hashed_password, full_name, role, active, created_at
FROM users
WHERE email = $1 AND active
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var u User
	err := row.Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

const getUser = `
SELECT id, store_id, email, hashed_password, full_name, role, active, created_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var u User
	err := row.Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

const listUsersByStore = `
SELECT id, store_id, email, hashed_password, full_name, role, active, created_at
FROM users
WHERE store_id = $1
ORDER BY created_at
`

func (q *Queries) ListUsersByStore(ctx context.Context, storeID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
