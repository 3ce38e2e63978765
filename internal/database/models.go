package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store is the tenant root; every other row is scoped by store_id.
type Store struct {
	ID                    uuid.UUID
	OwnerID               pgtype.UUID
	Name                  string
	CNPJ                  pgtype.Text
	Address               pgtype.Text
	BlockSaleWithoutStock bool
	CreatedAt             time.Time
}

type User struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Active         bool
	CreatedAt      time.Time
}

type Product struct {
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
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Customer struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	Name      string
	Phone     pgtype.Text
	Email     pgtype.Text
	CreatedAt time.Time
}

type Comanda struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	Numero      int32
	Mesa        pgtype.Text
	ClienteNome pgtype.Text
	Status      string
	CreatedAt   time.Time
	ClosedAt    pgtype.Timestamptz
}

type ComandaItem struct {
	ID                  uuid.UUID
	ComandaID           uuid.UUID
	ProductID           uuid.UUID
	ProductNameSnapshot string
	Quantity            int32
	UnitPriceCents      int64
	SubtotalCents       int64
	Status              string
	DestinoPreparo      string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Sale is immutable once created; items are snapshot copies, never shared
// references to comanda items.
type Sale struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	ComandaID       pgtype.UUID
	CustomerID      pgtype.UUID
	TotalCents      int64
	PaymentMethod   string
	AmountPaidCents pgtype.Int8
	ChangeCents     pgtype.Int8
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
}

type SaleItem struct {
	ID                  uuid.UUID
	SaleID              uuid.UUID
	ProductID           uuid.UUID
	ProductNameSnapshot string
	Quantity            int32
	UnitPriceCents      int64
	SubtotalCents       int64
	Status              string
	DestinoPreparo      string
}

type CashSession struct {
	ID           uuid.UUID
	StoreID      uuid.UUID
	OpenedBy     uuid.UUID
	OpeningCents int64
	OpenedAt     time.Time
	ClosingCents pgtype.Int8
	ClosedBy     pgtype.UUID
	ClosedAt     pgtype.Timestamptz
}

type Subscription struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	Plan      string
	Active    bool
	ExpiresAt pgtype.Timestamptz
	CreatedAt time.Time
}
