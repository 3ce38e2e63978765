package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
)

// SaleStore defines the DB methods needed by the direct sale flow.
// Satisfied by *database.Queries (and its WithTx variant).
type SaleStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	GetProductForSale(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	DecrementStockGuarded(ctx context.Context, arg database.DecrementStockParams) (database.Product, error)
	DecrementStockClamped(ctx context.Context, arg database.DecrementStockParams) (database.Product, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
}

// NewSaleStore creates a SaleStore from a DBTX (pool or tx).
type NewSaleStore func(db database.DBTX) SaleStore

// SaleService finalizes balcão sales: whole carts priced, recorded and
// stock-decremented in one shot, no comanda in between.
type SaleService struct {
	pool     TxBeginner
	newStore NewSaleStore
}

func NewSaleService(pool TxBeginner, newStore NewSaleStore) *SaleService {
	return &SaleService{pool: pool, newStore: newStore}
}

// CartItem is one line of a direct sale request.
type CartItem struct {
	ProductID uuid.UUID
	Quantity  int32
}

// DirectSaleRequest is the validated input for a balcão sale.
type DirectSaleRequest struct {
	StoreID         uuid.UUID
	CustomerID      uuid.UUID // optional, uuid.Nil when anonymous
	PaymentMethod   string
	AmountPaidCents int64 // cash only; 0 means exact amount
	CreatedBy       uuid.UUID
	Items           []CartItem
}

type pricedLine struct {
	product  database.Product
	quantity int32
	subtotal int64
}

// ProcessDirectSale prices the cart against the current catalog and commits
// sale, snapshot items and stock decrements in a single transaction. Product
// rows are locked while priced, so a concurrent catalog edit cannot split
// the cart across two price lists. Line quantities below 1 are raised to 1.
func (s *SaleService) ProcessDirectSale(ctx context.Context, req DirectSaleRequest) (*SaleResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPayment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	tenant, err := store.GetStore(ctx, req.StoreID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStoreID
		}
		return nil, fmt.Errorf("get store: %w", err)
	}

	var total int64
	lines := make([]pricedLine, 0, len(req.Items))
	for _, item := range req.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		product, err := store.GetProductForSale(ctx, database.GetProductParams{
			ID:      item.ProductID,
			StoreID: req.StoreID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		subtotal := product.PriceCents * int64(qty)
		total += subtotal
		lines = append(lines, pricedLine{product: product, quantity: qty, subtotal: subtotal})
	}

	amountPaid, change, err := cashAmounts(req.PaymentMethod, req.AmountPaidCents, total)
	if err != nil {
		return nil, err
	}

	var customerID pgtype.UUID
	if req.CustomerID != uuid.Nil {
		customerID = pgtype.UUID{Bytes: req.CustomerID, Valid: true}
	}

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		StoreID:         req.StoreID,
		CustomerID:      customerID,
		TotalCents:      total,
		PaymentMethod:   req.PaymentMethod,
		AmountPaidCents: amountPaid,
		ChangeCents:     change,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	saleItems := make([]database.SaleItem, 0, len(lines))
	for _, line := range lines {
		saleItem, err := store.CreateSaleItem(ctx, database.CreateSaleItemParams{
			SaleID:              sale.ID,
			ProductID:           line.product.ID,
			ProductNameSnapshot: line.product.Name,
			Quantity:            line.quantity,
			UnitPriceCents:      line.product.PriceCents,
			SubtotalCents:       line.subtotal,
			Status:              enum.ItemStatusDone,
			DestinoPreparo:      line.product.DestinoPreparo,
		})
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
		saleItems = append(saleItems, saleItem)

		if err := decrementStock(ctx, store, tenant, line.product.ID, line.quantity, line.product.Name); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SaleResult{Sale: sale, Items: saleItems}, nil
}
