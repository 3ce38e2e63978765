package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
)

const maxOpenComandaRetries = 3

// Errors returned by the comanda and sale services.
var (
	ErrInvalidStoreID    = errors.New("store_id is required")
	ErrInvalidNumero     = errors.New("numero must be > 0")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidProductID  = errors.New("invalid product_id")
	ErrInvalidCustomerID = errors.New("invalid customer_id")
	ErrInvalidPayment    = errors.New("invalid payment_method")
	ErrInvalidItemStatus = errors.New("invalid item status")
	ErrInvalidAmountPaid = errors.New("amount_paid_cents must cover the total")
	ErrEmptyCart         = errors.New("items are required")
	ErrProductNotFound   = errors.New("product not found in store")
	ErrComandaNotFound   = errors.New("comanda not found")
	ErrComandaClosed     = errors.New("comanda is not open")
	ErrComandaConflict   = errors.New("comanda already being opened by another terminal")
	ErrItemNotFound      = errors.New("item not found")
	ErrItemTerminal      = errors.New("item is in a terminal status")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ComandaStore defines the DB methods needed by the comanda engine.
// Satisfied by *database.Queries (and its WithTx variant).
type ComandaStore interface {
	GetOpenComandaByNumero(ctx context.Context, arg database.GetOpenComandaByNumeroParams) (database.Comanda, error)
	CreateComanda(ctx context.Context, arg database.CreateComandaParams) (database.Comanda, error)
	GetComanda(ctx context.Context, arg database.GetComandaParams) (database.Comanda, error)
	GetComandaForUpdate(ctx context.Context, arg database.GetComandaParams) (database.Comanda, error)
	CloseComanda(ctx context.Context, arg database.GetComandaParams) (database.Comanda, error)
	CreateComandaItem(ctx context.Context, arg database.CreateComandaItemParams) (database.ComandaItem, error)
	ListComandaItems(ctx context.Context, comandaID uuid.UUID) ([]database.ComandaItem, error)
	GetComandaItem(ctx context.Context, arg database.GetComandaItemParams) (database.ComandaItem, error)
	AdvanceComandaItemStatus(ctx context.Context, arg database.AdvanceComandaItemStatusParams) (database.ComandaItem, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	GetProductForSale(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	DecrementStockGuarded(ctx context.Context, arg database.DecrementStockParams) (database.Product, error)
	DecrementStockClamped(ctx context.Context, arg database.DecrementStockParams) (database.Product, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
}

// NewComandaStore creates a ComandaStore from a DBTX (pool or tx).
type NewComandaStore func(db database.DBTX) ComandaStore

// ComandaService orchestrates the open-tab lifecycle: creation, item
// accumulation, production status and final conversion to a paid sale.
type ComandaService struct {
	store    ComandaStore
	pool     TxBeginner
	newStore NewComandaStore
}

func NewComandaService(store ComandaStore, pool TxBeginner, newStore NewComandaStore) *ComandaService {
	return &ComandaService{store: store, pool: pool, newStore: newStore}
}

// OpenComandaRequest is the validated input for get-or-create.
type OpenComandaRequest struct {
	StoreID     uuid.UUID
	Numero      int32
	Mesa        string
	ClienteNome string
}

// GetOrCreateOpen returns the open comanda for (store, numero), creating it
// if absent. Repeated calls return the same comanda while it stays open.
// A concurrent create from another terminal loses the partial-unique-index
// race and resolves to a fetch of the winner.
func (s *ComandaService) GetOrCreateOpen(ctx context.Context, req OpenComandaRequest) (database.Comanda, bool, error) {
	if req.StoreID == uuid.Nil {
		return database.Comanda{}, false, ErrInvalidStoreID
	}
	if req.Numero <= 0 {
		return database.Comanda{}, false, ErrInvalidNumero
	}

	var lastErr error
	for attempt := 0; attempt < maxOpenComandaRetries; attempt++ {
		comanda, err := s.store.GetOpenComandaByNumero(ctx, database.GetOpenComandaByNumeroParams{
			StoreID: req.StoreID,
			Numero:  req.Numero,
		})
		if err == nil {
			return comanda, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Comanda{}, false, fmt.Errorf("get open comanda: %w", err)
		}

		comanda, err = s.store.CreateComanda(ctx, database.CreateComandaParams{
			StoreID:     req.StoreID,
			Numero:      req.Numero,
			Mesa:        textOrNull(req.Mesa),
			ClienteNome: textOrNull(req.ClienteNome),
		})
		if err == nil {
			return comanda, true, nil
		}
		if isOpenComandaConflict(err) {
			// Another terminal created it between our read and write; loop
			// back and fetch the winner.
			lastErr = fmt.Errorf("%w: %v", ErrComandaConflict, err)
			continue
		}
		return database.Comanda{}, false, fmt.Errorf("create comanda: %w", err)
	}
	return database.Comanda{}, false, lastErr
}

// isOpenComandaConflict checks for a unique constraint violation on the
// one-open-comanda-per-(store, numero) partial index (pg error code 23505).
func isOpenComandaConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "comandas_store_numero_open_idx"
	}
	return false
}

// AddItemRequest is the validated input for adding one item to an open tab.
type AddItemRequest struct {
	StoreID   uuid.UUID
	ComandaID uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
}

// AddItem appends a product to an open comanda. Name, unit price and
// destino_preparo are snapshotted from the product at insertion time, so
// later catalog edits never rewrite history or re-route placed items.
func (s *ComandaService) AddItem(ctx context.Context, req AddItemRequest) (database.ComandaItem, error) {
	if req.Quantity <= 0 {
		return database.ComandaItem{}, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ComandaItem{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	comanda, err := store.GetComandaForUpdate(ctx, database.GetComandaParams{
		ID:      req.ComandaID,
		StoreID: req.StoreID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ComandaItem{}, ErrComandaNotFound
		}
		return database.ComandaItem{}, fmt.Errorf("get comanda: %w", err)
	}
	if comanda.Status != enum.ComandaStatusAberta {
		return database.ComandaItem{}, ErrComandaClosed
	}

	product, err := store.GetProductForSale(ctx, database.GetProductParams{
		ID:      req.ProductID,
		StoreID: req.StoreID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ComandaItem{}, ErrProductNotFound
		}
		return database.ComandaItem{}, fmt.Errorf("get product: %w", err)
	}

	item, err := store.CreateComandaItem(ctx, database.CreateComandaItemParams{
		ComandaID:           comanda.ID,
		ProductID:           product.ID,
		ProductNameSnapshot: product.Name,
		Quantity:            req.Quantity,
		UnitPriceCents:      product.PriceCents,
		SubtotalCents:       product.PriceCents * int64(req.Quantity),
		DestinoPreparo:      product.DestinoPreparo,
	})
	if err != nil {
		return database.ComandaItem{}, fmt.Errorf("create comanda item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ComandaItem{}, fmt.Errorf("commit tx: %w", err)
	}
	return item, nil
}

// allowedItemTransitions maps a target status to the statuses it may be
// reached from. pending is the initial state and never a target; done and
// canceled are terminal.
var allowedItemTransitions = map[string][]string{
	enum.ItemStatusQueued:     {enum.ItemStatusPending},
	enum.ItemStatusInProgress: {enum.ItemStatusPending, enum.ItemStatusQueued},
	enum.ItemStatusDone:       {enum.ItemStatusPending, enum.ItemStatusQueued, enum.ItemStatusInProgress},
	enum.ItemStatusCanceled:   {enum.ItemStatusPending, enum.ItemStatusQueued, enum.ItemStatusInProgress},
}

// AdvanceItemStatusRequest is the validated input for one status transition.
type AdvanceItemStatusRequest struct {
	StoreID uuid.UUID
	ItemID  uuid.UUID
	Status  string
}

// AdvanceItemStatus moves an item along pending → queued/in_progress → done
// (or to canceled from any non-terminal state). The transition is a single
// conditional UPDATE, so two displays marking the same item concurrently
// cannot double-apply it. Re-requesting the status an item already holds is
// an idempotent no-op: the current row comes back with changed == false.
func (s *ComandaService) AdvanceItemStatus(ctx context.Context, req AdvanceItemStatusRequest) (database.ComandaItem, bool, error) {
	allowedPrev, ok := allowedItemTransitions[req.Status]
	if !ok {
		return database.ComandaItem{}, false, ErrInvalidItemStatus
	}

	item, err := s.store.AdvanceComandaItemStatus(ctx, database.AdvanceComandaItemStatusParams{
		ID:          req.ItemID,
		StoreID:     req.StoreID,
		Status:      req.Status,
		AllowedPrev: allowedPrev,
	})
	if err == nil {
		return item, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.ComandaItem{}, false, fmt.Errorf("advance item status: %w", err)
	}

	// No row matched: the item is gone, already where we wanted it, or
	// terminal. Re-read to tell those apart.
	item, err = s.store.GetComandaItem(ctx, database.GetComandaItemParams{
		ID:      req.ItemID,
		StoreID: req.StoreID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ComandaItem{}, false, ErrItemNotFound
		}
		return database.ComandaItem{}, false, fmt.Errorf("get item: %w", err)
	}
	if item.Status == req.Status {
		return item, false, nil
	}
	return item, false, fmt.Errorf("%w: %s", ErrItemTerminal, item.Status)
}

// CloseComandaRequest is the validated input for converting a tab to a sale.
type CloseComandaRequest struct {
	StoreID         uuid.UUID
	ComandaID       uuid.UUID
	PaymentMethod   string
	AmountPaidCents int64 // cash only; 0 means exact amount
	CreatedBy       uuid.UUID
}

// SaleResult is a finalized sale with its snapshot items. Comanda carries the
// closed row for comanda-backed sales and is zero for balcão sales.
type SaleResult struct {
	Sale    database.Sale
	Items   []database.SaleItem
	Comanda database.Comanda
}

// Close converts an open comanda into an immutable sale in one transaction:
// total from non-canceled items, snapshot sale_items, stock decrement per
// line and the aberta → fechada flip all commit together or not at all.
func (s *ComandaService) Close(ctx context.Context, req CloseComandaRequest) (*SaleResult, error) {
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPayment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	comanda, err := store.GetComandaForUpdate(ctx, database.GetComandaParams{
		ID:      req.ComandaID,
		StoreID: req.StoreID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComandaNotFound
		}
		return nil, fmt.Errorf("get comanda: %w", err)
	}
	if comanda.Status != enum.ComandaStatusAberta {
		return nil, ErrComandaClosed
	}

	items, err := store.ListComandaItems(ctx, comanda.ID)
	if err != nil {
		return nil, fmt.Errorf("list comanda items: %w", err)
	}

	var total int64
	var billable []database.ComandaItem
	for _, it := range items {
		if it.Status == enum.ItemStatusCanceled {
			continue
		}
		total += it.SubtotalCents
		billable = append(billable, it)
	}

	amountPaid, change, err := cashAmounts(req.PaymentMethod, req.AmountPaidCents, total)
	if err != nil {
		return nil, err
	}

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		StoreID:         req.StoreID,
		ComandaID:       pgtype.UUID{Bytes: comanda.ID, Valid: true},
		TotalCents:      total,
		PaymentMethod:   req.PaymentMethod,
		AmountPaidCents: amountPaid,
		ChangeCents:     change,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	tenant, err := store.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}

	var saleItems []database.SaleItem
	for _, it := range billable {
		saleItem, err := store.CreateSaleItem(ctx, database.CreateSaleItemParams{
			SaleID:              sale.ID,
			ProductID:           it.ProductID,
			ProductNameSnapshot: it.ProductNameSnapshot,
			Quantity:            it.Quantity,
			UnitPriceCents:      it.UnitPriceCents,
			SubtotalCents:       it.SubtotalCents,
			Status:              it.Status,
			DestinoPreparo:      it.DestinoPreparo,
		})
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
		saleItems = append(saleItems, saleItem)

		if err := decrementStock(ctx, store, tenant, it.ProductID, it.Quantity, it.ProductNameSnapshot); err != nil {
			return nil, err
		}
	}

	closed, err := store.CloseComanda(ctx, database.GetComandaParams{
		ID:      comanda.ID,
		StoreID: req.StoreID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComandaClosed
		}
		return nil, fmt.Errorf("close comanda: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SaleResult{Sale: sale, Items: saleItems, Comanda: closed}, nil
}

// --- Helpers shared with the sale service ---

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodPix, enum.PaymentMethodCard:
		return true
	}
	return false
}

// cashAmounts validates amount paid for cash sales and derives change.
// Non-cash methods ignore the amount entirely.
func cashAmounts(method string, amountPaidCents, totalCents int64) (pgtype.Int8, pgtype.Int8, error) {
	if method != enum.PaymentMethodCash || amountPaidCents == 0 {
		return pgtype.Int8{}, pgtype.Int8{}, nil
	}
	if amountPaidCents < totalCents {
		return pgtype.Int8{}, pgtype.Int8{}, ErrInvalidAmountPaid
	}
	return pgtype.Int8{Int64: amountPaidCents, Valid: true},
		pgtype.Int8{Int64: amountPaidCents - totalCents, Valid: true}, nil
}

type stockDecrementer interface {
	DecrementStockGuarded(ctx context.Context, arg database.DecrementStockParams) (database.Product, error)
	DecrementStockClamped(ctx context.Context, arg database.DecrementStockParams) (database.Product, error)
}

// decrementStock applies the store's stock policy inside the caller's tx:
// a guarded decrement that aborts on insufficient stock when the store
// blocks such sales, a clamped-at-zero decrement otherwise.
func decrementStock(ctx context.Context, store stockDecrementer, tenant database.Store, productID uuid.UUID, qty int32, name string) error {
	params := database.DecrementStockParams{
		ID:       productID,
		StoreID:  tenant.ID,
		Quantity: qty,
	}
	if tenant.BlockSaleWithoutStock {
		if _, err := store.DecrementStockGuarded(ctx, params); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
			}
			return fmt.Errorf("decrement stock: %w", err)
		}
		return nil
	}
	if _, err := store.DecrementStockClamped(ctx, params); err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	return nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
