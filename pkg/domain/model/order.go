package model

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrReferentialIntegrity  = errors.New("referenced record does not exist")
	ErrDuplicate             = errors.New("record already exists")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrInternalInconsistency = errors.New("order is missing after commit")
)

type Order struct {
	ID         int64
	ClientID   int64
	ItemCount  int
	TotalPrice float64
	Items      []Item
	Sale       *Sale
}

type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  float64
	UnitPrice float64
}

// OrderLine is one requested product line before it is bound to an order.
type OrderLine struct {
	ProductID int64
	Quantity  float64
	UnitPrice float64
}

type OrderDraft struct {
	ClientID       int64
	Lines          []OrderLine
	IdempotencyKey string
}

// OrderPatch lists the only fields of an order that may change after creation.
// Totals are never patched directly, they follow Lines.
type OrderPatch struct {
	ClientID *int64
	Lines    *[]OrderLine
}

func (p OrderPatch) Empty() bool {
	return p.ClientID == nil && p.Lines == nil
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	AddItems(ctx context.Context, orderID int64, items []Item) error
	DeleteItems(ctx context.Context, orderID int64) error
	UpdateHeader(ctx context.Context, order *Order) error
	Find(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, offset, limit int) ([]Order, error)
	Delete(ctx context.Context, id int64) error

	// The fingerprint identifies the request content that first used key.
	BindIdempotencyKey(ctx context.Context, key, fingerprint string, orderID int64) error
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, string, error)
}

type RepositoryProvider interface {
	OrderRepository() OrderRepository
	ProductRepository() ProductRepository
	ClientRepository() ClientRepository
	CategoryRepository() CategoryRepository
}

// UnitOfWork runs fn inside one store transaction. The transaction commits
// only when fn returns nil and is rolled back on every other exit path.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, provider RepositoryProvider) error) error
}
