package model

import "context"

type Client struct {
	ID      int64
	Name    string
	Phone   string
	Address string
}

type Category struct {
	ID   int64
	Name string
}

type Product struct {
	ID         int64
	Name       string
	ExpiresOn  string
	Brand      string
	Barcode    string
	UnitPrice  float64
	Unit       string
	Quantity   float64
	CategoryID int64
	RecipeID   *int64
}

type Sale struct {
	ID            int64
	OrderID       int64
	PaymentMethod string
	Status        string
}

// Catalog is a seed document. Products point at categories either by an
// existing CategoryID or by CategoryRef, the index into Categories.
type Catalog struct {
	Categories []Category
	Clients    []Client
	Products   []CatalogProduct
}

type CatalogProduct struct {
	Product
	CategoryRef *int
}

type SeedResult struct {
	CategoryIDs []int64
	ClientIDs   []int64
	ProductIDs  []int64
}

type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	Find(ctx context.Context, id int64) (*Product, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *Client) error
}

type CategoryRepository interface {
	Create(ctx context.Context, category *Category) error
}
