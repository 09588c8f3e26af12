// Package store defines the persistence contract for products, sales and
// admin accounts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/vending/core/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoFields is returned by UpdateProduct when the update is empty.
	ErrNoFields = errors.New("no fields to update")
	// ErrInvalidQuantity is returned by PlaceOrder for a line below one unit.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Product is an item sold by the machine. Its ID is the item id routed to
// a shelf.
type Product struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    *string `json:"image"`
}

// ProductUpdate carries the fields to change; nil fields are left as is.
type ProductUpdate struct {
	Name     *string  `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
	Image    *string  `json:"-"`
}

// Empty reports whether no field is set.
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.Quantity == nil && u.Image == nil
}

// Sale records one ordered line.
type Sale struct {
	ID        int       `json:"id"`
	ProductID int       `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin is an operator account.
type Admin struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Products persists the catalogue and sales.
type Products interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int, u ProductUpdate) (Product, error)
	// PlaceOrder decrements stock where enough is left and records a sale
	// per line, in one transaction.
	PlaceOrder(ctx context.Context, items []model.ItemRef) error
	ListSales(ctx context.Context, since time.Time) ([]Sale, error)
}

// Admins persists operator accounts.
type Admins interface {
	AdminByUsername(ctx context.Context, username string) (Admin, error)
	AdminByID(ctx context.Context, id int) (Admin, error)
	UpdateAdmin(ctx context.Context, id int, username, passwordHash string) error
}

// Store is the full persistence layer.
type Store interface {
	Products
	Admins
	Close() error
}
