// Package types provides core data types for Stockyard.
package types

// Product represents a single catalog entry in the products table.
// Products are immutable once written; there is no update path.
type Product struct {
	// ID is the opaque unique identifier (UUID).
	ID string `json:"id"`

	// Title is the display name of the product.
	Title string `json:"title"`

	// Description is the human-readable product description.
	Description string `json:"description"`

	// Price is the unit price. Always strictly positive.
	Price float64 `json:"price"`
}

// Stock represents the inventory row paired with a product.
// A Stock row is never written without its Product and vice versa.
type Stock struct {
	// ProductID references Product.ID.
	ProductID string `json:"product_id"`

	// Count is the units in stock. Never negative.
	Count int64 `json:"count"`
}

// ProductWithStock is the read-side join of a product and its stock count.
// Count defaults to 0 when no stock row is found.
type ProductWithStock struct {
	Product
	Count int64 `json:"count"`
}
