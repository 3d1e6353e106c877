package catalog

import "time"

const (
	// PackSize is the number of pieces in one pack. Business constant,
	// not configurable at runtime.
	PackSize = 6

	// PageSize is the number of products revealed per page while
	// scrolling. Used for the initial slice and every appended page.
	PageSize = 8

	// NewProductWindowDays is how long a product flagged is_new keeps
	// showing up on the "new products" view.
	NewProductWindowDays = 14
)

// Product is the read-model projection of a products row. PackPrice and
// BoxPrice are derived from PiecePrice at load time and are never trusted
// from storage.
type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ProductCode    string    `json:"product_code"`
	BoxQuantity    int       `json:"box_quantity"`
	PiecePrice     float64   `json:"piece_price"`
	WholesalePrice *float64  `json:"wholesale_price,omitempty"`
	PackPrice      float64   `json:"pack_price"`
	BoxPrice       float64   `json:"box_price"`
	ImageURL       *string   `json:"image_url,omitempty"`
	IsNew          bool      `json:"is_new"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CategoryID     *string   `json:"category_id,omitempty"`
	CategoryIDs    []string  `json:"category_ids,omitempty"`
}

// WithDerivedPrices returns a copy with PackPrice and BoxPrice recomputed
// from PiecePrice and BoxQuantity.
func (p Product) WithDerivedPrices() Product {
	p.PackPrice = p.PiecePrice * PackSize
	p.BoxPrice = p.PiecePrice * float64(p.BoxQuantity)
	return p
}

// Category is the read-model projection of a categories row.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Image       *string   `json:"image,omitempty"`
	Color       *string   `json:"color,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
