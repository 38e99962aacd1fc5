package catalog

import "time"

// Product is one catalog item. Prices are in minor currency units.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Price     int64     `json:"price"`
	SalePrice int64     `json:"sale_price,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	IsNew     bool      `json:"is_new"`
	CreatedAt time.Time `json:"created_at"`
}

// OnSale reports whether the product carries a reduced price.
func (p Product) OnSale() bool {
	return p.SalePrice > 0 && p.SalePrice < p.Price
}

// TimeSale is a limited-time promotion over a set of products.
type TimeSale struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	DiscountPercent int       `json:"discount_percent"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	ProductIDs      []string  `json:"product_ids"`
}

// Active reports whether the sale runs at now. The end is exclusive.
func (s TimeSale) Active(now time.Time) bool {
	return !now.Before(s.StartsAt) && now.Before(s.EndsAt)
}
