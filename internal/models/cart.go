package models

import "time"

// CartLine is one menu item in a user's cart. Unique per (OwnerID, MenuItemRef).
type CartLine struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"owner_id"`
	MenuItemRef         string    `json:"menu_item_ref"`
	Quantity            int       `json:"quantity"`
	SpecialInstructions *string   `json:"special_instructions,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AddToCartRequest is the body of POST /cart
type AddToCartRequest struct {
	MenuItemRef         string  `json:"menu_item_ref"`
	Quantity            int     `json:"quantity"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
}

// UpdateCartLineRequest is the body of PUT /cart/:id
type UpdateCartLineRequest struct {
	Quantity int `json:"quantity"`
}
